// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package htmx provides the request and response headers the views use
// for htmx-enhanced forms.
package htmx

import (
	"net/http"
)

const (
	HeaderRequest  = "HX-Request"
	HeaderBoosted  = "HX-Boosted"
	HeaderRedirect = "HX-Redirect"
)

// IsRequest reports whether r was sent by htmx.
func IsRequest(r *http.Request) bool {
	return r.Header.Get(HeaderRequest) == "true"
}

// IsBoosted reports whether r comes from an hx-boost link or form.
func IsBoosted(r *http.Request) bool {
	return r.Header.Get(HeaderBoosted) == "true"
}

// Redirect sends the client to url. Plain requests get a 303; htmx
// requests get HX-Redirect, because htmx would otherwise swap the
// redirected page into the target element. Boosted requests are full
// navigations and get the 303 too.
func Redirect(w http.ResponseWriter, r *http.Request, url string) {
	if IsRequest(r) && !IsBoosted(r) {
		w.Header().Set(HeaderRedirect, url)
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, url, http.StatusSeeOther)
}
