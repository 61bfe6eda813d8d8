// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package session

import (
	"net/http"
)

// Flash kinds map to alert styles in the views.
const (
	FlashSuccess = "success"
	FlashInfo    = "info"
	FlashError   = "error"
)

// flashMaxAge bounds how long an unread flash survives.
const flashMaxAge = 60

// Flash is a one-shot message carried to the next request.
// Plural messages are translated with Count.
type Flash struct {
	Kind      string `json:"k"`
	MessageID string `json:"m"`
	Count     int    `json:"c,omitempty"`
	Plural    bool   `json:"p,omitempty"`
}

func (m *Manager) flashCookieName() string {
	return m.cookieName + "_flash"
}

// SetFlash stores a flash message for the next request.
func (m *Manager) SetFlash(w http.ResponseWriter, flash Flash) error {
	value, err := m.codec.Encode(m.flashCookieName(), flash)
	if err != nil {
		return err
	}
	c := m.cookie(value, flashMaxAge)
	c.Name = m.flashCookieName()
	http.SetCookie(w, c)
	return nil
}

// PopFlash returns the pending flash message, if any, and deletes it.
func (m *Manager) PopFlash(w http.ResponseWriter, r *http.Request) *Flash {
	cookie, err := r.Cookie(m.flashCookieName())
	if err != nil {
		return nil
	}

	c := m.cookie("", -1)
	c.Name = m.flashCookieName()
	http.SetCookie(w, c)

	var flash Flash
	if err := m.codec.Decode(m.flashCookieName(), cookie.Value, &flash); err != nil {
		return nil
	}
	return &flash
}
