// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package handlers contains the HTTP handlers. They translate between
// forms, cookies and redirects on one side and the account and admin
// services on the other.
package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"codeberg.org/oliverandrich/accountdesk/internal/services/session"
	"codeberg.org/oliverandrich/accountdesk/internal/templates"
	"github.com/labstack/echo/v4"
)

const healthTimeout = 2 * time.Second

// Pinger reports whether the database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handlers contains handlers that need no service.
type Handlers struct {
	db       Pinger
	sessions *session.Manager
}

// New creates a new Handlers instance.
func New(db Pinger, sessions *session.Manager) *Handlers {
	return &Handlers{db: db, sessions: sessions}
}

// Health returns the health status.
func (h *Handlers) Health(c echo.Context) error {
	if h.db != nil {
		ctx, cancel := context.WithTimeout(c.Request().Context(), healthTimeout)
		defer cancel()
		if err := h.db.Ping(ctx); err != nil {
			slog.Error("health_check_failed", "error", err)
			return c.JSON(http.StatusServiceUnavailable, map[string]string{
				"status":   "error",
				"database": "unavailable",
			})
		}
	}
	return c.JSON(http.StatusOK, map[string]string{
		"status":   "ok",
		"database": "ok",
	})
}

// Home sends visitors to the admin panel, which redirects to the login
// form when nobody is signed in.
func (h *Handlers) Home(c echo.Context) error {
	return c.Redirect(http.StatusSeeOther, "/admin")
}

// HTTPError renders echo errors as HTML error pages.
func (h *Handlers) HTTPError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
	}

	messageID := "error_generic"
	switch code {
	case http.StatusNotFound, http.StatusMethodNotAllowed:
		messageID = "error_not_found"
	case http.StatusForbidden, http.StatusBadRequest:
		messageID = "error_forbidden"
	}
	if code >= http.StatusInternalServerError {
		slog.Error("request_failed", "path", c.Request().URL.Path, "error", err)
	}

	p := templates.ErrorPage{
		Page: page(c, h.sessions),
		Code: code,
	}
	p.Message = p.T(messageID)
	if renderErr := Render(c, code, templates.Error(p)); renderErr != nil {
		slog.Error("error_page_failed", "error", renderErr)
	}
}
