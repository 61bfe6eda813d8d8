// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"errors"
	"net/http"

	"codeberg.org/oliverandrich/accountdesk/internal/services/admin"
	"codeberg.org/oliverandrich/accountdesk/internal/services/session"
	"codeberg.org/oliverandrich/accountdesk/internal/templates"
	"github.com/labstack/echo/v4"
)

// AdminHandlers contains the user management handlers.
type AdminHandlers struct {
	admin    *admin.Service
	sessions *session.Manager
}

// NewAdmin creates a new AdminHandlers instance.
func NewAdmin(svc *admin.Service, sessions *session.Manager) *AdminHandlers {
	return &AdminHandlers{
		admin:    svc,
		sessions: sessions,
	}
}

// Index lists all users.
func (h *AdminHandlers) Index(c echo.Context) error {
	sess := h.sessions.Scope(c.Response(), c.Request())
	listing, err := h.admin.ListUsers(c.Request().Context(), sess)
	if err != nil {
		return h.fail(c, err)
	}

	withUser(c, listing.Current)
	return Render(c, http.StatusOK, templates.Admin(templates.AdminPage{
		Page:  page(c, h.sessions),
		Users: listing.Users,
	}))
}

// Block blocks the selected users.
func (h *AdminHandlers) Block(c echo.Context) error {
	res, err := h.admin.Block(c.Request().Context(), h.sessions.Scope(c.Response(), c.Request()), formIDs(c))
	if err != nil {
		return h.fail(c, err)
	}
	if res.SelfAffected {
		return redirect(c, h.sessions, "/auth/login", info("flash_self_blocked"))
	}
	return redirect(c, h.sessions, "/admin", counted("flash_users_blocked", res.Count))
}

// Unblock unblocks the selected users.
func (h *AdminHandlers) Unblock(c echo.Context) error {
	res, err := h.admin.Unblock(c.Request().Context(), h.sessions.Scope(c.Response(), c.Request()), formIDs(c))
	if err != nil {
		return h.fail(c, err)
	}
	return redirect(c, h.sessions, "/admin", counted("flash_users_unblocked", res.Count))
}

// Delete deletes the selected users.
func (h *AdminHandlers) Delete(c echo.Context) error {
	res, err := h.admin.Delete(c.Request().Context(), h.sessions.Scope(c.Response(), c.Request()), formIDs(c))
	if err != nil {
		return h.fail(c, err)
	}
	if res.SelfAffected {
		return redirect(c, h.sessions, "/auth/login", info("flash_self_deleted"))
	}
	return redirect(c, h.sessions, "/admin", counted("flash_users_deleted", res.Count))
}

// DeleteUnverified deletes every unverified user.
func (h *AdminHandlers) DeleteUnverified(c echo.Context) error {
	res, err := h.admin.DeleteUnverified(c.Request().Context(), h.sessions.Scope(c.Response(), c.Request()))
	switch {
	case err != nil:
		return h.fail(c, err)
	case res.SelfAffected:
		return redirect(c, h.sessions, "/auth/login", info("flash_self_deleted"))
	case res.Count == 0:
		return redirect(c, h.sessions, "/admin", info("flash_no_unverified"))
	default:
		return redirect(c, h.sessions, "/admin", counted("flash_unverified_deleted", res.Count))
	}
}

// fail maps service errors to redirects.
func (h *AdminHandlers) fail(c echo.Context, err error) error {
	switch {
	case errors.Is(err, admin.ErrSessionEnded):
		return redirect(c, h.sessions, "/auth/login", failure("flash_session_ended"))
	case errors.Is(err, admin.ErrUnauthenticated):
		return redirect(c, h.sessions, "/auth/login", info("flash_login_required"))
	case errors.Is(err, admin.ErrNoSelection):
		return redirect(c, h.sessions, "/admin", info("flash_no_selection"))
	case c.Request().Method == http.MethodGet:
		return echo.NewHTTPError(http.StatusInternalServerError).SetInternal(err)
	default:
		return redirect(c, h.sessions, "/admin", failure("error_generic"))
	}
}
