// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"errors"
	"net/http"

	"codeberg.org/oliverandrich/accountdesk/internal/services/account"
	"codeberg.org/oliverandrich/accountdesk/internal/services/session"
	"codeberg.org/oliverandrich/accountdesk/internal/templates"
	"github.com/labstack/echo/v4"
)

// AuthHandlers contains handlers for registration and sign-in.
type AuthHandlers struct {
	accounts *account.Service
	sessions *session.Manager
}

// NewAuth creates a new AuthHandlers instance.
func NewAuth(accounts *account.Service, sessions *session.Manager) *AuthHandlers {
	return &AuthHandlers{
		accounts: accounts,
		sessions: sessions,
	}
}

// RegisterPage renders the registration page.
func (h *AuthHandlers) RegisterPage(c echo.Context) error {
	return Render(c, http.StatusOK, templates.Register(templates.RegisterPage{
		Page: page(c, h.sessions),
	}))
}

// Register creates the account and sends the visitor to the login form.
func (h *AuthHandlers) Register(c echo.Context) error {
	var params account.RegisterParams
	if err := c.Bind(&params); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid form")
	}

	_, err := h.accounts.Register(c.Request().Context(), params)
	if err == nil {
		return redirect(c, h.sessions, "/auth/login", success("flash_registered"))
	}

	p := templates.RegisterPage{
		Page:  page(c, h.sessions),
		Name:  params.Name,
		Email: params.Email,
	}

	var verr *account.ValidationError
	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &verr):
		status = http.StatusUnprocessableEntity
		p.FieldErrors = make(map[string]string, len(verr.Fields))
		for _, f := range verr.Fields {
			p.FieldErrors[f.Field] = f.MessageID()
		}
	case errors.Is(err, account.ErrDuplicateEmail):
		status = http.StatusConflict
		p.Error = "error_duplicate_email"
	default:
		p.Error = "error_generic"
	}
	return Render(c, status, templates.Register(p))
}

// LoginPage renders the login page.
func (h *AuthHandlers) LoginPage(c echo.Context) error {
	return Render(c, http.StatusOK, templates.Login(templates.LoginPage{
		Page: page(c, h.sessions),
	}))
}

// Login checks the credentials and starts a session.
func (h *AuthHandlers) Login(c echo.Context) error {
	email := c.FormValue("email")
	sess := h.sessions.Scope(c.Response(), c.Request())

	_, err := h.accounts.Login(c.Request().Context(), sess, email, c.FormValue("password"))
	if err == nil {
		return redirect(c, h.sessions, "/admin", nil)
	}

	p := templates.LoginPage{
		Page:  page(c, h.sessions),
		Email: email,
	}
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, account.ErrInvalidCredentials):
		status = http.StatusUnauthorized
		p.Error = "error_invalid_credentials"
	case errors.Is(err, account.ErrAccountBlocked):
		status = http.StatusForbidden
		p.Error = "error_account_blocked"
	default:
		p.Error = "error_generic"
	}
	return Render(c, status, templates.Login(p))
}

// Verify consumes the token from the verification email.
func (h *AuthHandlers) Verify(c echo.Context) error {
	err := h.accounts.VerifyEmail(c.Request().Context(), c.QueryParam("token"))
	switch {
	case err == nil:
		return redirect(c, h.sessions, "/auth/login", success("flash_email_verified"))
	case errors.Is(err, account.ErrInvalidToken):
		return redirect(c, h.sessions, "/auth/login", failure("error_invalid_token"))
	default:
		return redirect(c, h.sessions, "/auth/login", failure("error_generic"))
	}
}

// Logout clears the session cookie.
func (h *AuthHandlers) Logout(c echo.Context) error {
	h.accounts.Logout(h.sessions.Scope(c.Response(), c.Request()))
	return redirect(c, h.sessions, "/auth/login", info("flash_logged_out"))
}
