// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package templates

import (
	"context"
	"time"

	"codeberg.org/oliverandrich/accountdesk/internal/ctxkeys"
	"codeberg.org/oliverandrich/accountdesk/internal/i18n"
	"codeberg.org/oliverandrich/accountdesk/internal/models"
	"codeberg.org/oliverandrich/accountdesk/internal/services/session"
)

const dateLayout = "2006-01-02 15:04"

// Page carries what every view needs. Its methods are callable from the
// templates, e.g. {{.T "login_title"}}.
type Page struct {
	ctx       context.Context
	CSRFToken string
	User      *models.User
	Flash     *session.Flash
}

// NewPage reads the CSRF token and the signed-in user from ctx.
func NewPage(ctx context.Context, flash *session.Flash) Page {
	p := Page{ctx: ctx, Flash: flash}
	if token, ok := ctx.Value(ctxkeys.CSRFToken{}).(string); ok {
		p.CSRFToken = token
	}
	if user, ok := ctx.Value(ctxkeys.User{}).(*models.User); ok {
		p.User = user
	}
	return p
}

// Lang is the document language.
func (p Page) Lang() string {
	return i18n.GetLocale(p.context())
}

// T translates a message by ID.
func (p Page) T(messageID string) string {
	return i18n.T(p.context(), messageID)
}

// TData translates a message with key/value template data.
func (p Page) TData(messageID string, pairs ...any) string {
	data := make(map[string]any, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		if key, ok := pairs[i].(string); ok {
			data[key] = pairs[i+1]
		}
	}
	return i18n.TData(p.context(), messageID, data)
}

// TPlural translates a counted message.
func (p Page) TPlural(messageID string, count int) string {
	return i18n.TPlural(p.context(), messageID, count)
}

// FlashText is the translated flash message, or "" without one.
func (p Page) FlashText() string {
	if p.Flash == nil {
		return ""
	}
	if p.Flash.Plural {
		return p.TPlural(p.Flash.MessageID, p.Flash.Count)
	}
	return p.T(p.Flash.MessageID)
}

// Date formats a timestamp in UTC.
func (p Page) Date(t time.Time) string {
	return t.UTC().Format(dateLayout)
}

// LastLogin formats an optional login time.
func (p Page) LastLogin(t *time.Time) string {
	if t == nil {
		return p.T("admin_never")
	}
	return p.Date(*t)
}

// StatusLabel translates an account status.
func (p Page) StatusLabel(s models.Status) string {
	return p.T("status_" + string(s))
}

func (p Page) context() context.Context {
	if p.ctx == nil {
		return context.Background()
	}
	return p.ctx
}

// LoginPage is the sign-in form. Error is a message ID.
type LoginPage struct {
	Page
	Email string
	Error string
}

// RegisterPage is the registration form. FieldErrors maps form fields to
// message IDs.
type RegisterPage struct {
	Page
	Name        string
	Email       string
	Error       string
	FieldErrors map[string]string
}

// AdminPage lists all users.
type AdminPage struct {
	Page
	Users []models.User
}

// ErrorPage shows an HTTP error.
type ErrorPage struct {
	Page
	Code    int
	Message string
}
