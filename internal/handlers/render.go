// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"context"
	"log/slog"
	"strconv"

	"codeberg.org/oliverandrich/accountdesk/internal/ctxkeys"
	"codeberg.org/oliverandrich/accountdesk/internal/htmx"
	"codeberg.org/oliverandrich/accountdesk/internal/models"
	"codeberg.org/oliverandrich/accountdesk/internal/services/session"
	"codeberg.org/oliverandrich/accountdesk/internal/templates"
	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"
)

// Render renders a templ component with the given status code.
func Render(c echo.Context, statusCode int, component templ.Component) error {
	buf := templ.GetBuffer()
	defer templ.ReleaseBuffer(buf)

	if err := component.Render(c.Request().Context(), buf); err != nil {
		return err
	}

	return c.HTML(statusCode, buf.String())
}

// page builds the view base and consumes a pending flash message.
func page(c echo.Context, sessions *session.Manager) templates.Page {
	var flash *session.Flash
	if sessions != nil {
		flash = sessions.PopFlash(c.Response(), c.Request())
	}
	return templates.NewPage(c.Request().Context(), flash)
}

// withUser makes user visible to the layout navigation.
func withUser(c echo.Context, user *models.User) {
	ctx := context.WithValue(c.Request().Context(), ctxkeys.User{}, user)
	c.SetRequest(c.Request().WithContext(ctx))
}

// redirect stores an optional flash message and redirects.
func redirect(c echo.Context, sessions *session.Manager, url string, flash *session.Flash) error {
	if flash != nil {
		if err := sessions.SetFlash(c.Response(), *flash); err != nil {
			slog.Warn("flash_failed", "error", err)
		}
	}
	htmx.Redirect(c.Response(), c.Request(), url)
	return nil
}

func success(messageID string) *session.Flash {
	return &session.Flash{Kind: session.FlashSuccess, MessageID: messageID}
}

func info(messageID string) *session.Flash {
	return &session.Flash{Kind: session.FlashInfo, MessageID: messageID}
}

func failure(messageID string) *session.Flash {
	return &session.Flash{Kind: session.FlashError, MessageID: messageID}
}

func counted(messageID string, n int) *session.Flash {
	return &session.Flash{Kind: session.FlashSuccess, MessageID: messageID, Count: n, Plural: true}
}

// formIDs parses the repeated "ids" form field. Values that are not
// numbers are skipped.
func formIDs(c echo.Context) []int64 {
	params, err := c.FormParams()
	if err != nil {
		return nil
	}
	values := params["ids"]
	ids := make([]int64, 0, len(values))
	for _, v := range values {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}
