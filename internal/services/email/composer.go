// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package email

import (
	"bytes"
	"context"
	"html/template"
	"net/url"
	"strings"

	"codeberg.org/oliverandrich/accountdesk/internal/i18n"
)

// Message is a rendered email ready for a Sender.
type Message struct {
	To      string
	ToName  string
	Subject string
	Text    string
	HTML    string
}

var verificationHTML = template.Must(template.New("verification").Parse(`<!DOCTYPE html>
<html lang="{{.Lang}}">
<body style="font-family: sans-serif; line-height: 1.5;">
<h1>{{.Greeting}}</h1>
<p>{{.Intro}}</p>
<p><a href="{{.VerifyURL}}">{{.Button}}</a></p>
<p style="color: #666; font-size: 0.9em;">{{.Ignore}}</p>
</body>
</html>
`))

// Composer renders outgoing messages in the locale carried by the context.
type Composer struct {
	baseURL string
}

// NewComposer creates a composer that builds links below baseURL.
func NewComposer(baseURL string) *Composer {
	return &Composer{baseURL: strings.TrimSuffix(baseURL, "/")}
}

// VerifyURL returns the verification link for token.
func (c *Composer) VerifyURL(token string) string {
	return c.baseURL + "/auth/verify?token=" + url.QueryEscape(token)
}

// Verification renders the verification email for a new account.
func (c *Composer) Verification(ctx context.Context, to, name, token string) (*Message, error) {
	verifyURL := c.VerifyURL(token)
	greeting := i18n.TData(ctx, "email_verification_greeting", map[string]any{"Name": name})
	intro := i18n.T(ctx, "email_verification_intro")
	ignore := i18n.T(ctx, "email_verification_ignore")

	var html bytes.Buffer
	err := verificationHTML.Execute(&html, map[string]string{
		"Lang":      i18n.GetLocale(ctx),
		"Greeting":  greeting,
		"Intro":     intro,
		"VerifyURL": verifyURL,
		"Button":    i18n.T(ctx, "email_verification_button"),
		"Ignore":    ignore,
	})
	if err != nil {
		return nil, err
	}

	text := greeting + "\n\n" + intro + "\n\n" + verifyURL + "\n\n" + ignore + "\n"

	return &Message{
		To:      to,
		ToName:  name,
		Subject: i18n.T(ctx, "email_verification_subject"),
		Text:    text,
		HTML:    html.String(),
	}, nil
}
