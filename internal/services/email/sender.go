// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package email

import (
	"context"
	"fmt"
	"log/slog"

	"codeberg.org/oliverandrich/accountdesk/internal/config"
)

// Sender delivers a rendered message.
type Sender interface {
	Send(ctx context.Context, msg *Message) error
}

// NewSender builds the transport selected by mail.provider.
func NewSender(cfg *config.Config) (Sender, error) {
	switch cfg.Mail.Provider {
	case config.MailProviderSMTP:
		return NewSMTPSender(&cfg.SMTP)
	case config.MailProviderMailgun:
		return NewMailgunSender(&cfg.Mailgun)
	case config.MailProviderLog, "":
		return LogSender{}, nil
	default:
		return nil, fmt.Errorf("unknown mail provider: %q", cfg.Mail.Provider)
	}
}

// LogSender writes messages to the log instead of delivering them.
type LogSender struct{}

// Send logs the recipient, subject and plain text body.
func (LogSender) Send(ctx context.Context, msg *Message) error {
	slog.InfoContext(ctx, "email_logged",
		"to", msg.To,
		"subject", msg.Subject,
		"body", msg.Text,
	)
	return nil
}
