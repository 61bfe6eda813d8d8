// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package email

import (
	"context"
	"fmt"

	"codeberg.org/oliverandrich/accountdesk/internal/config"
	mg "github.com/mailgun/mailgun-go/v4"
)

// MailgunSender delivers messages through the Mailgun HTTP API.
type MailgunSender struct {
	client *mg.MailgunImpl
	from   string
}

// NewMailgunSender creates a Mailgun client for the configured domain.
func NewMailgunSender(cfg *config.MailgunConfig) (*MailgunSender, error) {
	if cfg.Domain == "" || cfg.APIKey == "" {
		return nil, fmt.Errorf("mailgun domain and API key are required")
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("mailgun from address is required")
	}

	client := mg.NewMailgun(cfg.Domain, cfg.APIKey)
	if cfg.APIBase != "" {
		client.SetAPIBase(cfg.APIBase)
	}

	return &MailgunSender{client: client, from: cfg.From}, nil
}

// Send submits msg to Mailgun.
func (s *MailgunSender) Send(ctx context.Context, msg *Message) error {
	m := s.client.NewMessage(s.from, msg.Subject, msg.Text, msg.To)
	if msg.HTML != "" {
		m.SetHtml(msg.HTML)
	}

	if _, _, err := s.client.Send(ctx, m); err != nil {
		return fmt.Errorf("sending email via mailgun: %w", err)
	}
	return nil
}
