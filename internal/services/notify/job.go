// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package notify delivers verification emails outside the request path,
// either through an in-process worker pool or an AMQP queue.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"codeberg.org/oliverandrich/accountdesk/internal/i18n"
	"codeberg.org/oliverandrich/accountdesk/internal/services/email"
)

// Job is one verification email to deliver.
type Job struct {
	ID        string    `json:"id"`
	To        string    `json:"to"`
	Name      string    `json:"name"`
	Token     string    `json:"token"`
	Locale    string    `json:"locale,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Handler processes a job. Handlers are called from worker goroutines.
type Handler interface {
	Handle(ctx context.Context, job Job) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, job Job) error

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, job Job) error {
	return f(ctx, job)
}

// MailHandler renders a job with the composer and hands it to a sender.
type MailHandler struct {
	composer *email.Composer
	sender   email.Sender
}

// NewMailHandler creates a handler that delivers jobs as email.
func NewMailHandler(composer *email.Composer, sender email.Sender) *MailHandler {
	return &MailHandler{composer: composer, sender: sender}
}

// Handle sends the verification email in the job's locale.
func (h *MailHandler) Handle(ctx context.Context, job Job) error {
	if job.Locale != "" {
		ctx = i18n.WithLocaleString(ctx, job.Locale)
	}

	msg, err := h.composer.Verification(ctx, job.To, job.Name, job.Token)
	if err != nil {
		return fmt.Errorf("render verification email: %w", err)
	}

	if err := h.sender.Send(ctx, msg); err != nil {
		return err
	}
	slog.Info("verification_email_sent", "job_id", job.ID, "to", job.To)
	return nil
}
