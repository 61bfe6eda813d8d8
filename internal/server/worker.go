// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"codeberg.org/oliverandrich/accountdesk/internal/config"
	"codeberg.org/oliverandrich/accountdesk/internal/i18n"
	"codeberg.org/oliverandrich/accountdesk/internal/services/notify"
	"github.com/urfave/cli/v3"
)

// RunMailWorker consumes verification jobs from the broker and sends them
// with the configured provider until interrupted.
func RunMailWorker(ctx context.Context, cmd *cli.Command) error {
	cfg := config.NewFromCLI(cmd)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.Mail.Queue != config.MailQueueAMQP {
		return errors.New("mail worker requires mail queue amqp")
	}
	setupLogger(cfg.Log.Level, cfg.Log.Format)

	if err := i18n.Init(); err != nil {
		return fmt.Errorf("failed to init i18n: %w", err)
	}

	handler, err := MailHandler(cfg)
	if err != nil {
		return err
	}

	consumer, err := notify.NewConsumer(cfg.AMQP.URL, cfg.AMQP.Queue, handler, cfg.Mail.SendTimeout)
	if err != nil {
		return fmt.Errorf("failed to connect mail queue: %w", err)
	}
	defer func() {
		if closeErr := consumer.Close(); closeErr != nil {
			slog.Error("failed to close mail queue", "error", closeErr)
		}
	}()

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("mail worker running", "queue", cfg.AMQP.Queue, "provider", cfg.Mail.Provider)
	if err := consumer.Run(sigCtx); err != nil {
		return err
	}
	slog.Info("mail worker stopped")
	return nil
}
