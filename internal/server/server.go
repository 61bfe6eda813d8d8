// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"codeberg.org/oliverandrich/accountdesk/internal/config"
	"codeberg.org/oliverandrich/accountdesk/internal/database"
	"codeberg.org/oliverandrich/accountdesk/internal/handlers"
	"codeberg.org/oliverandrich/accountdesk/internal/i18n"
	"codeberg.org/oliverandrich/accountdesk/internal/repository"
	"codeberg.org/oliverandrich/accountdesk/internal/services/account"
	"codeberg.org/oliverandrich/accountdesk/internal/services/admin"
	"codeberg.org/oliverandrich/accountdesk/internal/services/email"
	"codeberg.org/oliverandrich/accountdesk/internal/services/notify"
	"codeberg.org/oliverandrich/accountdesk/internal/services/session"
	"github.com/labstack/echo/v4"
	"github.com/urfave/cli/v3"
	"github.com/vinovest/sqlx"
)

const shutdownTimeout = 10 * time.Second

// App is the wired web application.
type App struct {
	Echo       *echo.Echo
	dispatcher *notify.Dispatcher
	publisher  *notify.AMQPPublisher
}

// Run starts the server with the given CLI command.
func Run(ctx context.Context, cmd *cli.Command) error {
	cfg := config.NewFromCLI(cmd)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	setupLogger(cfg.Log.Level, cfg.Log.Format)

	slog.Info("starting server",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"base_url", cfg.Server.BaseURL,
		"dialect", database.DetectDialect(cfg.Database.DSN),
	)

	// Database, with migrations applied
	db, err := database.Open(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("failed to close database", "error", closeErr)
		}
	}()

	if initErr := i18n.Init(); initErr != nil {
		return fmt.Errorf("failed to init i18n: %w", initErr)
	}

	app, err := New(cfg, db)
	if err != nil {
		return err
	}

	return startWithGracefulShutdown(ctx, app, cfg)
}

// New wires repositories, services and handlers onto a fresh Echo instance
// and starts the mail dispatcher.
func New(cfg *config.Config, db *sqlx.DB) (*App, error) {
	repo := repository.New(db)

	sessions, err := session.NewManager(&cfg.Session, strings.HasPrefix(cfg.Server.BaseURL, "https://"))
	if err != nil {
		return nil, fmt.Errorf("failed to create session manager: %w", err)
	}

	app := &App{}
	handler, err := app.mailHandler(cfg)
	if err != nil {
		return nil, err
	}
	app.dispatcher = notify.NewDispatcher(handler, cfg.Mail.Workers, cfg.Mail.QueueSize, cfg.Mail.SendTimeout)
	app.dispatcher.Start()

	accounts := account.NewService(repo, app.dispatcher)
	admins := admin.NewService(repo)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	setupMiddleware(e, cfg)
	handlers.Routes(e,
		handlers.New(repo, sessions),
		handlers.NewAuth(accounts, sessions),
		handlers.NewAdmin(admins, sessions),
	)

	app.Echo = e
	return app, nil
}

// mailHandler picks where dispatched verification jobs go: straight to the
// mail provider, or onto the broker for a separate mail worker.
func (a *App) mailHandler(cfg *config.Config) (notify.Handler, error) {
	if cfg.Mail.Queue == config.MailQueueAMQP {
		publisher, err := notify.NewAMQPPublisher(cfg.AMQP.URL, cfg.AMQP.Queue)
		if err != nil {
			return nil, fmt.Errorf("failed to connect mail queue: %w", err)
		}
		a.publisher = publisher
		slog.Info("mail queue: amqp", "queue", cfg.AMQP.Queue)
		return publisher, nil
	}

	handler, err := MailHandler(cfg)
	if err != nil {
		return nil, err
	}
	slog.Info("mail queue: memory", "provider", cfg.Mail.Provider, "workers", cfg.Mail.Workers)
	return handler, nil
}

// MailHandler composes and sends verification emails with the configured
// provider.
func MailHandler(cfg *config.Config) (*notify.MailHandler, error) {
	sender, err := email.NewSender(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create mail sender: %w", err)
	}
	return notify.NewMailHandler(email.NewComposer(cfg.Server.BaseURL), sender), nil
}

// Shutdown drains pending verification emails and closes the broker
// connection.
func (a *App) Shutdown(ctx context.Context) error {
	err := a.dispatcher.Shutdown(ctx)
	if a.publisher != nil {
		err = errors.Join(err, a.publisher.Close())
	}
	return err
}

func startWithGracefulShutdown(ctx context.Context, app *App, cfg *config.Config) error {
	e := app.Echo

	tlsResult, err := SetupTLS(cfg)
	if err != nil {
		return fmt.Errorf("TLS setup failed: %w", err)
	}

	// Channel for server errors
	errChan := make(chan error, 2)

	// HTTP redirect server for ACME mode
	var httpServer *http.Server

	switch tlsResult.Mode {
	case TLSModeOff:
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		go func() {
			slog.Info("Server running", "url", cfg.Server.BaseURL)
			if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errChan <- err
			}
		}()

	case TLSModeACME:
		go func() {
			slog.Info("Server running", "url", cfg.Server.BaseURL)
			if err := startTLSServer(e, ":443", tlsResult.TLSConfig); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errChan <- err
			}
		}()

		httpServer = &http.Server{
			Addr:              ":80",
			Handler:           tlsResult.HTTPHandler,
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			slog.Info("HTTP to HTTPS redirect active", "addr", ":80")
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errChan <- err
			}
		}()

	case TLSModeManual:
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		go func() {
			slog.Info("Server running", "url", cfg.Server.BaseURL)
			if err := startTLSServer(e, addr, tlsResult.TLSConfig); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errChan <- err
			}
		}()
	}

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var serveErr error
	select {
	case <-sigCtx.Done():
		slog.Info("shutting down server")
	case serveErr = <-errChan:
		slog.Error("server error", "error", serveErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shutdown main server", "error", err)
	}

	if httpServer != nil {
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("failed to shutdown HTTP redirect server", "error", err)
		}
	}

	// Requests are finished, so no new jobs can arrive.
	if err := app.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to drain mail queue", "error", err)
	}

	slog.Info("server stopped")
	return serveErr
}

// startTLSServer starts the Echo server with a custom TLS configuration.
func startTLSServer(e *echo.Echo, addr string, tlsConfig *tls.Config) error {
	lc := &net.ListenConfig{}
	ln, err := lc.Listen(context.Background(), "tcp", addr)
	if err != nil {
		return err
	}
	e.TLSListener = tls.NewListener(ln, tlsConfig)
	e.TLSServer.TLSConfig = tlsConfig
	return e.Server.Serve(e.TLSListener)
}
