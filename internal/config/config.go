// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package config

import (
	"fmt"
	"strings"
	"time"

	altsrc "github.com/urfave/cli-altsrc/v3"
	"github.com/urfave/cli-altsrc/v3/toml"
	"github.com/urfave/cli/v3"
)

var configFile = altsrc.StringSourcer("config.toml")

type Config struct { //nolint:govet // fieldalignment not critical for config structs
	Server   ServerConfig
	Log      LogConfig
	Database DatabaseConfig
	TLS      TLSConfig
	Session  SessionConfig
	Mail     MailConfig
	SMTP     SMTPConfig
	Mailgun  MailgunConfig
	AMQP     AMQPConfig
}

type TLSConfig struct {
	Mode     string // auto, acme, manual, off
	CertDir  string // ACME certificate cache
	Email    string // ACME email for Let's Encrypt
	CertFile string // Path to certificate file (manual mode)
	KeyFile  string // Path to private key file (manual mode)
}

type ServerConfig struct { //nolint:govet // fieldalignment not critical for config structs
	Host        string
	Port        int
	BaseURL     string
	MaxBodySize int // in MB
}

type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // text, json
}

type DatabaseConfig struct {
	DSN string // SQLite path or postgres:// URL
}

type SessionConfig struct { //nolint:govet // fieldalignment not critical
	CookieName string // Session cookie name
	MaxAge     int    // Session max age in seconds
	HashKey    string // 32-byte hex string for HMAC signing
	BlockKey   string // 32-byte hex string for AES encryption (optional)
}

// Mail providers and queues.
const (
	MailProviderSMTP    = "smtp"
	MailProviderMailgun = "mailgun"
	MailProviderLog     = "log"

	MailQueueMemory = "memory"
	MailQueueAMQP   = "amqp"
)

type MailConfig struct { //nolint:govet // fieldalignment not critical
	Provider    string // smtp, mailgun, log
	Queue       string // memory, amqp
	Workers     int
	QueueSize   int
	SendTimeout time.Duration
}

type SMTPConfig struct { //nolint:govet // fieldalignment not critical
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
	TLS      bool
}

type MailgunConfig struct {
	Domain  string
	APIKey  string
	APIBase string // empty for the US region
	From    string
}

type AMQPConfig struct {
	URL   string
	Queue string
}

func NewFromCLI(cmd *cli.Command) *Config {
	cfg := &Config{
		Server: ServerConfig{
			Host:        cmd.String("host"),
			Port:        int(cmd.Int("port")),
			BaseURL:     cmd.String("base-url"),
			MaxBodySize: int(cmd.Int("max-body-size")),
		},
		Log: LogConfig{
			Level:  cmd.String("log-level"),
			Format: cmd.String("log-format"),
		},
		Database: DatabaseConfig{
			DSN: cmd.String("database-dsn"),
		},
		TLS: TLSConfig{
			Mode:     cmd.String("tls-mode"),
			CertDir:  cmd.String("tls-cert-dir"),
			Email:    cmd.String("tls-email"),
			CertFile: cmd.String("tls-cert-file"),
			KeyFile:  cmd.String("tls-key-file"),
		},
		Session: SessionConfig{
			CookieName: cmd.String("session-cookie-name"),
			MaxAge:     int(cmd.Int("session-max-age")),
			HashKey:    cmd.String("session-hash-key"),
			BlockKey:   cmd.String("session-block-key"),
		},
		Mail: MailConfig{
			Provider:    strings.ToLower(cmd.String("mail-provider")),
			Queue:       strings.ToLower(cmd.String("mail-queue")),
			Workers:     int(cmd.Int("mail-workers")),
			QueueSize:   int(cmd.Int("mail-queue-size")),
			SendTimeout: cmd.Duration("mail-send-timeout"),
		},
		SMTP: SMTPConfig{
			Host:     cmd.String("smtp-host"),
			Port:     int(cmd.Int("smtp-port")),
			Username: cmd.String("smtp-username"),
			Password: cmd.String("smtp-password"),
			From:     cmd.String("smtp-from"),
			FromName: cmd.String("smtp-from-name"),
			TLS:      cmd.Bool("smtp-tls"),
		},
		Mailgun: MailgunConfig{
			Domain:  cmd.String("mailgun-domain"),
			APIKey:  cmd.String("mailgun-api-key"),
			APIBase: cmd.String("mailgun-api-base"),
			From:    cmd.String("mailgun-from"),
		},
		AMQP: AMQPConfig{
			URL:   cmd.String("amqp-url"),
			Queue: cmd.String("amqp-queue"),
		},
	}

	if cfg.Server.BaseURL == "" {
		cfg.Server.BaseURL = buildBaseURL(cfg)
	}
	cfg.Server.BaseURL = strings.TrimSuffix(cfg.Server.BaseURL, "/")

	return cfg
}

// Validate checks settings that only make sense together.
func (c *Config) Validate() error {
	switch c.Mail.Provider {
	case MailProviderSMTP:
		if c.SMTP.Host == "" || c.SMTP.From == "" {
			return fmt.Errorf("mail provider smtp requires smtp.host and smtp.from")
		}
	case MailProviderMailgun:
		if c.Mailgun.Domain == "" || c.Mailgun.APIKey == "" || c.Mailgun.From == "" {
			return fmt.Errorf("mail provider mailgun requires mailgun.domain, mailgun.api_key and mailgun.from")
		}
	case MailProviderLog:
	default:
		return fmt.Errorf("unknown mail provider: %q", c.Mail.Provider)
	}

	switch c.Mail.Queue {
	case MailQueueMemory:
	case MailQueueAMQP:
		if c.AMQP.URL == "" {
			return fmt.Errorf("mail queue amqp requires amqp.url")
		}
	default:
		return fmt.Errorf("unknown mail queue: %q", c.Mail.Queue)
	}

	if c.Mail.Workers < 1 {
		return fmt.Errorf("mail workers must be at least 1")
	}
	if c.Mail.QueueSize < 1 {
		return fmt.Errorf("mail queue size must be at least 1")
	}

	return nil
}

func buildBaseURL(cfg *Config) string {
	host := cfg.Server.Host
	port := cfg.Server.Port
	mode := strings.ToLower(cfg.TLS.Mode)

	scheme := "http"
	if shouldUseTLS(mode, host) {
		scheme = "https"
	}

	// ACME mode always uses port 443
	if mode == "acme" {
		return fmt.Sprintf("https://%s", host)
	}

	// Hide default ports in URL
	if (scheme == "http" && port == 80) || (scheme == "https" && port == 443) {
		return fmt.Sprintf("%s://%s", scheme, host)
	}
	return fmt.Sprintf("%s://%s:%d", scheme, host, port)
}

func shouldUseTLS(mode, host string) bool {
	switch mode {
	case "off":
		return false
	case "acme", "manual":
		return true
	default: // "auto" or empty
		return !IsLocalhost(host)
	}
}

// IsLocalhost checks if the host is a localhost address.
func IsLocalhost(host string) bool {
	switch host {
	case "", "localhost", "127.0.0.1", "::1":
		return true
	}
	// Check for *.localhost subdomains (e.g., app.localhost)
	return strings.HasSuffix(host, ".localhost")
}

// Flags are defined on the root command and shared by all subcommands.
func Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "host",
			Value:   "localhost",
			Usage:   "Host to bind to",
			Sources: cli.NewValueSourceChain(cli.EnvVar("HOST"), toml.TOML("server.host", configFile)),
		},
		&cli.IntFlag{
			Name:    "port",
			Value:   8080,
			Usage:   "Port to listen on",
			Sources: cli.NewValueSourceChain(cli.EnvVar("PORT"), toml.TOML("server.port", configFile)),
		},
		&cli.StringFlag{
			Name:    "base-url",
			Usage:   "Base URL for the application, used in verification links",
			Sources: cli.NewValueSourceChain(cli.EnvVar("BASE_URL"), toml.TOML("server.base_url", configFile)),
		},
		&cli.IntFlag{
			Name:    "max-body-size",
			Value:   1,
			Usage:   "Maximum request body size in MB",
			Sources: cli.NewValueSourceChain(cli.EnvVar("MAX_BODY_SIZE"), toml.TOML("server.max_body_size", configFile)),
		},
		&cli.StringFlag{
			Name:    "tls-mode",
			Value:   "auto",
			Usage:   "TLS mode (auto, acme, manual, off)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("TLS_MODE"), toml.TOML("tls.mode", configFile)),
		},
		&cli.StringFlag{
			Name:    "tls-cert-dir",
			Value:   "./data/certs",
			Usage:   "Directory for the ACME certificate cache",
			Sources: cli.NewValueSourceChain(cli.EnvVar("TLS_CERT_DIR"), toml.TOML("tls.cert_dir", configFile)),
		},
		&cli.StringFlag{
			Name:    "tls-email",
			Usage:   "Email for ACME/Let's Encrypt registration",
			Sources: cli.NewValueSourceChain(cli.EnvVar("TLS_EMAIL"), toml.TOML("tls.email", configFile)),
		},
		&cli.StringFlag{
			Name:    "tls-cert-file",
			Usage:   "Path to TLS certificate file (manual mode)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("TLS_CERT_FILE"), toml.TOML("tls.cert_file", configFile)),
		},
		&cli.StringFlag{
			Name:    "tls-key-file",
			Usage:   "Path to TLS private key file (manual mode)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("TLS_KEY_FILE"), toml.TOML("tls.key_file", configFile)),
		},
		// Session flags
		&cli.StringFlag{
			Name:    "session-cookie-name",
			Value:   "_session",
			Usage:   "Session cookie name",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SESSION_COOKIE_NAME"), toml.TOML("session.cookie_name", configFile)),
		},
		&cli.IntFlag{
			Name:    "session-max-age",
			Value:   7200, // 2 hours
			Usage:   "Session max age in seconds",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SESSION_MAX_AGE"), toml.TOML("session.max_age", configFile)),
		},
		&cli.StringFlag{
			Name:    "session-hash-key",
			Usage:   "Session hash key (32-byte hex, auto-generated if empty in dev)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SESSION_HASH_KEY"), toml.TOML("session.hash_key", configFile)),
		},
		&cli.StringFlag{
			Name:    "session-block-key",
			Usage:   "Session block key for encryption (32-byte hex, optional)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SESSION_BLOCK_KEY"), toml.TOML("session.block_key", configFile)),
		},
		&cli.StringFlag{
			Name:    "log-level",
			Value:   "info",
			Usage:   "Log level (debug, info, warn, error)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("LOG_LEVEL"), toml.TOML("log.level", configFile)),
		},
		&cli.StringFlag{
			Name:    "log-format",
			Value:   "text",
			Usage:   "Log format (text, json)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("LOG_FORMAT"), toml.TOML("log.format", configFile)),
		},
		&cli.StringFlag{
			Name:    "database-dsn",
			Value:   "./data/app.db",
			Usage:   "Database DSN (SQLite path or postgres:// URL)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("DATABASE_URL"), cli.EnvVar("DATABASE_DSN"), toml.TOML("database.dsn", configFile)),
		},
		// Mail flags
		&cli.StringFlag{
			Name:    "mail-provider",
			Value:   MailProviderLog,
			Usage:   "Mail transport (smtp, mailgun, log)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("MAIL_PROVIDER"), toml.TOML("mail.provider", configFile)),
		},
		&cli.StringFlag{
			Name:    "mail-queue",
			Value:   MailQueueMemory,
			Usage:   "Mail queue (memory, amqp)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("MAIL_QUEUE"), toml.TOML("mail.queue", configFile)),
		},
		&cli.IntFlag{
			Name:    "mail-workers",
			Value:   2,
			Usage:   "Number of mail worker goroutines",
			Sources: cli.NewValueSourceChain(cli.EnvVar("MAIL_WORKERS"), toml.TOML("mail.workers", configFile)),
		},
		&cli.IntFlag{
			Name:    "mail-queue-size",
			Value:   100,
			Usage:   "Capacity of the in-process mail queue",
			Sources: cli.NewValueSourceChain(cli.EnvVar("MAIL_QUEUE_SIZE"), toml.TOML("mail.queue_size", configFile)),
		},
		&cli.DurationFlag{
			Name:    "mail-send-timeout",
			Value:   30 * time.Second,
			Usage:   "Timeout for a single delivery attempt",
			Sources: cli.NewValueSourceChain(cli.EnvVar("MAIL_SEND_TIMEOUT"), toml.TOML("mail.send_timeout", configFile)),
		},
		&cli.StringFlag{
			Name:    "smtp-host",
			Usage:   "SMTP server host",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_HOST"), toml.TOML("smtp.host", configFile)),
		},
		&cli.IntFlag{
			Name:    "smtp-port",
			Value:   587,
			Usage:   "SMTP server port",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_PORT"), toml.TOML("smtp.port", configFile)),
		},
		&cli.StringFlag{
			Name:    "smtp-username",
			Usage:   "SMTP username",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_USERNAME"), toml.TOML("smtp.username", configFile)),
		},
		&cli.StringFlag{
			Name:    "smtp-password",
			Usage:   "SMTP password",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_PASSWORD"), toml.TOML("smtp.password", configFile)),
		},
		&cli.StringFlag{
			Name:    "smtp-from",
			Usage:   "Sender address",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_FROM"), toml.TOML("smtp.from", configFile)),
		},
		&cli.StringFlag{
			Name:    "smtp-from-name",
			Usage:   "Sender display name",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_FROM_NAME"), toml.TOML("smtp.from_name", configFile)),
		},
		&cli.BoolFlag{
			Name:    "smtp-tls",
			Value:   true,
			Usage:   "Require TLS for SMTP (implicit TLS on port 465, STARTTLS otherwise)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_TLS"), toml.TOML("smtp.tls", configFile)),
		},
		&cli.StringFlag{
			Name:    "mailgun-domain",
			Usage:   "Mailgun sending domain",
			Sources: cli.NewValueSourceChain(cli.EnvVar("MAILGUN_DOMAIN"), toml.TOML("mailgun.domain", configFile)),
		},
		&cli.StringFlag{
			Name:    "mailgun-api-key",
			Usage:   "Mailgun API key",
			Sources: cli.NewValueSourceChain(cli.EnvVar("MAILGUN_API_KEY"), toml.TOML("mailgun.api_key", configFile)),
		},
		&cli.StringFlag{
			Name:    "mailgun-api-base",
			Usage:   "Mailgun API base URL (set for the EU region)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("MAILGUN_API_BASE"), toml.TOML("mailgun.api_base", configFile)),
		},
		&cli.StringFlag{
			Name:    "mailgun-from",
			Usage:   "Mailgun sender address",
			Sources: cli.NewValueSourceChain(cli.EnvVar("MAILGUN_FROM"), toml.TOML("mailgun.from", configFile)),
		},
		&cli.StringFlag{
			Name:    "amqp-url",
			Usage:   "AMQP broker URL for the mail queue",
			Sources: cli.NewValueSourceChain(cli.EnvVar("AMQP_URL"), toml.TOML("amqp.url", configFile)),
		},
		&cli.StringFlag{
			Name:    "amqp-queue",
			Value:   "verification_emails",
			Usage:   "AMQP queue name for the mail queue",
			Sources: cli.NewValueSourceChain(cli.EnvVar("AMQP_QUEUE"), toml.TOML("amqp.queue", configFile)),
		},
	}
}
