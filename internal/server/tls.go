// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"context"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"codeberg.org/oliverandrich/accountdesk/internal/config"
	"golang.org/x/crypto/acme/autocert"
)

// TLSMode is how the server terminates TLS.
type TLSMode string

const (
	TLSModeOff    TLSMode = "off"
	TLSModeACME   TLSMode = "acme"
	TLSModeManual TLSMode = "manual"
)

// TLSResult is the listener setup for the resolved mode.
type TLSResult struct {
	TLSConfig   *tls.Config  // nil when TLS is off
	HTTPHandler http.Handler // ACME challenge and HTTPS redirect on :80
	Mode        TLSMode
}

// SetupTLS resolves cfg.TLS into a listener setup.
func SetupTLS(cfg *config.Config) (*TLSResult, error) {
	switch mode := resolveTLSMode(cfg); mode {
	case TLSModeACME:
		if err := acmeReady(cfg); err != nil {
			return nil, err
		}
		return setupACME(cfg)
	case TLSModeManual:
		return setupManual(&cfg.TLS)
	default:
		slog.Info("tls_mode", "mode", TLSModeOff)
		return &TLSResult{Mode: TLSModeOff}, nil
	}
}

// resolveTLSMode maps the configured mode to a concrete one. In auto mode
// localhost is served plainly, certificate files win over ACME, and a host
// that cannot use ACME falls back to plain HTTP.
func resolveTLSMode(cfg *config.Config) TLSMode {
	switch mode := TLSMode(strings.ToLower(cfg.TLS.Mode)); mode {
	case TLSModeOff, TLSModeACME, TLSModeManual:
		return mode
	case "auto", "":
	default:
		slog.Warn("tls_mode_unknown", "mode", mode, "using", "auto")
	}

	switch {
	case config.IsLocalhost(cfg.Server.Host):
		return TLSModeOff
	case cfg.TLS.CertFile != "" && cfg.TLS.KeyFile != "":
		return TLSModeManual
	}

	if err := acmeReady(cfg); err != nil {
		slog.Warn("tls_unavailable", "host", cfg.Server.Host, "reason", err)
		return TLSModeOff
	}
	return TLSModeACME
}

// acmeReady reports why Let's Encrypt cannot issue a certificate for the
// configured host, or nil if it can.
func acmeReady(cfg *config.Config) error {
	host := cfg.Server.Host
	switch {
	case config.IsLocalhost(host):
		return errors.New("acme needs a public host name, not localhost")
	case net.ParseIP(host) != nil:
		return fmt.Errorf("acme cannot issue certificates for IP address %s", host)
	case cfg.TLS.Email == "":
		return errors.New("acme requires tls.email (TLS_EMAIL)")
	}
	// HTTP-01 challenges arrive on :80, HTTPS is served on :443.
	for _, addr := range []string{":80", ":443"} {
		if !listenable(addr) {
			return fmt.Errorf("acme requires %s, which is in use", addr)
		}
	}
	return nil
}

func listenable(addr string) bool {
	ln, err := (&net.ListenConfig{}).Listen(context.Background(), "tcp", addr)
	if err != nil {
		return false
	}
	_ = ln.Close()
	return true
}

func setupACME(cfg *config.Config) (*TLSResult, error) {
	if cfg.Server.Port != 443 {
		slog.Warn("acme serves on :443, ignoring configured port", "port", cfg.Server.Port)
	}

	cacheDir := filepath.Join(cfg.TLS.CertDir, "acme")
	if err := os.MkdirAll(cacheDir, 0o700); err != nil {
		return nil, fmt.Errorf("create acme cache: %w", err)
	}

	manager := &autocert.Manager{
		Prompt:     autocert.AcceptTOS,
		Email:      cfg.TLS.Email,
		Cache:      autocert.DirCache(cacheDir),
		HostPolicy: autocert.HostWhitelist(cfg.Server.Host),
	}
	tlsConfig := manager.TLSConfig()
	tlsConfig.MinVersion = tls.VersionTLS12

	slog.Info("tls_mode", "mode", TLSModeACME, "host", cfg.Server.Host, "email", cfg.TLS.Email)
	return &TLSResult{
		Mode:        TLSModeACME,
		TLSConfig:   tlsConfig,
		HTTPHandler: manager.HTTPHandler(nil),
	}, nil
}

func setupManual(cfg *config.TLSConfig) (*TLSResult, error) {
	if cfg.CertFile == "" || cfg.KeyFile == "" {
		return nil, errors.New("manual TLS requires tls.cert_file and tls.key_file")
	}

	cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("load certificate: %w", err)
	}

	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		return nil, fmt.Errorf("parse certificate: %w", err)
	}
	sum := sha256.Sum256(leaf.Raw)
	slog.Info("tls_mode",
		"mode", TLSModeManual,
		"subject", leaf.Subject.CommonName,
		"expires", leaf.NotAfter,
		"sha256", hex.EncodeToString(sum[:]),
	)

	return &TLSResult{
		Mode: TLSModeManual,
		TLSConfig: &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		},
	}, nil
}
