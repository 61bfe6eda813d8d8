// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package session implements signed cookie sessions holding the
// authenticated user id.
package session

import (
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"codeberg.org/oliverandrich/accountdesk/internal/config"
	"github.com/gorilla/securecookie"
)

// keyLength is the required length of hash and block keys in bytes.
const keyLength = 32

// Data is the payload stored in the session cookie.
type Data struct {
	UserID    int64     `json:"uid"`
	ExpiresAt time.Time `json:"exp"`
}

// Manager encodes and decodes session cookies.
type Manager struct {
	codec      *securecookie.SecureCookie
	cookieName string
	maxAge     int
	secure     bool
}

// NewManager creates a session manager from the config. An empty hash key
// generates a random one, which invalidates sessions on every restart.
func NewManager(cfg *config.SessionConfig, secure bool) (*Manager, error) {
	hashKey, err := decodeKey(cfg.HashKey, "hash")
	if err != nil {
		return nil, err
	}
	if hashKey == nil {
		hashKey = securecookie.GenerateRandomKey(keyLength)
		if hashKey == nil {
			return nil, errors.New("generate session hash key: no randomness available")
		}
		slog.Warn("session_hash_key_generated", "hint", "set session.hash_key to keep sessions across restarts")
	}

	blockKey, err := decodeKey(cfg.BlockKey, "block")
	if err != nil {
		return nil, err
	}

	codec := securecookie.New(hashKey, blockKey)
	codec.MaxAge(cfg.MaxAge)
	codec.SetSerializer(securecookie.JSONEncoder{})

	return &Manager{
		codec:      codec,
		cookieName: cfg.CookieName,
		maxAge:     cfg.MaxAge,
		secure:     secure,
	}, nil
}

func decodeKey(value, kind string) ([]byte, error) {
	if value == "" {
		return nil, nil
	}
	key, err := hex.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("invalid session %s key: %w", kind, err)
	}
	if len(key) != keyLength {
		return nil, fmt.Errorf("invalid session %s key: must be %d bytes, got %d", kind, keyLength, len(key))
	}
	return key, nil
}

// Create returns a session cookie bound to userID.
func (m *Manager) Create(userID int64) (*http.Cookie, error) {
	data := Data{
		UserID:    userID,
		ExpiresAt: time.Now().Add(time.Duration(m.maxAge) * time.Second),
	}

	value, err := m.codec.Encode(m.cookieName, data)
	if err != nil {
		return nil, fmt.Errorf("encode session: %w", err)
	}

	return m.cookie(value, m.maxAge), nil
}

// Parse reads the session from the request. A missing, tampered or expired
// cookie yields nil data and no error.
func (m *Manager) Parse(r *http.Request) (*Data, error) {
	cookie, err := r.Cookie(m.cookieName)
	if errors.Is(err, http.ErrNoCookie) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var data Data
	if err := m.codec.Decode(m.cookieName, cookie.Value, &data); err != nil {
		return nil, nil //nolint:nilerr // an undecodable cookie is an anonymous request
	}

	if data.UserID == 0 || time.Now().After(data.ExpiresAt) {
		return nil, nil
	}

	return &data, nil
}

// Clear returns a cookie that removes the session.
func (m *Manager) Clear() *http.Cookie {
	return m.cookie("", -1)
}

func (m *Manager) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     m.cookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}
}
