// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package session

import (
	"log/slog"
	"net/http"
)

// Scope is the per-client session state seen by the services: at most one
// authenticated user id.
type Scope interface {
	UserID() (int64, bool)
	SetUserID(id int64) error
	Clear()
}

// CookieScope is a Scope backed by the session cookie of one request.
// Changes are written to the response immediately.
type CookieScope struct {
	manager *Manager
	w       http.ResponseWriter
	r       *http.Request

	loaded bool
	userID int64
}

// Scope binds the manager to a single request and response.
func (m *Manager) Scope(w http.ResponseWriter, r *http.Request) *CookieScope {
	return &CookieScope{manager: m, w: w, r: r}
}

// UserID returns the authenticated user id, if any.
func (s *CookieScope) UserID() (int64, bool) {
	if !s.loaded {
		s.loaded = true
		data, err := s.manager.Parse(s.r)
		if err != nil {
			slog.Debug("session_parse_failed", "error", err)
		}
		if data != nil {
			s.userID = data.UserID
		}
	}
	return s.userID, s.userID != 0
}

// SetUserID issues a fresh session cookie for id.
func (s *CookieScope) SetUserID(id int64) error {
	cookie, err := s.manager.Create(id)
	if err != nil {
		return err
	}
	http.SetCookie(s.w, cookie)
	s.loaded = true
	s.userID = id
	return nil
}

// Clear removes the session cookie, whether or not one was present.
func (s *CookieScope) Clear() {
	http.SetCookie(s.w, s.manager.Clear())
	s.loaded = true
	s.userID = 0
}
