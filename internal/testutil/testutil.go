// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package testutil provides test helpers and fixtures.
package testutil

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"codeberg.org/oliverandrich/accountdesk/internal/database"
	"codeberg.org/oliverandrich/accountdesk/internal/models"
	"codeberg.org/oliverandrich/accountdesk/internal/repository"
	"codeberg.org/oliverandrich/accountdesk/internal/services/email"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"github.com/vinovest/sqlx"
	"golang.org/x/crypto/bcrypt"
)

// TestPassword is the password of every user created by NewTestUser.
const TestPassword = "pw123"

// NewTestDB creates an in-memory SQLite database for tests.
// Returns both the database connection and the repository for convenience.
func NewTestDB(t *testing.T) (*sqlx.DB, *repository.Repository) {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	repo := repository.New(db)
	return db, repo
}

// UserOption customizes a user created by NewTestUser.
type UserOption func(*models.User)

// WithStatus sets the initial status.
func WithStatus(status models.Status) UserOption {
	return func(u *models.User) { u.Status = status }
}

// WithRegisteredAt sets the registration time.
func WithRegisteredAt(at time.Time) UserOption {
	return func(u *models.User) { u.RegisteredAt = at }
}

// WithToken stores the digest of token as the pending verification token.
func WithToken(token string) UserOption {
	return func(u *models.User) { u.VerificationTokenHash = email.HashToken(token) }
}

// NewTestUser creates a test user with TestPassword in the database.
// Users are Active unless an option says otherwise.
func NewTestUser(t *testing.T, repo *repository.Repository, name, address string, opts ...UserOption) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(TestPassword), bcrypt.MinCost)
	require.NoError(t, err)

	user := &models.User{
		Name:         name,
		Email:        address,
		PasswordHash: string(hash),
		Status:       models.StatusActive,
	}
	for _, opt := range opts {
		opt(user)
	}

	require.NoError(t, repo.CreateUser(context.Background(), user))
	return user
}

// Session is an in-memory session scope.
type Session struct {
	ID      int64
	Cleared int
}

// NewSession returns a session bound to userID; 0 means anonymous.
func NewSession(userID int64) *Session {
	return &Session{ID: userID}
}

// UserID returns the bound user id.
func (s *Session) UserID() (int64, bool) {
	return s.ID, s.ID != 0
}

// SetUserID binds the session to id.
func (s *Session) SetUserID(id int64) error {
	s.ID = id
	return nil
}

// Clear removes the binding and counts the call.
func (s *Session) Clear() {
	s.ID = 0
	s.Cleared++
}

// Verification is one recorded verification email.
type Verification struct {
	To    string
	Name  string
	Token string
}

// Notifier records verification emails instead of sending them.
type Notifier struct {
	mu   sync.Mutex
	sent []Verification
}

// SendVerificationEmail records the call.
func (n *Notifier) SendVerificationEmail(_ context.Context, to, name, token string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, Verification{To: to, Name: name, Token: token})
}

// Sent returns the recorded emails.
func (n *Notifier) Sent() []Verification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Verification(nil), n.sent...)
}

// Last returns the most recent email or fails the test.
func (n *Notifier) Last(t *testing.T) Verification {
	t.Helper()
	sent := n.Sent()
	require.NotEmpty(t, sent, "no verification email recorded")
	return sent[len(sent)-1]
}

// NewEchoContext creates an Echo context for handler tests.
func NewEchoContext(e *echo.Echo, method, path string, body io.Reader) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, path, body)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	return c, rec
}

// NewFormRequest creates a urlencoded POST request.
func NewFormRequest(path string, form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	return req
}
