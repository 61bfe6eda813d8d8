// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package account implements registration, email verification, login and
// logout.
package account

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"codeberg.org/oliverandrich/accountdesk/internal/models"
	"codeberg.org/oliverandrich/accountdesk/internal/repository"
	"codeberg.org/oliverandrich/accountdesk/internal/services/email"
	"codeberg.org/oliverandrich/accountdesk/internal/services/session"
	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"
)

// dummyHash is compared against when the email is unknown so that both
// failure paths cost one bcrypt comparison.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("dummy-password-for-timing"), bcrypt.DefaultCost)

// Store is the subset of the user store the service needs.
type Store interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	TouchLastLogin(ctx context.Context, id int64, at time.Time) error
	ConsumeVerificationToken(ctx context.Context, tokenHash string) (*models.User, error)
}

// Notifier sends verification emails. Implementations must not block the
// caller on delivery.
type Notifier interface {
	SendVerificationEmail(ctx context.Context, to, name, token string)
}

type Service struct {
	store     Store
	notifier  Notifier
	validator *validator.Validate
	cost      int
	now       func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithPasswordCost sets the bcrypt cost for new password hashes.
func WithPasswordCost(cost int) Option {
	return func(s *Service) { s.cost = cost }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(store Store, notifier Notifier, opts ...Option) *Service {
	s := &Service{
		store:     store,
		notifier:  notifier,
		validator: newValidator(),
		cost:      bcrypt.DefaultCost,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates an unverified account and hands the verification email
// to the notifier. Delivery problems never affect the result.
func (s *Service) Register(ctx context.Context, params RegisterParams) (int64, error) {
	params.normalize()
	if err := s.validate(&params); err != nil {
		return 0, err
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(params.Password), s.cost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return 0, &ValidationError{Fields: []FieldError{{Field: "password", Code: CodeTooLong}}}
	}
	if err != nil {
		slog.Error("register_failed", "email", params.Email, "error", err)
		return 0, ErrStoreFault
	}

	token, tokenHash, err := email.GenerateToken()
	if err != nil {
		slog.Error("register_failed", "email", params.Email, "error", err)
		return 0, ErrStoreFault
	}

	user := &models.User{
		Name:                  params.Name,
		Email:                 params.Email,
		PasswordHash:          string(passwordHash),
		Status:                models.StatusUnverified,
		RegisteredAt:          s.now(),
		VerificationTokenHash: tokenHash,
	}

	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			slog.Info("register_duplicate", "email", params.Email)
			return 0, ErrDuplicateEmail
		}
		slog.Error("register_failed", "email", params.Email, "error", err)
		return 0, ErrStoreFault
	}

	slog.Info("register_success", "user_id", user.ID, "email", user.Email)
	s.notifier.SendVerificationEmail(ctx, user.Email, user.Name, token)

	return user.ID, nil
}

// Login checks the credentials and binds sess to the user. Unverified
// accounts may log in; blocked accounts may not.
func (s *Service) Login(ctx context.Context, sess session.Scope, address, password string) (*models.User, error) {
	user, err := s.store.GetUserByEmail(ctx, address)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
			slog.Warn("login_failed", "email", address, "reason", "user_not_found")
			return nil, ErrInvalidCredentials
		}
		slog.Error("login_failed", "email", address, "error", err)
		return nil, ErrStoreFault
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		slog.Warn("login_failed", "email", address, "reason", "invalid_password")
		return nil, ErrInvalidCredentials
	}

	if user.IsBlocked() {
		slog.Warn("login_failed", "user_id", user.ID, "reason", "blocked")
		return nil, ErrAccountBlocked
	}

	now := s.now().UTC().Truncate(time.Microsecond)
	if err := s.store.TouchLastLogin(ctx, user.ID, now); err != nil {
		slog.Error("login_failed", "user_id", user.ID, "error", err)
		return nil, ErrStoreFault
	}
	if user.LastLoginAt == nil || user.LastLoginAt.Before(now) {
		user.LastLoginAt = &now
	}

	if err := sess.SetUserID(user.ID); err != nil {
		slog.Error("login_failed", "user_id", user.ID, "error", err)
		return nil, ErrStoreFault
	}

	slog.Info("login_success", "user_id", user.ID)
	return user, nil
}

// VerifyEmail consumes a verification token. Unverified accounts become
// Active; other states are kept. The token is single-use either way.
func (s *Service) VerifyEmail(ctx context.Context, token string) error {
	if token == "" {
		return ErrInvalidToken
	}

	user, err := s.store.ConsumeVerificationToken(ctx, email.HashToken(token))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			slog.Warn("verify_failed", "reason", "unknown_token")
			return ErrInvalidToken
		}
		slog.Error("verify_failed", "error", err)
		return ErrStoreFault
	}

	slog.Info("verify_success", "user_id", user.ID, "status", user.Status)
	return nil
}

// Logout clears sess whether or not it was bound.
func (s *Service) Logout(sess session.Scope) {
	sess.Clear()
}
