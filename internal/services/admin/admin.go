// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package admin implements the user management panel. Every operation
// re-authenticates the session against the store first, so a blocked or
// deleted user is evicted on their next action.
package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"codeberg.org/oliverandrich/accountdesk/internal/models"
	"codeberg.org/oliverandrich/accountdesk/internal/repository"
	"codeberg.org/oliverandrich/accountdesk/internal/services/session"
	"github.com/samber/lo"
)

var (
	ErrUnauthenticated = errors.New("not authenticated")
	// ErrSessionEnded is returned when the bound user was blocked or deleted.
	ErrSessionEnded = fmt.Errorf("%w: session ended", ErrUnauthenticated)
	ErrNoSelection  = errors.New("no users selected")
	ErrStoreFault   = errors.New("store failure")
)

// Store is the subset of the user store the service needs.
type Store interface {
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	SetStatus(ctx context.Context, ids []int64, status models.Status, from ...models.Status) (int64, error)
	DeleteUsers(ctx context.Context, ids []int64) (int64, error)
	DeleteUsersByStatus(ctx context.Context, status models.Status) (int64, error)
}

// Result reports a batch action.
type Result struct {
	Count int
	// SelfAffected is set when the action hit the acting user, whose
	// session has then been cleared.
	SelfAffected bool
}

// Listing is the data behind the admin page.
type Listing struct {
	Current *models.User
	Users   []models.User
}

type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// Authenticate resolves the user bound to sess. A missing or blocked user
// clears the session.
func (s *Service) Authenticate(ctx context.Context, sess session.Scope) (*models.User, error) {
	id, ok := sess.UserID()
	if !ok {
		return nil, ErrUnauthenticated
	}

	user, err := s.store.GetUserByID(ctx, id)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		sess.Clear()
		slog.Info("session_evicted", "user_id", id, "reason", "deleted")
		return nil, ErrSessionEnded
	case err != nil:
		slog.Error("authenticate_failed", "user_id", id, "error", err)
		return nil, ErrStoreFault
	case user.IsBlocked():
		sess.Clear()
		slog.Info("session_evicted", "user_id", id, "reason", "blocked")
		return nil, ErrSessionEnded
	}
	return user, nil
}

// ListUsers returns all users, most recent login first. Users who never
// logged in come last, newest registration first.
func (s *Service) ListUsers(ctx context.Context, sess session.Scope) (*Listing, error) {
	actor, err := s.Authenticate(ctx, sess)
	if err != nil {
		return nil, err
	}

	users, err := s.store.ListUsers(ctx)
	if err != nil {
		slog.Error("list_users_failed", "actor_id", actor.ID, "error", err)
		return nil, ErrStoreFault
	}
	return &Listing{Current: actor, Users: users}, nil
}

// Block sets every selected user to Blocked.
func (s *Service) Block(ctx context.Context, sess session.Scope, ids []int64) (Result, error) {
	return s.batch(ctx, sess, ids, "users_blocked", func(ids []int64) (int64, error) {
		return s.store.SetStatus(ctx, ids, models.StatusBlocked)
	}, true)
}

// Unblock activates the selected users that are currently Blocked. Others
// are left untouched and not counted.
func (s *Service) Unblock(ctx context.Context, sess session.Scope, ids []int64) (Result, error) {
	return s.batch(ctx, sess, ids, "users_unblocked", func(ids []int64) (int64, error) {
		return s.store.SetStatus(ctx, ids, models.StatusActive, models.StatusBlocked)
	}, false)
}

// Delete removes the selected users.
func (s *Service) Delete(ctx context.Context, sess session.Scope, ids []int64) (Result, error) {
	return s.batch(ctx, sess, ids, "users_deleted", func(ids []int64) (int64, error) {
		return s.store.DeleteUsers(ctx, ids)
	}, true)
}

// DeleteUnverified removes every Unverified user regardless of selection.
func (s *Service) DeleteUnverified(ctx context.Context, sess session.Scope) (Result, error) {
	actor, err := s.Authenticate(ctx, sess)
	if err != nil {
		return Result{}, err
	}

	n, err := s.store.DeleteUsersByStatus(ctx, models.StatusUnverified)
	if err != nil {
		slog.Error("unverified_deleted_failed", "actor_id", actor.ID, "error", err)
		return Result{}, ErrStoreFault
	}

	res := Result{Count: int(n), SelfAffected: actor.Status == models.StatusUnverified}
	if res.SelfAffected {
		sess.Clear()
	}
	slog.Info("unverified_deleted", "actor_id", actor.ID, "count", res.Count, "self", res.SelfAffected)
	return res, nil
}

func (s *Service) batch(
	ctx context.Context,
	sess session.Scope,
	ids []int64,
	event string,
	apply func(ids []int64) (int64, error),
	endsSelf bool,
) (Result, error) {
	actor, err := s.Authenticate(ctx, sess)
	if err != nil {
		return Result{}, err
	}

	ids = selection(ids)
	if len(ids) == 0 {
		return Result{}, ErrNoSelection
	}

	n, err := apply(ids)
	if err != nil {
		slog.Error(event+"_failed", "actor_id", actor.ID, "ids", ids, "error", err)
		return Result{}, ErrStoreFault
	}

	res := Result{Count: int(n), SelfAffected: endsSelf && lo.Contains(ids, actor.ID)}
	if res.SelfAffected {
		sess.Clear()
	}
	slog.Info(event, "actor_id", actor.ID, "count", res.Count, "self", res.SelfAffected)
	return res, nil
}

// selection drops invalid and repeated ids.
func selection(ids []int64) []int64 {
	return lo.Uniq(lo.Filter(ids, func(id int64, _ int) bool {
		return id > 0
	}))
}
