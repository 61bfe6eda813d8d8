// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"codeberg.org/oliverandrich/accountdesk/internal/models"
	"github.com/samber/lo"
	"github.com/vinovest/sqlx"
)

const userColumns = `id, name, email, password_hash, status, registered_at, last_login_at, verification_token_hash`

// userRow mirrors the users table. Timestamps are unix microseconds.
type userRow struct {
	ID                    int64          `db:"id"`
	Name                  string         `db:"name"`
	Email                 string         `db:"email"`
	PasswordHash          string         `db:"password_hash"`
	Status                models.Status  `db:"status"`
	RegisteredAt          int64          `db:"registered_at"`
	LastLoginAt           sql.NullInt64  `db:"last_login_at"`
	VerificationTokenHash sql.NullString `db:"verification_token_hash"`
}

func (row *userRow) toModel() *models.User {
	user := &models.User{
		ID:                    row.ID,
		Name:                  row.Name,
		Email:                 row.Email,
		PasswordHash:          row.PasswordHash,
		Status:                row.Status,
		RegisteredAt:          time.UnixMicro(row.RegisteredAt).UTC(),
		VerificationTokenHash: row.VerificationTokenHash.String,
	}
	if row.LastLoginAt.Valid {
		t := time.UnixMicro(row.LastLoginAt.Int64).UTC()
		user.LastLoginAt = &t
	}
	return user
}

func nullMicros(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMicro(), Valid: true}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// normalizeEmail is applied on every write and lookup so the unique index is
// effectively case-insensitive.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CreateUser inserts a new user and sets its ID. The unique email index
// decides duplicates; a violation returns ErrDuplicateEmail.
func (r *Repository) CreateUser(ctx context.Context, user *models.User) error {
	if user.RegisteredAt.IsZero() {
		user.RegisteredAt = time.Now()
	}
	if user.Status == "" {
		user.Status = models.StatusUnverified
	}
	user.Email = normalizeEmail(user.Email)
	user.RegisteredAt = time.UnixMicro(user.RegisteredAt.UnixMicro()).UTC()

	query := r.db.Rebind(`INSERT INTO users (name, email, password_hash, status, registered_at, verification_token_hash)
		VALUES (?, ?, ?, ?, ?, ?) RETURNING id`)

	var id int64
	err := r.db.GetContext(ctx, &id, query,
		user.Name, user.Email, user.PasswordHash, string(user.Status),
		user.RegisteredAt.UnixMicro(), nullString(user.VerificationTokenHash))
	if err != nil {
		return wrapError(err)
	}

	user.ID = id
	return nil
}

func (r *Repository) getUser(ctx context.Context, q sqlx.QueryerContext, where string, args ...any) (*models.User, error) {
	var row userRow
	query := r.db.Rebind(`SELECT ` + userColumns + ` FROM users WHERE ` + where)
	if err := sqlx.GetContext(ctx, q, &row, query, args...); err != nil {
		return nil, wrapError(err)
	}
	return row.toModel(), nil
}

// GetUserByID retrieves a user by ID.
func (r *Repository) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	return r.getUser(ctx, r.db, "id = ?", id)
}

// GetUserByEmail retrieves a user by email, ignoring case.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getUser(ctx, r.db, "email = ?", normalizeEmail(email))
}

// GetUserByVerificationToken retrieves the user holding the given token digest.
func (r *Repository) GetUserByVerificationToken(ctx context.Context, tokenHash string) (*models.User, error) {
	if tokenHash == "" {
		return nil, ErrNotFound
	}
	return r.getUser(ctx, r.db, "verification_token_hash = ?", tokenHash)
}

// GetUsersByIDs returns the existing users among ids. Missing ids are ignored.
func (r *Repository) GetUsersByIDs(ctx context.Context, ids []int64) ([]models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In(`SELECT `+userColumns+` FROM users WHERE id IN (?) ORDER BY id`, ids)
	if err != nil {
		return nil, err
	}

	var rows []userRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	return toModels(rows), nil
}

// ListUsers returns all users, most recent login first. Users that never
// logged in come last; ties fall back to registration time, then id.
func (r *Repository) ListUsers(ctx context.Context) ([]models.User, error) {
	var rows []userRow
	err := r.db.SelectContext(ctx, &rows, `SELECT `+userColumns+` FROM users
		ORDER BY last_login_at IS NULL, last_login_at DESC, registered_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	return toModels(rows), nil
}

func toModels(rows []userRow) []models.User {
	users := make([]models.User, 0, len(rows))
	for i := range rows {
		users = append(users, *rows[i].toModel())
	}
	return users
}

// UpdateUser writes all mutable fields of user.
func (r *Repository) UpdateUser(ctx context.Context, user *models.User) error {
	query := r.db.Rebind(`UPDATE users
		SET name = ?, email = ?, password_hash = ?, status = ?, last_login_at = ?, verification_token_hash = ?
		WHERE id = ?`)

	res, err := r.db.ExecContext(ctx, query,
		user.Name, normalizeEmail(user.Email), user.PasswordHash, string(user.Status),
		nullMicros(user.LastLoginAt), nullString(user.VerificationTokenHash), user.ID)
	if err != nil {
		return wrapError(err)
	}
	return requireAffected(res)
}

// TouchLastLogin records a login at the given time. The stored value only
// moves forward; an older timestamp is ignored.
func (r *Repository) TouchLastLogin(ctx context.Context, id int64, at time.Time) error {
	micros := at.UnixMicro()
	query := r.db.Rebind(`UPDATE users SET last_login_at = ?
		WHERE id = ? AND (last_login_at IS NULL OR last_login_at < ?)`)

	if _, err := r.db.ExecContext(ctx, query, micros, id, micros); err != nil {
		return fmt.Errorf("touch last login: %w", err)
	}
	return nil
}

// ConsumeVerificationToken clears the token and activates an unverified
// account. The update is conditional on the token, so it succeeds once.
func (r *Repository) ConsumeVerificationToken(ctx context.Context, tokenHash string) (*models.User, error) {
	if tokenHash == "" {
		return nil, ErrNotFound
	}

	var user *models.User
	err := r.withTx(ctx, func(tx *sqlx.Tx) error {
		found, err := r.getUser(ctx, tx, "verification_token_hash = ?", tokenHash)
		if err != nil {
			return err
		}

		if found.Status == models.StatusUnverified {
			found.Status = models.StatusActive
		}

		res, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE users SET status = ?, verification_token_hash = NULL
			WHERE id = ? AND verification_token_hash = ?`), string(found.Status), found.ID, tokenHash)
		if err != nil {
			return err
		}
		if err := requireAffected(res); err != nil {
			return err
		}

		found.VerificationTokenHash = ""
		user = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// maxBatchIDs caps the ids bound into one IN list. SQLite allows 32766
// variables per statement, PostgreSQL 65535.
const maxBatchIDs = 500

// SetStatus changes the status of the given users in one transaction. When
// from is non-empty only users currently in one of those states are changed.
// It returns the number of rows changed.
func (r *Repository) SetStatus(ctx context.Context, ids []int64, status models.Status, from ...models.Status) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	base := `UPDATE users SET status = ? WHERE id IN (?)`
	states := lo.Map(from, func(s models.Status, _ int) string { return string(s) })
	if len(states) > 0 {
		base += ` AND status IN (?)`
	}

	n, err := r.execBatched(ctx, ids, func(batch []int64) (string, []any, error) {
		args := []any{string(status), batch}
		if len(states) > 0 {
			args = append(args, states)
		}
		return sqlx.In(base, args...)
	})
	if err != nil {
		return 0, fmt.Errorf("set status %s: %w", status, err)
	}
	return n, nil
}

// DeleteUsers hard-deletes the given users and returns how many existed.
func (r *Repository) DeleteUsers(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	n, err := r.execBatched(ctx, ids, func(batch []int64) (string, []any, error) {
		return sqlx.In(`DELETE FROM users WHERE id IN (?)`, batch)
	})
	if err != nil {
		return 0, fmt.Errorf("delete users: %w", err)
	}
	return n, nil
}

// execBatched runs the statement built for each chunk of ids inside one
// transaction and sums the affected rows.
func (r *Repository) execBatched(ctx context.Context, ids []int64, build func([]int64) (string, []any, error)) (int64, error) {
	var total int64
	err := r.withTx(ctx, func(tx *sqlx.Tx) error {
		for _, batch := range lo.Chunk(ids, maxBatchIDs) {
			query, args, err := build(batch)
			if err != nil {
				return err
			}
			res, err := tx.ExecContext(ctx, tx.Rebind(query), args...)
			if err != nil {
				return err
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			total += n
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}

// DeleteUsersByStatus hard-deletes every user in the given state.
func (r *Repository) DeleteUsersByStatus(ctx context.Context, status models.Status) (int64, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM users WHERE status = ?`), string(status))
	if err != nil {
		return 0, fmt.Errorf("delete users by status: %w", err)
	}
	return res.RowsAffected()
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
