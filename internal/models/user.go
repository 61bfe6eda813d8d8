// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import (
	"time"
)

// Status is the lifecycle state of an account.
type Status string

const (
	StatusUnverified Status = "unverified"
	StatusActive     Status = "active"
	StatusBlocked    Status = "blocked"
)

// Field limits, matching the VARCHAR sizes of the users table.
const (
	MaxNameLength  = 100
	MaxEmailLength = 255
)

type User struct { //nolint:govet // fieldalignment not critical for models
	ID           int64      `json:"id"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	Status       Status     `json:"status"`
	RegisteredAt time.Time  `json:"registered_at"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
	// VerificationTokenHash is the SHA-256 digest of the pending token; empty once consumed.
	VerificationTokenHash string `json:"-"`
}

// IsBlocked reports whether the account is blocked.
func (u *User) IsBlocked() bool {
	return u.Status == StatusBlocked
}
