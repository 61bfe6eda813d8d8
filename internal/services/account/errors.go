// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package account

import (
	"errors"
	"strings"
)

var (
	ErrValidation         = errors.New("validation failed")
	ErrDuplicateEmail     = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountBlocked     = errors.New("account blocked")
	ErrInvalidToken       = errors.New("invalid verification token")
	ErrStoreFault         = errors.New("store failure")
)

// Validation codes reported in FieldError.Code.
const (
	CodeRequired = "required"
	CodeTooLong  = "too_long"
	CodeInvalid  = "invalid"
)

// FieldError describes one rejected form field.
type FieldError struct {
	Field string
	Code  string
}

// MessageID is the translation key for the error, e.g. "error_email_invalid".
func (f FieldError) MessageID() string {
	return "error_" + f.Field + "_" + f.Code
}

// ValidationError lists every field that failed validation. It matches
// ErrValidation with errors.Is.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + " " + f.Code
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// Code returns the code reported for field, or "" if the field passed.
func (e *ValidationError) Code(field string) string {
	for _, f := range e.Fields {
		if f.Field == field {
			return f.Code
		}
	}
	return ""
}
