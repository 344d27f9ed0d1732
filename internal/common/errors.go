// Package common defines shared constants and sentinel errors used across
// client and server layers of burnnote. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound    = errors.New("not found")
	ErrAlreadyRead = errors.New("already read")

	// Service-level errors (generic/internal flow control).
	ErrInternal     = errors.New("internal error")
	ErrUnauthorized = errors.New("unauthorized")
	ErrExpired      = errors.New("expired")

	// Validation errors: malformed or missing note fields.
	ErrValidation = errors.New("validation error")

	// Client-side errors (decrypt failures, bad share tokens).
	ErrBadShareToken = errors.New("invalid share token")
)
