// Package common defines shared constants and sentinel errors used across
// the server and client layers of vidauth. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Input errors.
	ErrValidation = errors.New("validation error")

	// Repository-level errors.
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("already exists")

	// Authentication failures (wrong password, rejected token, rotated-away refresh token).
	ErrUnauthorized = errors.New("unauthorized")

	// Collaborator failures (store, asset host, timeouts).
	ErrUnavailable = errors.New("service unavailable")

	// Token errors. Every sub-kind is wrapped together with ErrInvalidToken.
	ErrInvalidToken    = errors.New("invalid token")
	ErrTokenMalformed  = errors.New("token malformed")
	ErrTokenExpired    = errors.New("token expired")
	ErrTokenWrongScope = errors.New("token has wrong scope")

	// Stored password hash cannot be parsed.
	ErrCorruptHash = errors.New("corrupt password hash")
)
