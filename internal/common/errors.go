// Package common defines shared constants and sentinel errors used across
// client and server layers of estately. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")
	ErrorConflict      = errors.New("conflict")

	// Service-level errors.
	ErrorInternal         = errors.New("internal error")
	ErrValidation         = errors.New("validation error")
	ErrInvalidCredentials = errors.New("invalid credentials")

	// Refresh flow errors. All of them are reported to clients with the same
	// message so a caller cannot tell which check failed.
	ErrRefreshRequired     = errors.New("refresh token required")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrRefreshExpired      = errors.New("refresh token expired")
)

// IsRefreshFailure reports whether err is one of the refresh flow errors.
func IsRefreshFailure(err error) bool {
	return errors.Is(err, ErrRefreshRequired) ||
		errors.Is(err, ErrInvalidRefreshToken) ||
		errors.Is(err, ErrRefreshExpired)
}
