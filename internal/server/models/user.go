// Package models defines server-side data models persisted by the
// repositories.
package models

import "time"

// User is a marketplace account.
type User struct {
	ID    string
	Email string
	// PasswordHash is nil for accounts that can only sign in through an
	// external identity provider.
	PasswordHash  *string
	FirstName     string
	LastName      string
	Phone         string
	Role          string
	EmailVerified bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
