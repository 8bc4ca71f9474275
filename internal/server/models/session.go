package models

import "time"

// Session is the single refresh token a user currently holds. Only the
// digest of the token is ever stored.
type Session struct {
	UserID      string
	TokenDigest string
	ExpiresAt   time.Time
}

// Expired reports whether the session is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
