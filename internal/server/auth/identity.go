package auth

import (
	"context"
	"errors"
	"time"
)

// Identity is the verified caller attached to a request. It never carries the
// password hash or refresh token.
type Identity struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	FirstName     string    `json:"firstName"`
	LastName      string    `json:"lastName"`
	Phone         string    `json:"phone"`
	Role          Role      `json:"role"`
	EmailVerified bool      `json:"emailVerified"`
	CreatedAt     time.Time `json:"createdAt"`
}

type ctxKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// IdentityFromContext returns the identity attached by the authentication
// middleware, if any.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(*Identity)
	return id, ok && id != nil
}

var (
	// ErrNoIdentity: the caller is not authenticated (maps to 401).
	ErrNoIdentity = errors.New("no identity")
	// ErrRoleNotPermitted: authenticated, but the role is not allowed (maps to 403).
	ErrRoleNotPermitted = errors.New("role not permitted")
)

// Require allows the identity when its verified role is one of allowed.
// An empty allowed list admits any authenticated identity.
func Require(id *Identity, allowed ...Role) error {
	if id == nil {
		return ErrNoIdentity
	}
	if len(allowed) == 0 {
		return nil
	}
	for _, r := range allowed {
		if id.Role == r {
			return nil
		}
	}
	return ErrRoleNotPermitted
}
