package client

import (
	"context"
	"time"
)

// User is the public profile returned by the server.
type User struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	FirstName     string    `json:"firstName"`
	LastName      string    `json:"lastName"`
	Phone         string    `json:"phone"`
	Role          string    `json:"role"`
	EmailVerified bool      `json:"emailVerified"`
	CreatedAt     time.Time `json:"createdAt"`
	// ActivePersona is only set by Me when a persona was sent.
	ActivePersona string `json:"activePersona,omitempty"`
}

// Status is the result of the optional-auth status call.
type Status struct {
	Authenticated bool  `json:"authenticated"`
	User          *User `json:"user,omitempty"`
}

// RegisterRequest is the sign-up payload.
type RegisterRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Phone     string `json:"phone,omitempty"`
	Role      string `json:"role,omitempty"`
}

// Client is the contract the CLI depends on.
type Client interface {
	Register(ctx context.Context, req RegisterRequest) (*User, error)
	Login(ctx context.Context, email, password string) (*User, error)
	Me(ctx context.Context) (*User, error)
	Status(ctx context.Context) (*Status, error)
	Refresh(ctx context.Context) error
	ChangeRole(ctx context.Context, role string) (*User, error)
	Logout(ctx context.Context) error
	Ping(ctx context.Context) error
}
