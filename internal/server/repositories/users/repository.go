// Package users declares the repository contract for marketplace accounts.
package users

import (
	"context"

	"github.com/dmitrijs2005/estately/internal/server/models"
)

type Repository interface {
	// Create stores a new user. A duplicate email yields common.ErrorAlreadyExists.
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	// UpdateRole returns common.ErrorNotFound when no such user exists.
	UpdateRole(ctx context.Context, id string, role string) error
}
