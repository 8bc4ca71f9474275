// Package sessions stores the single refresh-token session each user holds.
//
// Only token digests pass through this package. Rotation is a
// compare-and-swap so that of two concurrent refreshes presenting the same
// token exactly one wins.
package sessions

import (
	"context"
	"time"

	"github.com/dmitrijs2005/estately/internal/server/models"
)

type Store interface {
	// Get returns the current session or common.ErrorNotFound.
	Get(ctx context.Context, userID string) (*models.Session, error)
	// Save overwrites whatever session the user had.
	Save(ctx context.Context, userID, digest string, expiresAt time.Time) error
	// Rotate replaces the session only if the stored digest still equals
	// oldDigest; otherwise it returns common.ErrorConflict.
	Rotate(ctx context.Context, userID, oldDigest, newDigest string, expiresAt time.Time) error
	// Clear drops the session. Clearing an absent session is not an error.
	Clear(ctx context.Context, userID string) error
}
