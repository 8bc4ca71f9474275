package sessions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/estately/internal/common"
	"github.com/dmitrijs2005/estately/internal/dbx"
	"github.com/dmitrijs2005/estately/internal/server/models"
	"github.com/google/uuid"
)

// PostgresStore keeps the session in the refresh_token columns of the users
// table.
type PostgresStore struct {
	db dbx.DBTX
}

func NewPostgresStore(db dbx.DBTX) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Get(ctx context.Context, userID string) (*models.Session, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return nil, common.ErrorNotFound
	}

	query :=
		`SELECT refresh_token, refresh_token_expiry FROM users
		 WHERE id = $1
		 `

	var (
		digest sql.NullString
		expiry sql.NullTime
	)
	if err := s.db.QueryRowContext(ctx, query, userID).Scan(&digest, &expiry); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	if !digest.Valid || !expiry.Valid {
		return nil, common.ErrorNotFound
	}

	return &models.Session{UserID: userID, TokenDigest: digest.String, ExpiresAt: expiry.Time}, nil
}

func (s *PostgresStore) Save(ctx context.Context, userID, digest string, expiresAt time.Time) error {
	query :=
		`UPDATE users SET refresh_token = $2, refresh_token_expiry = $3, updated_at = now()
		 WHERE id = $1
		 `
	res, err := s.db.ExecContext(ctx, query, userID, digest, expiresAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if err := dbx.ExpectAffected(res); err != nil {
		if errors.Is(err, common.ErrorConflict) {
			return common.ErrorNotFound
		}
		return err
	}
	return nil
}

func (s *PostgresStore) Rotate(ctx context.Context, userID, oldDigest, newDigest string, expiresAt time.Time) error {
	query :=
		`UPDATE users SET refresh_token = $3, refresh_token_expiry = $4, updated_at = now()
		 WHERE id = $1 AND refresh_token = $2
		 `
	res, err := s.db.ExecContext(ctx, query, userID, oldDigest, newDigest, expiresAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return dbx.ExpectAffected(res)
}

func (s *PostgresStore) Clear(ctx context.Context, userID string) error {
	query :=
		`UPDATE users SET refresh_token = NULL, refresh_token_expiry = NULL, updated_at = now()
		 WHERE id = $1
		 `
	if _, err := s.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
