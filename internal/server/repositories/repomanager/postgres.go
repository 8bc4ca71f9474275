package repomanager

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/estately/internal/dbx"
	"github.com/dmitrijs2005/estately/internal/server/migrations"
	"github.com/dmitrijs2005/estately/internal/server/repositories/sessions"
	"github.com/dmitrijs2005/estately/internal/server/repositories/users"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/redis/go-redis/v9"
)

// PostgresRepositoryManager vends PostgreSQL-backed repositories. When a
// Redis client is attached, sessions live in Redis instead of the users
// table.
type PostgresRepositoryManager struct {
	db    *sql.DB
	redis *sessions.RedisStore
}

func (m *PostgresRepositoryManager) Users(db dbx.DBTX) users.Repository {
	return users.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Sessions(db dbx.DBTX) sessions.Store {
	if m.redis != nil {
		return m.redis
	}
	return sessions.NewPostgresStore(db)
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations sets up goose with the embedded migrations and runs them
// against the provided database connection.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	if err := gooseUpContext(ctx, db, "."); err != nil {
		return err
	}
	return nil
}

func (m *PostgresRepositoryManager) Ping(ctx context.Context) error {
	if err := m.db.PingContext(ctx); err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	if m.redis != nil {
		if err := m.redis.Ping(ctx); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	return nil
}

// NewPostgresRepositoryManager constructs a PostgreSQL-backed RepositoryManager.
func NewPostgresRepositoryManager(db *sql.DB) (RepositoryManager, error) {
	return &PostgresRepositoryManager{db: db}, nil
}

// NewPostgresRedisRepositoryManager keeps users in PostgreSQL and sessions in
// Redis.
func NewPostgresRedisRepositoryManager(db *sql.DB, rdb *redis.Client) (RepositoryManager, error) {
	if rdb == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	return &PostgresRepositoryManager{db: db, redis: sessions.NewRedisStore(rdb)}, nil
}
