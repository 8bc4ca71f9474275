// Package repomanager vends repository implementations bound to a DBTX and
// applies the schema migrations.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/estately/internal/dbx"
	"github.com/dmitrijs2005/estately/internal/server/repositories/sessions"
	"github.com/dmitrijs2005/estately/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Sessions(db dbx.DBTX) sessions.Store
	// Ping reports whether the backing stores are reachable.
	Ping(ctx context.Context) error
}
