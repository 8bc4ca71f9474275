package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/estately/internal/dbx"
	"github.com/dmitrijs2005/estately/internal/server/repositories/memory"
	"github.com/dmitrijs2005/estately/internal/server/repositories/sessions"
	"github.com/dmitrijs2005/estately/internal/server/repositories/users"
)

// InMemoryRepositoryManager serves every repository from one memory.Store
// and ignores the DBTX it is given.
type InMemoryRepositoryManager struct {
	store *memory.Store
}

func NewInMemoryRepositoryManager() *InMemoryRepositoryManager {
	return &InMemoryRepositoryManager{store: memory.NewStore()}
}

func (m *InMemoryRepositoryManager) Users(dbx.DBTX) users.Repository              { return m.store }
func (m *InMemoryRepositoryManager) Sessions(dbx.DBTX) sessions.Store             { return m.store }
func (m *InMemoryRepositoryManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *InMemoryRepositoryManager) Ping(context.Context) error                   { return nil }

// Store exposes the underlying store, mainly for tests.
func (m *InMemoryRepositoryManager) Store() *memory.Store { return m.store }
