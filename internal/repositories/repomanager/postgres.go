// Package repomanager provides the concrete RepositoryManager for
// PostgreSQL, wiring together repository constructors and database
// migrations (via goose).
package repomanager

import (
	"context"
	"database/sql"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/wordbank/lexstore/internal/dbx"
	"github.com/wordbank/lexstore/internal/migrations"
	"github.com/wordbank/lexstore/internal/repositories/changes"
	"github.com/wordbank/lexstore/internal/repositories/chunkmeta"
	"github.com/wordbank/lexstore/internal/repositories/chunks"
	"github.com/wordbank/lexstore/internal/repositories/entries"
	"github.com/wordbank/lexstore/internal/repositories/handles"
	"github.com/wordbank/lexstore/internal/repositories/locks"
	"github.com/wordbank/lexstore/internal/repositories/publications"
)

// PostgresRepositoryManager vends PostgreSQL-backed repository
// implementations and exposes a schema migration hook.
type PostgresRepositoryManager struct{}

// NewPostgresRepositoryManager constructs a PostgreSQL-backed
// RepositoryManager.
func NewPostgresRepositoryManager() RepositoryManager {
	return &PostgresRepositoryManager{}
}

// Chunks returns a chunks.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Chunks(db dbx.DBTX) chunks.Repository {
	return chunks.NewPostgresRepository(db)
}

// Entries returns an entries.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Entries(db dbx.DBTX) entries.Repository {
	return entries.NewPostgresRepository(db)
}

// Changes returns a changes.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Changes(db dbx.DBTX) changes.Repository {
	return changes.NewPostgresRepository(db)
}

// Locks returns a locks.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Locks(db dbx.DBTX) locks.Repository {
	return locks.NewPostgresRepository(db)
}

// Handles returns a handles.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Handles(db dbx.DBTX) handles.Repository {
	return handles.NewPostgresRepository(db)
}

// Publications returns a publications.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Publications(db dbx.DBTX) publications.Repository {
	return publications.NewPostgresRepository(db)
}

// ChunkMetadata returns a chunkmeta.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) ChunkMetadata(db dbx.DBTX) chunkmeta.Repository {
	return chunkmeta.NewPostgresRepository(db)
}

// gooseUpContext is a seam for testing RunMigrations.
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
