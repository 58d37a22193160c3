package repomanager

import (
	"context"
	"database/sql"

	"github.com/wordbank/lexstore/internal/dbx"
	"github.com/wordbank/lexstore/internal/repositories/changes"
	"github.com/wordbank/lexstore/internal/repositories/chunkmeta"
	"github.com/wordbank/lexstore/internal/repositories/chunks"
	"github.com/wordbank/lexstore/internal/repositories/entries"
	"github.com/wordbank/lexstore/internal/repositories/handles"
	"github.com/wordbank/lexstore/internal/repositories/locks"
	"github.com/wordbank/lexstore/internal/repositories/publications"
)

// RepositoryManager vends repository implementations bound to a DBTX, so
// services can run several repositories inside one transaction by handing
// each of them the same *sql.Tx.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Chunks(db dbx.DBTX) chunks.Repository
	Entries(db dbx.DBTX) entries.Repository
	Changes(db dbx.DBTX) changes.Repository
	Locks(db dbx.DBTX) locks.Repository
	Handles(db dbx.DBTX) handles.Repository
	Publications(db dbx.DBTX) publications.Repository
	ChunkMetadata(db dbx.DBTX) chunkmeta.Repository
}
