// Package chunkmeta provides the PostgreSQL-backed repository for the
// derived, recomputable chunk metadata cache. Rows here are never
// authoritative; the ON DELETE CASCADE on the chunk FK drops them with
// their chunk during garbage collection.
package chunkmeta

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/wordbank/lexstore/internal/common"
	"github.com/wordbank/lexstore/internal/dbx"
	"github.com/wordbank/lexstore/internal/models"
)

// PostgresRepository implements chunk-metadata storage over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Upsert stores or refreshes the metadata row for a chunk.
func (r *PostgresRepository) Upsert(ctx context.Context, meta *models.ChunkMetadata) error {
	query := `
		INSERT INTO chunk_metadata (chunk_hash, xml_hash, fields)
		VALUES ($1, $2, $3)
		ON CONFLICT (chunk_hash)
		DO UPDATE SET xml_hash = EXCLUDED.xml_hash, fields = EXCLUDED.fields
	`
	if _, err := r.db.ExecContext(ctx, query, meta.ChunkHash, meta.XMLHash, meta.Fields); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Get returns the metadata row for chunkHash, or common.ErrNotFound.
func (r *PostgresRepository) Get(ctx context.Context, chunkHash string) (*models.ChunkMetadata, error) {
	query := `
		SELECT chunk_hash, xml_hash, fields
		FROM chunk_metadata
		WHERE chunk_hash = $1
	`
	meta := &models.ChunkMetadata{}
	if err := r.db.QueryRowContext(ctx, query, chunkHash).Scan(&meta.ChunkHash, &meta.XMLHash, &meta.Fields); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return meta, nil
}
