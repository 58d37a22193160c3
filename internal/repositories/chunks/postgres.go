// Package chunks provides the PostgreSQL-backed repository for the
// content-addressed chunk table.
package chunks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/wordbank/lexstore/internal/common"
	"github.com/wordbank/lexstore/internal/dbx"
	"github.com/wordbank/lexstore/internal/models"
)

// PostgresRepository implements chunk storage over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Insert stores the chunk if its hash is new. The ON CONFLICT clause makes
// concurrent inserts of identical content race-safe: the loser's write is
// a no-op.
func (r *PostgresRepository) Insert(ctx context.Context, chunk *models.Chunk) error {
	query := `
		INSERT INTO chunks (hash, data, is_normal)
		VALUES ($1, $2, $3)
		ON CONFLICT (hash) DO NOTHING
	`
	if _, err := r.db.ExecContext(ctx, query, chunk.Hash, chunk.Data, chunk.IsNormal); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Get returns the chunk with the given hash, or common.ErrNotFound.
func (r *PostgresRepository) Get(ctx context.Context, hash string) (*models.Chunk, error) {
	query := `
		SELECT hash, data, is_normal
		FROM chunks
		WHERE hash = $1
	`
	chunk := &models.Chunk{}
	if err := r.db.QueryRowContext(ctx, query, hash).Scan(&chunk.Hash, &chunk.Data, &chunk.IsNormal); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return chunk, nil
}

// SelectUnreferenced returns every chunk that no change record references.
func (r *PostgresRepository) SelectUnreferenced(ctx context.Context) ([]*models.Chunk, error) {
	query := `
		SELECT c.hash, c.data, c.is_normal
		FROM chunks c
		WHERE NOT EXISTS (
			SELECT 1 FROM change_records cr WHERE cr.chunk_hash = c.hash
		)
		ORDER BY c.hash
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Chunk
	for rows.Next() {
		var item models.Chunk
		if err := rows.Scan(&item.Hash, &item.Data, &item.IsNormal); err != nil {
			return nil, err
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// IsReferenced reports whether at least one change record still points at
// the chunk.
func (r *PostgresRepository) IsReferenced(ctx context.Context, hash string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM change_records WHERE chunk_hash = $1
		)
	`
	var referenced bool
	if err := r.db.QueryRowContext(ctx, query, hash).Scan(&referenced); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return referenced, nil
}

// Delete removes the chunks with the given hashes.
func (r *PostgresRepository) Delete(ctx context.Context, hashes []string) error {
	if len(hashes) == 0 {
		return nil
	}
	query := `
		DELETE FROM chunks
		WHERE hash = ANY($1)
	`
	if _, err := r.db.ExecContext(ctx, query, hashes); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
