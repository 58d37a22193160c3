// Package publications provides the PostgreSQL-backed repository for the
// append-only publish/unpublish audit trail.
package publications

import (
	"context"
	"fmt"

	"github.com/wordbank/lexstore/internal/dbx"
	"github.com/wordbank/lexstore/internal/models"
)

// PostgresRepository implements publication-change storage over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Insert appends one audit row for a publish or unpublish action.
func (r *PostgresRepository) Insert(ctx context.Context, change *models.PublicationChange) (*models.PublicationChange, error) {
	query := `
		INSERT INTO publication_changes (change_record_id, ctype, datetime, user_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	err := r.db.QueryRowContext(ctx, query,
		change.ChangeRecordID, string(change.CType), change.Datetime, change.UserID,
	).Scan(&change.ID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return change, nil
}

// ExistsForRecord reports whether the change record has publication audit
// history.
func (r *PostgresRepository) ExistsForRecord(ctx context.Context, changeRecordID int64) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM publication_changes
			WHERE change_record_id = $1
		)
	`
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, changeRecordID).Scan(&exists); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return exists, nil
}
