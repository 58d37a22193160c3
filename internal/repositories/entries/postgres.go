// Package entries provides the PostgreSQL-backed repository for dictionary
// entries and their latest / latest-published pointers.
package entries

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/wordbank/lexstore/internal/common"
	"github.com/wordbank/lexstore/internal/dbx"
	"github.com/wordbank/lexstore/internal/models"
)

// PostgresRepository implements entry storage over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a new entry with the given headword. The headword's
// unique constraint rejects duplicates; that error is returned wrapped for
// the service layer to interpret.
func (r *PostgresRepository) Create(ctx context.Context, headword string) (*models.Entry, error) {
	query := `
		INSERT INTO entries (headword)
		VALUES ($1)
		RETURNING id
	`
	entry := &models.Entry{Headword: headword}
	if err := r.db.QueryRowContext(ctx, query, headword).Scan(&entry.ID); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return entry, nil
}

// GetByID returns the entry with the given ID, or common.ErrNotFound.
func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*models.Entry, error) {
	query := `
		SELECT id, headword, deleted, latest_id, latest_published_id
		FROM entries
		WHERE id = $1
	`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

// GetByHeadword returns the entry with the given headword, or
// common.ErrNotFound.
func (r *PostgresRepository) GetByHeadword(ctx context.Context, headword string) (*models.Entry, error) {
	query := `
		SELECT id, headword, deleted, latest_id, latest_published_id
		FROM entries
		WHERE headword = $1
	`
	return r.scanOne(r.db.QueryRowContext(ctx, query, headword))
}

func (r *PostgresRepository) scanOne(row *sql.Row) (*models.Entry, error) {
	entry := &models.Entry{}
	if err := row.Scan(&entry.ID, &entry.Headword, &entry.Deleted, &entry.LatestID, &entry.LatestPublishedID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return entry, nil
}

// SetLatest points the entry's latest pointer at the given change record.
func (r *PostgresRepository) SetLatest(ctx context.Context, entryID int64, changeID int64) error {
	query := `
		UPDATE entries SET latest_id = $2
		WHERE id = $1
	`
	return r.exec(ctx, query, entryID, changeID)
}

// SetLatestPublished points the entry's latest-published pointer at the
// given change record, or clears it when changeID is invalid.
func (r *PostgresRepository) SetLatestPublished(ctx context.Context, entryID int64, changeID sql.NullInt64) error {
	query := `
		UPDATE entries SET latest_published_id = $2
		WHERE id = $1
	`
	return r.exec(ctx, query, entryID, changeID)
}

// UpdateHeadword renames the entry. History keeps the old headword via the
// per-record snapshot.
func (r *PostgresRepository) UpdateHeadword(ctx context.Context, entryID int64, headword string) error {
	query := `
		UPDATE entries SET headword = $2
		WHERE id = $1
	`
	return r.exec(ctx, query, entryID, headword)
}

// SetDeleted flips the soft-delete flag. Entries are never hard-deleted
// while history references them.
func (r *PostgresRepository) SetDeleted(ctx context.Context, entryID int64, deleted bool) error {
	query := `
		UPDATE entries SET deleted = $2
		WHERE id = $1
	`
	return r.exec(ctx, query, entryID, deleted)
}

func (r *PostgresRepository) exec(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}
