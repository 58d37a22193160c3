// Package handles provides the PostgreSQL-backed repository for per-session
// entry handles.
package handles

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/wordbank/lexstore/internal/common"
	"github.com/wordbank/lexstore/internal/dbx"
	"github.com/wordbank/lexstore/internal/models"
)

const uniqueViolation = "23505"

// PostgresRepository implements handle storage over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Get returns the handle row for (session, handle), or common.ErrNotFound.
func (r *PostgresRepository) Get(ctx context.Context, session string, handle int) (*models.Handle, error) {
	query := `
		SELECT id, session, handle, entry_id
		FROM handles
		WHERE session = $1 AND handle = $2
	`
	return r.scanOne(r.db.QueryRowContext(ctx, query, session, handle))
}

// GetByEntry returns the session's handle for entryID, or common.ErrNotFound.
func (r *PostgresRepository) GetByEntry(ctx context.Context, session string, entryID int64) (*models.Handle, error) {
	query := `
		SELECT id, session, handle, entry_id
		FROM handles
		WHERE session = $1 AND entry_id = $2
	`
	return r.scanOne(r.db.QueryRowContext(ctx, query, session, entryID))
}

func (r *PostgresRepository) scanOne(row *sql.Row) (*models.Handle, error) {
	h := &models.Handle{}
	if err := row.Scan(&h.ID, &h.Session, &h.Handle, &h.EntryID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return h, nil
}

// SelectHandles returns the handle numbers already allocated in the
// session, ascending.
func (r *PostgresRepository) SelectHandles(ctx context.Context, session string) ([]int, error) {
	query := `
		SELECT handle
		FROM handles
		WHERE session = $1
		ORDER BY handle
	`
	rows, err := r.db.QueryContext(ctx, query, session)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []int
	for rows.Next() {
		var h int
		if err := rows.Scan(&h); err != nil {
			return nil, err
		}
		result = append(result, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Insert creates the handle row. The (session, handle) and
// (session, entry_id) uniqueness constraints reject duplicates as
// common.ErrConflict.
func (r *PostgresRepository) Insert(ctx context.Context, h *models.Handle) error {
	query := `
		INSERT INTO handles (session, handle, entry_id)
		VALUES ($1, $2, $3)
	`
	if _, err := r.db.ExecContext(ctx, query, h.Session, h.Handle, h.EntryID); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return common.ErrConflict
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Bind points an existing handle at a persisted entry. A (session,
// entry_id) uniqueness violation means the session already holds another
// handle for that entry and maps to common.ErrConflict.
func (r *PostgresRepository) Bind(ctx context.Context, session string, handle int, entryID int64) error {
	query := `
		UPDATE handles SET entry_id = $3
		WHERE session = $1 AND handle = $2
	`
	res, err := r.db.ExecContext(ctx, query, session, handle, entryID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return common.ErrConflict
		}
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

// Delete releases one handle.
func (r *PostgresRepository) Delete(ctx context.Context, session string, handle int) error {
	query := `
		DELETE FROM handles
		WHERE session = $1 AND handle = $2
	`
	res, err := r.db.ExecContext(ctx, query, session, handle)
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

// DeleteSession releases every handle of a finished editing session.
func (r *PostgresRepository) DeleteSession(ctx context.Context, session string) error {
	query := `
		DELETE FROM handles
		WHERE session = $1
	`
	if _, err := r.db.ExecContext(ctx, query, session); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
