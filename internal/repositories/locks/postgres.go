// Package locks provides the PostgreSQL-backed repository for entry locks
// and their append-only audit trail.
package locks

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

// uniqueViolation is the PostgreSQL error code for a unique-constraint
// violation (including primary keys).
const uniqueViolation = "23505"

// PostgresRepository implements lock storage over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Get returns the lock for entryID, or common.ErrNotFound when the entry
// is unlocked.
func (r *PostgresRepository) Get(ctx context.Context, entryID int64) (*models.EntryLock, error) {
	query := `
		SELECT entry_id, owner_id, initiator_id, datetime, session, ctype, csubtype
		FROM entry_locks
		WHERE entry_id = $1
	`
	lock := &models.EntryLock{}
	var session sql.NullString
	var ctype string
	err := r.db.QueryRowContext(ctx, query, entryID).Scan(
		&lock.EntryID, &lock.OwnerID, &lock.InitiatorID, &lock.Datetime, &session, &ctype, &lock.CSubtype,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	lock.Session = session.String
	lock.CType = models.ChangeType(ctype)
	return lock, nil
}

// Insert creates the lock row. The entry_id primary key is the atomic
// check-then-set: if two callers both observed "unlocked", exactly one
// insert succeeds and the other gets common.ErrAlreadyLocked.
func (r *PostgresRepository) Insert(ctx context.Context, lock *models.EntryLock) error {
	query := `
		INSERT INTO entry_locks (entry_id, owner_id, initiator_id, datetime, session, ctype, csubtype)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.ExecContext(ctx, query,
		lock.EntryID, lock.OwnerID, lock.InitiatorID, lock.Datetime,
		nullIfEmpty(lock.Session), string(lock.CType), lock.CSubtype,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return common.ErrAlreadyLocked
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Update rewrites the lock row for a steal: same entry, new owner,
// new acquisition time.
func (r *PostgresRepository) Update(ctx context.Context, lock *models.EntryLock) error {
	query := `
		UPDATE entry_locks
		SET owner_id = $2, initiator_id = $3, datetime = $4, session = $5, ctype = $6, csubtype = $7
		WHERE entry_id = $1
	`
	res, err := r.db.ExecContext(ctx, query,
		lock.EntryID, lock.OwnerID, lock.InitiatorID, lock.Datetime,
		nullIfEmpty(lock.Session), string(lock.CType), lock.CSubtype,
	)
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

// Delete removes the lock row, unlocking the entry.
func (r *PostgresRepository) Delete(ctx context.Context, entryID int64) error {
	query := `
		DELETE FROM entry_locks
		WHERE entry_id = $1
	`
	res, err := r.db.ExecContext(ctx, query, entryID)
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

// InsertChange appends one audit row. It is written in the same
// transaction as the state transition it mirrors.
func (r *PostgresRepository) InsertChange(ctx context.Context, change *models.EntryLockChange) error {
	query := `
		INSERT INTO entry_lock_changes (entry_id, owner_id, initiator_id, datetime, session, ctype, csubtype, action)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.ExecContext(ctx, query,
		change.EntryID, change.OwnerID, change.InitiatorID, change.Datetime,
		nullIfEmpty(change.Session), string(change.CType), change.CSubtype, string(change.Action),
	)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
