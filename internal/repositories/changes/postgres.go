// Package changes provides the PostgreSQL-backed repository for the
// append-only change-record chain.
package changes

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/wordbank/lexstore/internal/common"
	"github.com/wordbank/lexstore/internal/dbx"
	"github.com/wordbank/lexstore/internal/models"
)

const selectColumns = `id, entry_id, user_id, datetime, session, ctype, csubtype, chunk_hash, headword, published, hidden, note`

// PostgresRepository implements change-record storage over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Insert appends one record. Everything but Published and Hidden is
// immutable from here on; the (entry_id, datetime, ctype) uniqueness
// constraint backs the per-entry total order.
func (r *PostgresRepository) Insert(ctx context.Context, rec *models.ChangeRecord) (*models.ChangeRecord, error) {
	query := `
		INSERT INTO change_records (entry_id, user_id, datetime, session, ctype, csubtype, chunk_hash, headword, published, hidden, note)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`
	err := r.db.QueryRowContext(ctx, query,
		rec.EntryID, rec.UserID, rec.Datetime, nullIfEmpty(rec.Session), string(rec.CType),
		rec.CSubtype, rec.ChunkHash, rec.Headword, rec.Published, rec.Hidden, rec.Note,
	).Scan(&rec.ID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return rec, nil
}

// GetByID returns one record, or common.ErrNotFound.
func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*models.ChangeRecord, error) {
	query := `
		SELECT ` + selectColumns + `
		FROM change_records
		WHERE id = $1
	`
	rec, err := scanRecord(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return rec, nil
}

// SelectVisible returns the entry's non-hidden records, newest first.
func (r *PostgresRepository) SelectVisible(ctx context.Context, entryID int64) ([]*models.ChangeRecord, error) {
	query := `
		SELECT ` + selectColumns + `
		FROM change_records
		WHERE entry_id = $1 AND NOT hidden
		ORDER BY datetime DESC
	`
	return r.selectMany(ctx, query, entryID)
}

// LatestPublished returns the newest record of the entry that is still
// published, or common.ErrNotFound. Used to re-derive the entry's
// latest-published pointer after an unpublish.
func (r *PostgresRepository) LatestPublished(ctx context.Context, entryID int64) (*models.ChangeRecord, error) {
	query := `
		SELECT ` + selectColumns + `
		FROM change_records
		WHERE entry_id = $1 AND published
		ORDER BY datetime DESC
		LIMIT 1
	`
	rec, err := scanRecord(r.db.QueryRowContext(ctx, query, entryID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return rec, nil
}

// CountVisible returns the number of non-hidden records of the entry.
func (r *PostgresRepository) CountVisible(ctx context.Context, entryID int64) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM change_records
		WHERE entry_id = $1 AND NOT hidden
	`
	var n int
	if err := r.db.QueryRowContext(ctx, query, entryID).Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

// SetPublished flips the published flag of one record.
func (r *PostgresRepository) SetPublished(ctx context.Context, id int64, published bool) error {
	query := `
		UPDATE change_records SET published = $2
		WHERE id = $1
	`
	return r.exec(ctx, query, id, published)
}

// Hide marks one record as hidden. The row remains for audit.
func (r *PostgresRepository) Hide(ctx context.Context, id int64) error {
	query := `
		UPDATE change_records SET hidden = TRUE
		WHERE id = $1
	`
	return r.exec(ctx, query, id)
}

// Delete physically removes one record. Only the collapser calls this,
// and only after its safety checks have passed.
func (r *PostgresRepository) Delete(ctx context.Context, id int64) error {
	query := `
		DELETE FROM change_records
		WHERE id = $1
	`
	return r.exec(ctx, query, id)
}

// SelectCollapseCandidates returns unpublished, visible records created
// before cutoff whose chunk is identical to the chunk of the next-newer
// record of the same entry. The candidate is the older member of an
// adjacent duplicate pair: the newer record supersedes it and keeps the
// content, so typically a save that duplicated the record now at the head
// collapses the older one while the head survives. Records currently
// referenced by the entry's latest or latest-published pointer, and
// records with publication audit history (their audit rows must outlive
// any collapse), are excluded up front; the collapser re-checks all of
// this before deleting.
func (r *PostgresRepository) SelectCollapseCandidates(ctx context.Context, cutoff time.Time) ([]*models.ChangeRecord, error) {
	query := `
		SELECT c.id, c.entry_id, c.user_id, c.datetime, c.session, c.ctype, c.csubtype, c.chunk_hash, c.headword, c.published, c.hidden, c.note
		FROM change_records c
		JOIN LATERAL (
			SELECT n.chunk_hash, n.hidden
			FROM change_records n
			WHERE n.entry_id = c.entry_id AND n.datetime > c.datetime
			ORDER BY n.datetime ASC
			LIMIT 1
		) nxt ON nxt.chunk_hash = c.chunk_hash AND NOT nxt.hidden
		JOIN entries e ON e.id = c.entry_id
		WHERE NOT c.published
		  AND NOT c.hidden
		  AND c.datetime < $1
		  AND e.latest_id IS DISTINCT FROM c.id
		  AND e.latest_published_id IS DISTINCT FROM c.id
		  AND NOT EXISTS (
			SELECT 1 FROM publication_changes pc
			WHERE pc.change_record_id = c.id
		  )
		ORDER BY c.entry_id, c.datetime
	`
	return r.selectMany(ctx, query, cutoff)
}

// SelectHideCandidates returns unpublished, visible implicit-save records
// created before cutoff, excluding each entry's latest record.
func (r *PostgresRepository) SelectHideCandidates(ctx context.Context, cutoff time.Time, subtypes []string) ([]*models.ChangeRecord, error) {
	query := `
		SELECT c.id, c.entry_id, c.user_id, c.datetime, c.session, c.ctype, c.csubtype, c.chunk_hash, c.headword, c.published, c.hidden, c.note
		FROM change_records c
		JOIN entries e ON e.id = c.entry_id
		WHERE NOT c.published
		  AND NOT c.hidden
		  AND c.csubtype = ANY($2)
		  AND c.datetime < $1
		  AND e.latest_id IS DISTINCT FROM c.id
		ORDER BY c.entry_id, c.datetime
	`
	return r.selectMany(ctx, query, cutoff, subtypes)
}

func (r *PostgresRepository) selectMany(ctx context.Context, query string, args ...any) ([]*models.ChangeRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.ChangeRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
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

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*models.ChangeRecord, error) {
	rec := &models.ChangeRecord{}
	var session sql.NullString
	var ctype string
	err := s.Scan(
		&rec.ID, &rec.EntryID, &rec.UserID, &rec.Datetime, &session, &ctype,
		&rec.CSubtype, &rec.ChunkHash, &rec.Headword, &rec.Published, &rec.Hidden, &rec.Note,
	)
	if err != nil {
		return nil, err
	}
	rec.Session = session.String
	rec.CType = models.ChangeType(ctype)
	return rec, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
