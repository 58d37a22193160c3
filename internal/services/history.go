package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/wordbank/lexstore/internal/common"
	"github.com/wordbank/lexstore/internal/dbx"
	"github.com/wordbank/lexstore/internal/models"
	"github.com/wordbank/lexstore/internal/repositories/repomanager"
)

// AppendParams carries everything needed to append one change record.
// EntryID is ignored for Create appends; Headword is required for them and
// ignored otherwise (non-Create records snapshot the entry's current
// headword).
type AppendParams struct {
	EntryID   int64
	Headword  string
	UserID    string
	Session   string
	CType     models.ChangeType
	CSubtype  string
	ChunkHash string
	Published bool
	Note      string
}

// HistoryService owns the append-only change-history chain and the
// entry's latest / latest-published pointers.
type HistoryService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	now         func() time.Time
}

func NewHistoryService(db *sql.DB, rm repomanager.RepositoryManager) *HistoryService {
	return &HistoryService{db: db, repomanager: rm, now: time.Now}
}

// Append creates one immutable change record and updates the entry's
// pointers, all inside one transaction. A Create append also creates the
// entry row; any other ctype requires the entry to exist already —
// mismatches fail with common.ErrInvalidTransition.
//
// The transaction holds the shared side of the chunk-GC advisory lock,
// which keeps the collector from sweeping while the append is in flight.
// The gap between the caller's Put and this transaction is covered by the
// chunk_hash foreign key: if a sweep claimed the chunk in between, the
// append fails rather than commit a dangling reference, and the caller
// retries with a fresh Put.
func (s *HistoryService) Append(ctx context.Context, params *AppendParams) (*models.ChangeRecord, error) {
	var rec *models.ChangeRecord

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := dbx.AdvisoryXactLockShared(ctx, tx, dbx.ChunkGCLockKey); err != nil {
			return err
		}

		var err error
		rec, err = s.appendInTx(ctx, tx, params)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *HistoryService) appendInTx(ctx context.Context, tx dbx.DBTX, params *AppendParams) (*models.ChangeRecord, error) {
	entryRepo := s.repomanager.Entries(tx)
	changeRepo := s.repomanager.Changes(tx)

	var entry *models.Entry
	if params.CType == models.CTypeCreate {
		existing, err := entryRepo.GetByHeadword(ctx, params.Headword)
		if err != nil && !errors.Is(err, common.ErrNotFound) {
			return nil, err
		}
		if existing != nil {
			return nil, fmt.Errorf("entry %q already exists: %w", params.Headword, common.ErrInvalidTransition)
		}
		entry, err = entryRepo.Create(ctx, params.Headword)
		if err != nil {
			return nil, err
		}
	} else {
		var err error
		entry, err = entryRepo.GetByID(ctx, params.EntryID)
		if err != nil {
			if errors.Is(err, common.ErrNotFound) {
				return nil, fmt.Errorf("entry %d does not exist: %w", params.EntryID, common.ErrInvalidTransition)
			}
			return nil, err
		}
	}

	datetime := s.now().UTC().Truncate(time.Microsecond)
	if entry.LatestID.Valid {
		latest, err := changeRepo.GetByID(ctx, entry.LatestID.Int64)
		if err != nil {
			return nil, err
		}
		// keep per-entry datetimes strictly increasing even when the
		// clock has not advanced past the previous record
		if !datetime.After(latest.Datetime) {
			datetime = latest.Datetime.Add(time.Microsecond)
		}
	}

	rec, err := changeRepo.Insert(ctx, &models.ChangeRecord{
		EntryID:   entry.ID,
		UserID:    params.UserID,
		Datetime:  datetime,
		Session:   params.Session,
		CType:     params.CType,
		CSubtype:  params.CSubtype,
		ChunkHash: params.ChunkHash,
		Headword:  entry.Headword,
		Published: params.Published,
		Note:      params.Note,
	})
	if err != nil {
		return nil, err
	}

	if err := entryRepo.SetLatest(ctx, entry.ID, rec.ID); err != nil {
		return nil, err
	}
	if params.Published {
		if err := entryRepo.SetLatestPublished(ctx, entry.ID, sql.NullInt64{Int64: rec.ID, Valid: true}); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

// Revert appends a new Revert record whose chunk equals the chunk of the
// given historical record. Content is copied forward; history is never
// rewritten.
func (s *HistoryService) Revert(ctx context.Context, entryID, toChangeID int64, userID, session string) (*models.ChangeRecord, error) {
	var rec *models.ChangeRecord

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := dbx.AdvisoryXactLockShared(ctx, tx, dbx.ChunkGCLockKey); err != nil {
			return err
		}

		target, err := s.repomanager.Changes(tx).GetByID(ctx, toChangeID)
		if err != nil {
			return err
		}
		if target.EntryID != entryID {
			return fmt.Errorf("change %d does not belong to entry %d: %w", toChangeID, entryID, common.ErrNotFound)
		}

		rec, err = s.appendInTx(ctx, tx, &AppendParams{
			EntryID:   entryID,
			UserID:    userID,
			Session:   session,
			CType:     models.CTypeRevert,
			ChunkHash: target.ChunkHash,
			Note:      fmt.Sprintf("reverted to change %d", toChangeID),
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Publish marks the record as published, moves the entry's
// latest-published pointer to the newest published record, and writes one
// publication audit row. Hidden records and records of soft-deleted
// entries fail with common.ErrNotPublishable; stricter succession policy
// belongs to the caller layer.
func (s *HistoryService) Publish(ctx context.Context, changeID int64, userID string) (*models.PublicationChange, error) {
	return s.setPublished(ctx, changeID, userID, true)
}

// Unpublish clears the published flag and re-derives latest_published as
// the most recent still-published record, or NULL when none remains.
func (s *HistoryService) Unpublish(ctx context.Context, changeID int64, userID string) (*models.PublicationChange, error) {
	return s.setPublished(ctx, changeID, userID, false)
}

func (s *HistoryService) setPublished(ctx context.Context, changeID int64, userID string, published bool) (*models.PublicationChange, error) {
	var pub *models.PublicationChange

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		changeRepo := s.repomanager.Changes(tx)
		entryRepo := s.repomanager.Entries(tx)

		rec, err := changeRepo.GetByID(ctx, changeID)
		if err != nil {
			return err
		}
		if rec.Published == published {
			return fmt.Errorf("change %d already has published=%v: %w", changeID, published, common.ErrNotPublishable)
		}
		if published {
			if rec.Hidden {
				return fmt.Errorf("change %d is hidden: %w", changeID, common.ErrNotPublishable)
			}
			entry, err := entryRepo.GetByID(ctx, rec.EntryID)
			if err != nil {
				return err
			}
			if entry.Deleted {
				return fmt.Errorf("entry %d is deleted: %w", rec.EntryID, common.ErrNotPublishable)
			}
		}

		if err := changeRepo.SetPublished(ctx, changeID, published); err != nil {
			return err
		}

		// re-derive rather than assume: the target may not be the newest
		// published record of its entry
		pointer := sql.NullInt64{}
		newest, err := changeRepo.LatestPublished(ctx, rec.EntryID)
		switch {
		case err == nil:
			pointer = sql.NullInt64{Int64: newest.ID, Valid: true}
		case errors.Is(err, common.ErrNotFound):
			// all records unpublished; pointer goes back to NULL
		default:
			return err
		}
		if err := entryRepo.SetLatestPublished(ctx, rec.EntryID, pointer); err != nil {
			return err
		}

		action := models.ActionPublish
		if !published {
			action = models.ActionUnpublish
		}
		pub, err = s.repomanager.Publications(tx).Insert(ctx, &models.PublicationChange{
			ChangeRecordID: changeID,
			CType:          action,
			Datetime:       s.now().UTC().Truncate(time.Microsecond),
			UserID:         userID,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return pub, nil
}

// History returns the entry's visible (non-hidden) records, newest first.
func (s *HistoryService) History(ctx context.Context, entryID int64) ([]*models.ChangeRecord, error) {
	return s.repomanager.Changes(s.db).SelectVisible(ctx, entryID)
}

// Rename changes the entry's headword. Existing records keep their
// headword snapshots, so history stays readable under the old name.
func (s *HistoryService) Rename(ctx context.Context, entryID int64, headword string) error {
	return s.repomanager.Entries(s.db).UpdateHeadword(ctx, entryID, headword)
}

// SoftDelete flags the entry as deleted without touching its history.
func (s *HistoryService) SoftDelete(ctx context.Context, entryID int64) error {
	return s.repomanager.Entries(s.db).SetDeleted(ctx, entryID, true)
}
