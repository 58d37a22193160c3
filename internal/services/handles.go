package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/wordbank/lexstore/internal/common"
	"github.com/wordbank/lexstore/internal/dbx"
	"github.com/wordbank/lexstore/internal/models"
	"github.com/wordbank/lexstore/internal/repositories/repomanager"
)

// HandleService manages per-session integer aliases for entries, so
// clients never see database primary keys and can refer to a "new
// document" before its first change record exists.
type HandleService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

func NewHandleService(db *sql.DB, rm repomanager.RepositoryManager) *HandleService {
	return &HandleService{db: db, repomanager: rm}
}

// Allocate returns the smallest positive handle not in use by the session.
// Released numbers are reused, keeping handles small. The handle starts
// unbound; Bind attaches it to an entry once one is persisted.
//
// Two concurrent allocations can compute the same number; the loser's
// insert hits the unique index and the allocation is retried against the
// fresh handle set until it lands or the context ends.
func (s *HandleService) Allocate(ctx context.Context, session string) (int, error) {
	for {
		handle, err := s.allocateOnce(ctx, session)
		if err == nil {
			return handle, nil
		}
		if !errors.Is(err, common.ErrConflict) {
			return 0, err
		}
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
	}
}

func (s *HandleService) allocateOnce(ctx context.Context, session string) (int, error) {
	var handle int

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Handles(tx)

		used, err := repo.SelectHandles(ctx, session)
		if err != nil {
			return err
		}
		handle = smallestFree(used)

		return repo.Insert(ctx, &models.Handle{Session: session, Handle: handle})
	})
	if err != nil {
		return 0, err
	}
	return handle, nil
}

// Bind associates the handle with a persisted entry. If the session
// already holds a different handle for the entry, Bind fails with
// common.ErrConflict.
func (s *HandleService) Bind(ctx context.Context, session string, handle int, entryID int64) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Handles(tx)

		existing, err := repo.GetByEntry(ctx, session, entryID)
		if err != nil && !errors.Is(err, common.ErrNotFound) {
			return err
		}
		if existing != nil && existing.Handle != handle {
			return fmt.Errorf("session already holds handle %d for entry %d: %w", existing.Handle, entryID, common.ErrConflict)
		}

		return repo.Bind(ctx, session, handle, entryID)
	})
}

// Resolve returns the entry the handle is bound to. Unknown and unbound
// handles both report common.ErrNotFound.
func (s *HandleService) Resolve(ctx context.Context, session string, handle int) (int64, error) {
	h, err := s.repomanager.Handles(s.db).Get(ctx, session, handle)
	if err != nil {
		return 0, err
	}
	if !h.EntryID.Valid {
		return 0, fmt.Errorf("handle %d is not bound to an entry: %w", handle, common.ErrNotFound)
	}
	return h.EntryID.Int64, nil
}

// Release frees one handle; its number becomes available for reuse.
func (s *HandleService) Release(ctx context.Context, session string, handle int) error {
	return s.repomanager.Handles(s.db).Delete(ctx, session, handle)
}

// EndSession frees every handle of a finished editing session.
func (s *HandleService) EndSession(ctx context.Context, session string) error {
	return s.repomanager.Handles(s.db).DeleteSession(ctx, session)
}

func smallestFree(used []int) int {
	next := 1
	for _, u := range used {
		if u > next {
			break
		}
		if u == next {
			next++
		}
	}
	return next
}
