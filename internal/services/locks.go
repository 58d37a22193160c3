package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/wordbank/lexstore/internal/common"
	"github.com/wordbank/lexstore/internal/config"
	"github.com/wordbank/lexstore/internal/dbx"
	"github.com/wordbank/lexstore/internal/models"
	"github.com/wordbank/lexstore/internal/repositories/locks"
	"github.com/wordbank/lexstore/internal/repositories/repomanager"
)

// LockService is the mutual-exclusion lock manager for entries. A lock row
// means "locked"; its absence means "unlocked". Acquire never blocks, and
// expiry is evaluated lazily at acquisition time: a stale lock is only
// reclaimed when someone next tries to take it.
type LockService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	config      *config.Config
	now         func() time.Time
}

func NewLockService(db *sql.DB, rm repomanager.RepositoryManager, cfg *config.Config) *LockService {
	return &LockService{db: db, repomanager: rm, config: cfg, now: time.Now}
}

// Acquire takes the lock for entryID on behalf of userID. It succeeds when
// the entry is unlocked or the current lock's age has reached the expiry
// threshold (a steal); otherwise it fails with AlreadyLockedError naming
// the current owner. The audit row and the state row commit in the same
// transaction.
func (s *LockService) Acquire(ctx context.Context, entryID int64, userID, session string, ctype models.ChangeType, csubtype string) (*models.EntryLock, error) {
	var lock *models.EntryLock

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Locks(tx)
		now := s.now().UTC().Truncate(time.Microsecond)

		existing, err := repo.Get(ctx, entryID)
		if err != nil && !errors.Is(err, common.ErrNotFound) {
			return err
		}

		lock = &models.EntryLock{
			EntryID:     entryID,
			OwnerID:     userID,
			InitiatorID: userID,
			Datetime:    now,
			Session:     session,
			CType:       ctype,
			CSubtype:    csubtype,
		}

		if existing != nil {
			// a lock is stale once age >= expiry; at exactly the
			// threshold it is reclaimable
			if now.Sub(existing.Datetime) < s.config.LockExpiry {
				return &common.AlreadyLockedError{Owner: existing.OwnerID, Since: existing.Datetime}
			}
			if err := repo.InsertChange(ctx, auditRow(lock, models.LockSteal, now)); err != nil {
				return err
			}
			return repo.Update(ctx, lock)
		}

		if err := repo.InsertChange(ctx, auditRow(lock, models.LockAcquire, now)); err != nil {
			return err
		}
		// the primary-key insert is the atomic check-then-set; a
		// concurrent acquirer that won the race surfaces here
		return repo.Insert(ctx, lock)
	})
	if err != nil {
		return nil, err
	}
	return lock, nil
}

// Release unlocks the entry. Only the current owner may release; everyone
// else gets common.ErrNotOwner. Administrators use AdminRelease instead.
func (s *LockService) Release(ctx context.Context, entryID int64, userID string) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Locks(tx)

		existing, err := repo.Get(ctx, entryID)
		if err != nil {
			return err
		}
		if existing.OwnerID != userID {
			return fmt.Errorf("lock on entry %d is held by %s: %w", entryID, existing.OwnerID, common.ErrNotOwner)
		}

		return s.releaseInTx(ctx, repo, existing, userID)
	})
}

// AdminRelease unlocks the entry regardless of ownership. The audit row
// records the administrator as initiator and the dispossessed owner as
// owner, so the bypass stays visible in the trail.
func (s *LockService) AdminRelease(ctx context.Context, entryID int64, adminID string) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Locks(tx)

		existing, err := repo.Get(ctx, entryID)
		if err != nil {
			return err
		}

		return s.releaseInTx(ctx, repo, existing, adminID)
	})
}

func (s *LockService) releaseInTx(ctx context.Context, repo locks.Repository, existing *models.EntryLock, initiatorID string) error {
	now := s.now().UTC().Truncate(time.Microsecond)
	change := &models.EntryLockChange{
		EntryID:     existing.EntryID,
		OwnerID:     existing.OwnerID,
		InitiatorID: initiatorID,
		Datetime:    now,
		Session:     existing.Session,
		CType:       existing.CType,
		CSubtype:    existing.CSubtype,
		Action:      models.LockRelease,
	}
	if err := repo.InsertChange(ctx, change); err != nil {
		return err
	}
	return repo.Delete(ctx, existing.EntryID)
}

// Holder returns the current lock for entryID, or common.ErrNotFound when
// the entry is unlocked.
func (s *LockService) Holder(ctx context.Context, entryID int64) (*models.EntryLock, error) {
	return s.repomanager.Locks(s.db).Get(ctx, entryID)
}

func auditRow(lock *models.EntryLock, action models.LockAction, now time.Time) *models.EntryLockChange {
	return &models.EntryLockChange{
		EntryID:     lock.EntryID,
		OwnerID:     lock.OwnerID,
		InitiatorID: lock.InitiatorID,
		Datetime:    now,
		Session:     lock.Session,
		CType:       lock.CType,
		CSubtype:    lock.CSubtype,
		Action:      action,
	}
}
