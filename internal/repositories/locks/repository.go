package locks

import (
	"context"

	"github.com/wordbank/lexstore/internal/models"
)

type Repository interface {
	Get(ctx context.Context, entryID int64) (*models.EntryLock, error)
	// Insert creates the lock row; a primary-key violation (someone else
	// locked first) is returned as common.ErrAlreadyLocked.
	Insert(ctx context.Context, lock *models.EntryLock) error
	// Update rewrites an existing lock row in place (steal).
	Update(ctx context.Context, lock *models.EntryLock) error
	Delete(ctx context.Context, entryID int64) error
	InsertChange(ctx context.Context, change *models.EntryLockChange) error
}
