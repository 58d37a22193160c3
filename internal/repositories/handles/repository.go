package handles

import (
	"context"

	"github.com/wordbank/lexstore/internal/models"
)

type Repository interface {
	Get(ctx context.Context, session string, handle int) (*models.Handle, error)
	GetByEntry(ctx context.Context, session string, entryID int64) (*models.Handle, error)
	// SelectHandles returns the handle numbers allocated in the session,
	// ascending.
	SelectHandles(ctx context.Context, session string) ([]int, error)
	// Insert creates the handle row; uniqueness violations map to
	// common.ErrConflict.
	Insert(ctx context.Context, h *models.Handle) error
	// Bind associates an unbound handle with an entry; a (session, entry)
	// uniqueness violation maps to common.ErrConflict.
	Bind(ctx context.Context, session string, handle int, entryID int64) error
	Delete(ctx context.Context, session string, handle int) error
	DeleteSession(ctx context.Context, session string) error
}
