package changes

import (
	"context"
	"time"

	"github.com/wordbank/lexstore/internal/models"
)

type Repository interface {
	Insert(ctx context.Context, rec *models.ChangeRecord) (*models.ChangeRecord, error)
	GetByID(ctx context.Context, id int64) (*models.ChangeRecord, error)
	// SelectVisible returns the entry's non-hidden history, newest first.
	SelectVisible(ctx context.Context, entryID int64) ([]*models.ChangeRecord, error)
	// LatestPublished returns the newest still-published record of the
	// entry, or common.ErrNotFound when none remains.
	LatestPublished(ctx context.Context, entryID int64) (*models.ChangeRecord, error)
	CountVisible(ctx context.Context, entryID int64) (int, error)
	SetPublished(ctx context.Context, id int64, published bool) error
	Hide(ctx context.Context, id int64) error
	Delete(ctx context.Context, id int64) error
	// SelectCollapseCandidates returns unpublished, visible records older
	// than cutoff whose chunk equals the chunk of the entry's next-newer
	// record (the older member of an adjacent duplicate pair). Records
	// with publication audit history are never candidates.
	SelectCollapseCandidates(ctx context.Context, cutoff time.Time) ([]*models.ChangeRecord, error)
	// SelectHideCandidates returns unpublished, visible records older than
	// cutoff whose csubtype marks an implicit save.
	SelectHideCandidates(ctx context.Context, cutoff time.Time, subtypes []string) ([]*models.ChangeRecord, error)
}
