package entries

import (
	"context"
	"database/sql"

	"github.com/wordbank/lexstore/internal/models"
)

type Repository interface {
	Create(ctx context.Context, headword string) (*models.Entry, error)
	GetByID(ctx context.Context, id int64) (*models.Entry, error)
	GetByHeadword(ctx context.Context, headword string) (*models.Entry, error)
	SetLatest(ctx context.Context, entryID int64, changeID int64) error
	// SetLatestPublished accepts an invalid NullInt64 to clear the pointer
	// when the last published record is unpublished.
	SetLatestPublished(ctx context.Context, entryID int64, changeID sql.NullInt64) error
	UpdateHeadword(ctx context.Context, entryID int64, headword string) error
	SetDeleted(ctx context.Context, entryID int64, deleted bool) error
}
