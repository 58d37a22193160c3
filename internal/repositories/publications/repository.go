package publications

import (
	"context"

	"github.com/wordbank/lexstore/internal/models"
)

type Repository interface {
	Insert(ctx context.Context, change *models.PublicationChange) (*models.PublicationChange, error)
	// ExistsForRecord reports whether any publish/unpublish audit row
	// references the change record. Such records must never be physically
	// deleted; the FK from the audit table has no ON DELETE action.
	ExistsForRecord(ctx context.Context, changeRecordID int64) (bool, error)
}
