package chunks

import (
	"context"

	"github.com/wordbank/lexstore/internal/models"
)

type Repository interface {
	// Insert stores the chunk unless a row with the same hash already
	// exists; in that case it is a no-op.
	Insert(ctx context.Context, chunk *models.Chunk) error
	Get(ctx context.Context, hash string) (*models.Chunk, error)
	// SelectUnreferenced returns chunks no change record points at.
	SelectUnreferenced(ctx context.Context) ([]*models.Chunk, error)
	// IsReferenced reports whether any change record still points at hash.
	IsReferenced(ctx context.Context, hash string) (bool, error)
	Delete(ctx context.Context, hashes []string) error
}
