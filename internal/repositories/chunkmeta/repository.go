package chunkmeta

import (
	"context"

	"github.com/wordbank/lexstore/internal/models"
)

type Repository interface {
	Upsert(ctx context.Context, meta *models.ChunkMetadata) error
	// Get returns the cached metadata for the chunk. The caller must treat
	// a row whose XMLHash differs from the chunk's hash as stale and
	// recompute.
	Get(ctx context.Context, chunkHash string) (*models.ChunkMetadata, error)
}
