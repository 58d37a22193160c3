package maintenance

import (
	"context"
	"errors"
	"fmt"

	"github.com/wordbank/lexstore/internal/config"
	"github.com/wordbank/lexstore/internal/dbx"
	"github.com/wordbank/lexstore/internal/models"
	"github.com/wordbank/lexstore/internal/repositories/repomanager"
)

// Archiver copies a chunk to cold storage before the collector deletes it.
type Archiver interface {
	Archive(ctx context.Context, chunk *models.Chunk) error
}

// NewChunkGC builds the chunk garbage collector: mark-and-sweep over the
// single ChangeRecord -> Chunk reference edge. Chunks referenced by no
// change record are deleted (and first archived, when an archiver is
// configured). The run holds the exclusive chunk-GC advisory lock, which
// every history append takes in shared mode, so a sweep never runs while
// an append transaction is in flight. A Put that happened before the
// sweep with its append still to come is not protected by the lock; if
// the sweep removes such a chunk, the append fails on the chunk_hash
// foreign key instead of committing a dangling reference. Run it after a
// collapse or hide pass, which may have dropped a chunk's last reference.
//
// archiver may be nil.
func NewChunkGC(rm repomanager.RepositoryManager, cfg *config.Config, obs Observer, archiver Archiver) *Cleaner[*models.Chunk] {
	c := &Cleaner[*models.Chunk]{
		Name:     "chunk_gc",
		NoOp:     cfg.MaintenanceNoOp,
		Observer: obs,
		Prepare: func(ctx context.Context, tx dbx.DBTX) error {
			return dbx.AdvisoryXactLock(ctx, tx, dbx.ChunkGCLockKey)
		},
		Select: func(ctx context.Context, tx dbx.DBTX) ([]*models.Chunk, error) {
			return rm.Chunks(tx).SelectUnreferenced(ctx)
		},
		Clean: func(ctx context.Context, tx dbx.DBTX, chunk *models.Chunk) error {
			if archiver != nil {
				if err := archiver.Archive(ctx, chunk); err != nil {
					return fmt.Errorf("archive chunk %s: %w", chunk.Hash, err)
				}
			}
			// chunk_metadata rows go with the chunk via ON DELETE CASCADE
			return rm.Chunks(tx).Delete(ctx, []string{chunk.Hash})
		},
		Describe: func(chunk *models.Chunk) string {
			return fmt.Sprintf("chunk %s (%d bytes)", chunk.Hash, len(chunk.Data))
		},
	}

	c.AddCheck("unreferenced", func(ctx context.Context, tx dbx.DBTX, chunk *models.Chunk) error {
		referenced, err := rm.Chunks(tx).IsReferenced(ctx, chunk.Hash)
		if err != nil {
			return err
		}
		if referenced {
			return errors.New("chunk is still referenced by a change record")
		}
		return nil
	})

	return c
}
