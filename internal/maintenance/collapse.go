package maintenance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wordbank/lexstore/internal/config"
	"github.com/wordbank/lexstore/internal/dbx"
	"github.com/wordbank/lexstore/internal/models"
	"github.com/wordbank/lexstore/internal/repositories/repomanager"
)

// NewCollapser builds the change-record collapser: it physically deletes
// the older member of an adjacent duplicate pair, i.e. a record whose
// chunk content is repeated by the next-newer record of the same entry,
// once it is unpublished, visible, free of publication audit history and
// older than the configured collapse-age threshold. The entry pointers
// and the audit exclusion are re-checked per candidate inside the run's
// transaction, so latest / latest-published / audited records are never
// touched even if selection raced with an edit.
func NewCollapser(rm repomanager.RepositoryManager, cfg *config.Config, obs Observer) *Cleaner[*models.ChangeRecord] {
	c := &Cleaner[*models.ChangeRecord]{
		Name:     "collapse",
		NoOp:     cfg.MaintenanceNoOp,
		Observer: obs,
		Select: func(ctx context.Context, tx dbx.DBTX) ([]*models.ChangeRecord, error) {
			cutoff := time.Now().Add(-cfg.CollapseAge)
			return rm.Changes(tx).SelectCollapseCandidates(ctx, cutoff)
		},
		Clean: func(ctx context.Context, tx dbx.DBTX, rec *models.ChangeRecord) error {
			return rm.Changes(tx).Delete(ctx, rec.ID)
		},
		Describe: describeRecord,
	}

	c.AddCheck("not_published", func(ctx context.Context, tx dbx.DBTX, rec *models.ChangeRecord) error {
		current, err := rm.Changes(tx).GetByID(ctx, rec.ID)
		if err != nil {
			return err
		}
		if current.Published {
			return errors.New("record is published")
		}
		return nil
	})

	c.AddCheck("no_publication_history", func(ctx context.Context, tx dbx.DBTX, rec *models.ChangeRecord) error {
		// the audit FK has no ON DELETE action; deleting an audited
		// record would fail the whole run with an FK violation
		audited, err := rm.Publications(tx).ExistsForRecord(ctx, rec.ID)
		if err != nil {
			return err
		}
		if audited {
			return errors.New("record has publication audit history")
		}
		return nil
	})

	c.AddCheck("not_entry_pointer", func(ctx context.Context, tx dbx.DBTX, rec *models.ChangeRecord) error {
		entry, err := rm.Entries(tx).GetByID(ctx, rec.EntryID)
		if err != nil {
			return err
		}
		if entry.LatestID.Valid && entry.LatestID.Int64 == rec.ID {
			return errors.New("record is the entry's latest")
		}
		if entry.LatestPublishedID.Valid && entry.LatestPublishedID.Int64 == rec.ID {
			return errors.New("record is the entry's latest published")
		}
		return nil
	})

	return c
}

func describeRecord(rec *models.ChangeRecord) string {
	return fmt.Sprintf("change %d (entry %d, %s, %s)", rec.ID, rec.EntryID, rec.CType, rec.Datetime.Format(time.RFC3339))
}
