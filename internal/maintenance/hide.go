package maintenance

import (
	"context"
	"errors"
	"time"

	"github.com/wordbank/lexstore/internal/config"
	"github.com/wordbank/lexstore/internal/dbx"
	"github.com/wordbank/lexstore/internal/models"
	"github.com/wordbank/lexstore/internal/repositories/repomanager"
)

// NewOldVersionCleaner builds the old-version hider: implicit-save records
// (autosave, crash recovery) that were never published and are older than
// the hide-age threshold get hidden=true. The rows stay for audit; they
// only disappear from history views. An entry always keeps at least one
// visible record.
func NewOldVersionCleaner(rm repomanager.RepositoryManager, cfg *config.Config, obs Observer) *Cleaner[*models.ChangeRecord] {
	c := &Cleaner[*models.ChangeRecord]{
		Name:     "hide_old_versions",
		NoOp:     cfg.MaintenanceNoOp,
		Observer: obs,
		Select: func(ctx context.Context, tx dbx.DBTX) ([]*models.ChangeRecord, error) {
			cutoff := time.Now().Add(-cfg.HideAge)
			return rm.Changes(tx).SelectHideCandidates(ctx, cutoff, cfg.ImplicitSubtypes)
		},
		Clean: func(ctx context.Context, tx dbx.DBTX, rec *models.ChangeRecord) error {
			return rm.Changes(tx).Hide(ctx, rec.ID)
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

	c.AddCheck("not_latest", func(ctx context.Context, tx dbx.DBTX, rec *models.ChangeRecord) error {
		entry, err := rm.Entries(tx).GetByID(ctx, rec.EntryID)
		if err != nil {
			return err
		}
		if entry.LatestID.Valid && entry.LatestID.Int64 == rec.ID {
			return errors.New("record is the entry's latest")
		}
		return nil
	})

	c.AddCheck("keeps_visible_version", func(ctx context.Context, tx dbx.DBTX, rec *models.ChangeRecord) error {
		// earlier effects in this run already count: hidden rows drop out
		// of CountVisible, so hiding can never drain an entry completely
		n, err := rm.Changes(tx).CountVisible(ctx, rec.EntryID)
		if err != nil {
			return err
		}
		if n <= 1 {
			return errors.New("record is the entry's last visible version")
		}
		return nil
	})

	return c
}
