// Package maintenance implements the storage-bounding jobs of the document
// store: collapsing redundant change records, hiding stale drafts and
// garbage-collecting unreferenced chunks. All three specialize the generic
// Cleaner, which enforces the common contract: at least one named safety
// check, re-validation of every candidate immediately before its effect,
// one all-or-nothing transaction per run, and optional dry-run mode.
package maintenance

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/wordbank/lexstore/internal/common"
	"github.com/wordbank/lexstore/internal/dbx"
)

// Check is one named safety predicate. Fn returns nil when the candidate
// is safe to clean; any error aborts the whole run.
type Check[T any] struct {
	Name string
	Fn   func(ctx context.Context, tx dbx.DBTX, candidate T) error
}

// Cleaner is a generic maintenance job: select candidates, validate each
// against every registered check, apply the effect. The entire run is one
// transaction; a failure anywhere rolls back every effect.
type Cleaner[T any] struct {
	// Name identifies the job in messages and metrics.
	Name string
	// NoOp selects and validates but applies no effect.
	NoOp bool
	// Observer receives progress messages. When nil, message construction
	// is skipped entirely.
	Observer Observer
	// Select returns the candidate set.
	Select func(ctx context.Context, tx dbx.DBTX) ([]T, error)
	// Clean applies the effect to one validated candidate.
	Clean func(ctx context.Context, tx dbx.DBTX, candidate T) error
	// Prepare, when set, runs once at the start of the transaction,
	// before selection (e.g. to take an advisory lock).
	Prepare func(ctx context.Context, tx dbx.DBTX) error
	// Describe renders a candidate for messages. When nil, %v is used.
	Describe func(candidate T) string

	checks []Check[T]
}

// AddCheck registers a named safety check. Checks run in registration
// order against every candidate, immediately before its effect.
func (c *Cleaner[T]) AddCheck(name string, fn func(ctx context.Context, tx dbx.DBTX, candidate T) error) {
	c.checks = append(c.checks, Check[T]{Name: name, Fn: fn})
}

// Run executes the job and returns the candidates actually processed.
// A job with zero registered checks refuses to run: destructive work
// without a documented guard is a bug, not a configuration choice.
func (c *Cleaner[T]) Run(ctx context.Context, db *sql.DB) ([]T, error) {
	if len(c.checks) == 0 {
		return nil, fmt.Errorf("job %s: %w", c.Name, common.ErrNoChecksDefined)
	}

	runID := uuid.New().String()
	jobRunsTotal.WithLabelValues(c.Name).Inc()

	var processed []T
	err := dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if c.Prepare != nil {
			if err := c.Prepare(ctx, tx); err != nil {
				return err
			}
		}

		candidates, err := c.Select(ctx, tx)
		if err != nil {
			return err
		}
		c.say(ctx, "job %s run %s: %d candidate(s)", c.Name, runID, len(candidates))

		for _, candidate := range candidates {
			for _, check := range c.checks {
				if err := check.Fn(ctx, tx, candidate); err != nil {
					return fmt.Errorf("job %s: check %s rejected %s: %v: %w",
						c.Name, check.Name, c.describe(candidate), err, common.ErrSafetyCheckFailed)
				}
			}

			if c.NoOp {
				c.say(ctx, "job %s run %s: would clean %s", c.Name, runID, c.describe(candidate))
			} else {
				if err := c.Clean(ctx, tx, candidate); err != nil {
					return err
				}
				c.say(ctx, "job %s run %s: cleaned %s", c.Name, runID, c.describe(candidate))
			}
			processed = append(processed, candidate)
		}
		return nil
	})
	if err != nil {
		jobFailuresTotal.WithLabelValues(c.Name).Inc()
		return nil, err
	}

	if !c.NoOp {
		jobCleanedTotal.WithLabelValues(c.Name).Add(float64(len(processed)))
	}
	return processed, nil
}

// say builds and emits a message only when an observer is attached.
func (c *Cleaner[T]) say(ctx context.Context, format string, args ...any) {
	if c.Observer == nil {
		return
	}
	c.Observer.Message(ctx, fmt.Sprintf(format, args...))
}

func (c *Cleaner[T]) describe(candidate T) string {
	if c.Describe != nil {
		return c.Describe(candidate)
	}
	return fmt.Sprintf("%v", candidate)
}
