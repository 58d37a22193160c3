package dbx

import "context"

// ChunkGCLockKey is the advisory-lock key that serializes chunk garbage
// collection against history appends: appends take the shared side, the
// collector takes the exclusive side, so a sweep waits out every append
// transaction already in flight.
const ChunkGCLockKey int64 = 0x6c78_6763 // "lxgc"

// AdvisoryXactLockShared takes a shared transaction-scoped advisory lock.
// It is released automatically when the transaction ends.
func AdvisoryXactLockShared(ctx context.Context, db DBTX, key int64) error {
	_, err := db.ExecContext(ctx, `SELECT pg_advisory_xact_lock_shared($1)`, key)
	return err
}

// AdvisoryXactLock takes an exclusive transaction-scoped advisory lock.
func AdvisoryXactLock(ctx context.Context, db DBTX, key int64) error {
	_, err := db.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, key)
	return err
}
