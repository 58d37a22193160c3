package models

import "time"

// LockAction names a lock-state transition in the audit trail.
type LockAction string

const (
	LockAcquire LockAction = "acquire"
	LockSteal   LockAction = "steal"
	LockRelease LockAction = "release"
)

// EntryLock is the exclusive edit lock for one entry. Existence of a row
// means the entry is locked; absence means it is unlocked. Locks older
// than the configured expiry are stale and may be reclaimed by the next
// acquirer.
type EntryLock struct {
	EntryID     int64
	OwnerID     string
	InitiatorID string
	Datetime    time.Time
	Session     string
	CType       ChangeType
	CSubtype    string
}

// EntryLockChange is one append-only audit row mirroring a lock-state
// transition. Datetime is the instant of the transition, not the lock's
// acquisition time.
type EntryLockChange struct {
	ID          int64
	EntryID     int64
	OwnerID     string
	InitiatorID string
	Datetime    time.Time
	Session     string
	CType       ChangeType
	CSubtype    string
	Action      LockAction
}
