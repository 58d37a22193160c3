// Package models defines the persisted shapes of the versioned document
// store: chunks, entries, change records, locks, handles and their audit
// rows.
package models

import "time"

// ChangeType classifies a change record.
type ChangeType string

const (
	CTypeCreate        ChangeType = "create"
	CTypeUpdate        ChangeType = "update"
	CTypeRevert        ChangeType = "revert"
	CTypeVersionUpdate ChangeType = "version_update"
)

// ChangeRecord is one immutable node in an entry's history. The record
// itself never changes after creation; Published and Hidden are the only
// fields mutated afterwards, and only through the designated publish,
// unpublish and hide operations.
type ChangeRecord struct {
	ID       int64
	EntryID  int64
	UserID   string
	Datetime time.Time
	// Session is the editing-session identifier; empty means the change
	// was made outside an interactive session.
	Session  string
	CType    ChangeType
	CSubtype string
	// ChunkHash references the content-addressed body in the chunk store.
	ChunkHash string
	// Headword is a snapshot of the entry's headword at the time of the
	// change, so history stays readable after a rename.
	Headword  string
	Published bool
	Hidden    bool
	Note      string
}
