package models

import "database/sql"

// Handle is an ephemeral per-session integer alias for an entry, used so
// clients never see database primary keys. EntryID is NULL while the
// handle refers to a not-yet-persisted "new document".
type Handle struct {
	ID      int64
	Session string
	Handle  int
	EntryID sql.NullInt64
}
