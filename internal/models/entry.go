package models

import "database/sql"

// Entry is a logical dictionary document identified by its headword.
// LatestID always references the newest change record once the entry has
// history; LatestPublishedID stays NULL until the first publish and then
// always references a published record.
type Entry struct {
	ID                int64
	Headword          string
	Deleted           bool
	LatestID          sql.NullInt64
	LatestPublishedID sql.NullInt64
}
