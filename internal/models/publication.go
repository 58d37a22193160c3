package models

import "time"

// PublicationAction distinguishes publish from unpublish audit rows.
type PublicationAction string

const (
	ActionPublish   PublicationAction = "publish"
	ActionUnpublish PublicationAction = "unpublish"
)

// PublicationChange is the append-only audit record of one publish or
// unpublish action, created exactly once per action.
type PublicationChange struct {
	ID             int64
	ChangeRecordID int64
	CType          PublicationAction
	Datetime       time.Time
	UserID         string
}
