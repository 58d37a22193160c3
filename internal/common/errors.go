// Package common defines shared sentinel errors used across the storage
// core. Callers should use errors.Is (and errors.As for AlreadyLockedError)
// to match these values.
package common

import (
	"errors"
	"fmt"
	"time"
)

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// History errors.
	ErrInvalidTransition = errors.New("invalid change type for entry state")
	ErrNotPublishable    = errors.New("change record is not publishable")

	// Lock errors.
	ErrAlreadyLocked = errors.New("entry is locked")
	ErrNotOwner      = errors.New("lock is held by another user")

	// Handle errors.
	ErrConflict = errors.New("handle conflict")

	// Maintenance-job errors. SafetyCheckFailed indicates the selection
	// logic disagrees with a safety check and always aborts the whole run.
	ErrNoChecksDefined   = errors.New("no safety checks defined")
	ErrSafetyCheckFailed = errors.New("safety check failed")
)

// AlreadyLockedError reports a failed lock acquisition together with the
// current holder, so the caller can tell the user who is editing.
//
// errors.Is(err, ErrAlreadyLocked) matches it.
type AlreadyLockedError struct {
	Owner string
	Since time.Time
}

func (e *AlreadyLockedError) Error() string {
	return fmt.Sprintf("entry is locked by %s since %s", e.Owner, e.Since.Format(time.RFC3339))
}

func (e *AlreadyLockedError) Is(target error) bool {
	return target == ErrAlreadyLocked
}
