// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across repo/service layers.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrProjectNotFound indicates the project row is missing.
	ErrProjectNotFound = errors.New("project not found")

	// ErrHistoryNotFound indicates the history entry is missing.
	ErrHistoryNotFound = errors.New("history entry not found")

	// ErrSnapshotNotFound indicates the snapshot is missing.
	ErrSnapshotNotFound = errors.New("snapshot not found")

	// ErrForbidden indicates the actor may not edit the project.
	ErrForbidden = errors.New("forbidden")

	// ErrAlreadyReverted indicates the history entry was reverted before.
	ErrAlreadyReverted = errors.New("already reverted")

	// ErrRevertConflict indicates the inverse diff conflicts with current state.
	ErrRevertConflict = errors.New("revert conflict")

	// ErrValidation indicates malformed or missing input, rejected before store access.
	ErrValidation = errors.New("validation")
)
