package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrPermissionDenied is returned by a Geolocator when location access is refused.
	ErrPermissionDenied = errors.New("location permission denied")
	// ErrEmptyTitle rejects task and subtask titles that are blank.
	ErrEmptyTitle = errors.New("title must not be empty")
	// ErrInvalidSize rejects unknown task sizes.
	ErrInvalidSize = errors.New("invalid task size")
	// ErrInvalidMode rejects unknown modes.
	ErrInvalidMode = errors.New("invalid mode")
	// ErrInvalidLocationKind rejects unknown location kinds.
	ErrInvalidLocationKind = errors.New("invalid location kind")
	// ErrNoBackend is returned when an operation needs an attached backend.
	ErrNoBackend = errors.New("no persistence backend attached")
)

// PersistenceError wraps a network or storage failure at the backend boundary.
type PersistenceError struct {
	Op      string
	Backend string
	Err     error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s via %s: %v", e.Op, e.Backend, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
