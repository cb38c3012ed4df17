package db

import "errors"

var (
	// ErrStoreUnavailable wraps any failure to reach the backing store.
	// Callers treat it as transient and back off.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrInvalidTransition reports an attempt to move a task to a
	// status its current status does not precede. Indicates a logic
	// bug and is logged at error level, never swallowed.
	ErrInvalidTransition = errors.New("invalid task status transition")
	ErrTaskNotFound      = errors.New("task not found")
)
