// Package tasks owns the asynchronous scan task lifecycle: submission,
// progress tracking, cooperative cancellation, and result capture.
package tasks

import "errors"

var (
	// ErrInvalidTaskKind is returned when no provider is registered for the requested scan kind
	ErrInvalidTaskKind = errors.New("invalid task kind")

	// ErrTaskNotFound is returned when a task id is unknown to the store
	ErrTaskNotFound = errors.New("task not found")

	// ErrInvalidTransition is returned when a task is asked to leave a terminal state
	ErrInvalidTransition = errors.New("invalid task transition")

	// ErrProviderFailure wraps errors raised by an enrichment provider. These are
	// captured into the task's error field and never surface to API callers.
	ErrProviderFailure = errors.New("provider failure")

	// ErrEngineStopped is returned when submitting to an engine that is shutting down
	ErrEngineStopped = errors.New("task engine stopped")
)
