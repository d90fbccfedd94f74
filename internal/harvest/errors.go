package harvest

import "errors"

var (
	// ErrInvalidJobList is returned when the caller's job list is malformed. No job runs.
	ErrInvalidJobList = errors.New("invalid job list")
	// ErrUnknownModule is returned when no search module is registered for an engine.
	ErrUnknownModule = errors.New("unknown search module")
	// ErrNoTargets is returned by a module that could not issue a single request.
	ErrNoTargets = errors.New("no targets to request")
	// ErrQueueClosed is returned by a task queue after shutdown.
	ErrQueueClosed = errors.New("queue closed")
)
