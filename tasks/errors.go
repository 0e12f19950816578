package tasks

import "errors"

// ErrNotFound is returned when a task_id is unknown (never submitted, or
// already swept past its result_ttl).
var ErrNotFound = errors.New("tasks: not found")

// ErrCancelled is the result.Err recorded for a task that reached
// StateCancelled.
var ErrCancelled = errors.New("tasks: cancelled")
