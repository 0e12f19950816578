// Package tasks implements the background task queue: a fixed worker
// pool pulling from a priority heap, bounded-exponential retry on
// failure, cooperative cancellation, and result_ttl expiry, per
// spec.md section 4.6. It collapses an Enqueuer/Worker/Storage split
// into a single in-process package, since cross-restart durability is
// an explicit non-goal.
package tasks

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// State is a task's position in its queued -> running -> terminal
// lifecycle.
type State int

const (
	StateQueued State = iota
	StateRunning
	StateSucceeded
	StateFailed
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateQueued:
		return "queued"
	case StateRunning:
		return "running"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Func is the work a submitted task performs. It must check ctx
// periodically and return promptly when it is cancelled; the runtime
// never forcibly kills a goroutine.
type Func func(ctx context.Context) (any, error)

// Options configures one Submit call.
type Options struct {
	// Priority orders tasks ascending, lower runs first, matching the
	// rest of torque's priority convention.
	Priority int
	// MaxAttempts is the total number of tries, including the first;
	// defaults to 1 (no retry) when <= 0.
	MaxAttempts int
	// RetryBackoff is the base delay before a retry; doubled per
	// attempt (bounded exponential), per spec.md's "bounded exponential"
	// backoff language.
	RetryBackoff time.Duration
	// MaxBackoff caps the bounded exponential growth; defaults to
	// 1 minute when <= 0.
	MaxBackoff time.Duration
	// ResultTTL is how long a terminal task's result is retained before
	// the sweep discards it; defaults to 10 minutes when <= 0.
	ResultTTL time.Duration
}

// Task is one submission's lifecycle record.
type Task struct {
	ID       uuid.UUID
	fn       Func
	priority int
	seq      uint64

	maxAttempts  int
	retryBackoff time.Duration
	maxBackoff   time.Duration
	resultTTL    time.Duration

	cancelRequested atomic.Bool

	mu          sync.Mutex
	state       State
	attempt     int
	result      any
	err         error
	completedAt time.Time
}

// Snapshot is a point-in-time copy of a Task's status, safe to read
// without holding the task's lock.
type Snapshot struct {
	ID      uuid.UUID
	State   State
	Attempt int
	Result  any
	Err     error
}

func (t *Task) snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Snapshot{ID: t.ID, State: t.state, Attempt: t.attempt, Result: t.result, Err: t.err}
}
