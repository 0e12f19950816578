package tasks

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitForTerminal(t *testing.T, q *Queue, id uuid.UUID, timeout time.Duration) Snapshot {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		s, err := q.Status(id)
		require.NoError(t, err)
		if s.State == StateSucceeded || s.State == StateFailed || s.State == StateCancelled {
			return s
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("task never reached a terminal state")
	return Snapshot{}
}

func TestSubmitStatusResultHappyPath(t *testing.T) {
	q := NewQueue(2, nil)
	q.Start()
	defer q.Shutdown(context.Background())

	id := q.Submit(func(ctx context.Context) (any, error) {
		return 42, nil
	}, Options{})

	s := waitForTerminal(t, q, id, time.Second)
	assert.Equal(t, StateSucceeded, s.State)
	assert.Equal(t, 42, s.Result)

	value, err, ok, retErr := q.Result(id)
	require.NoError(t, retErr)
	assert.True(t, ok)
	assert.NoError(t, err)
	assert.Equal(t, 42, value)
}

func TestPriorityOrdering(t *testing.T) {
	q := NewQueue(1, nil)

	var mu sync.Mutex
	var order []int
	record := func(n int) Func {
		return func(ctx context.Context) (any, error) {
			mu.Lock()
			order = append(order, n)
			mu.Unlock()
			return n, nil
		}
	}

	// Submit before Start so all three land in the heap before any worker drains it.
	q.Submit(record(3), Options{Priority: 3})
	q.Submit(record(1), Options{Priority: 1})
	q.Submit(record(2), Options{Priority: 2})

	q.Start()
	defer q.Shutdown(context.Background())

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		done := len(order) == 3
		mu.Unlock()
		if done {
			break
		}
		time.Sleep(2 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestRetryThenSucceed(t *testing.T) {
	q := NewQueue(1, nil)
	q.Start()
	defer q.Shutdown(context.Background())

	var attempts atomic.Int32
	id := q.Submit(func(ctx context.Context) (any, error) {
		n := attempts.Add(1)
		if n < 3 {
			return nil, errors.New("not yet")
		}
		return "done", nil
	}, Options{MaxAttempts: 5, RetryBackoff: 5 * time.Millisecond})

	s := waitForTerminal(t, q, id, 2*time.Second)
	assert.Equal(t, StateSucceeded, s.State)
	assert.Equal(t, "done", s.Result)
	assert.Equal(t, int32(3), attempts.Load())
}

func TestRetryExhaustedThenFailed(t *testing.T) {
	q := NewQueue(1, nil)
	q.Start()
	defer q.Shutdown(context.Background())

	wantErr := errors.New("boom")
	id := q.Submit(func(ctx context.Context) (any, error) {
		return nil, wantErr
	}, Options{MaxAttempts: 2, RetryBackoff: 2 * time.Millisecond})

	s := waitForTerminal(t, q, id, time.Second)
	assert.Equal(t, StateFailed, s.State)
	assert.EqualError(t, s.Err, wantErr.Error())
}

func TestCancellation(t *testing.T) {
	q := NewQueue(1, nil)
	q.Start()
	defer q.Shutdown(context.Background())

	started := make(chan struct{})
	id := q.Submit(func(ctx context.Context) (any, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	}, Options{})

	<-started
	ok := q.Cancel(id)
	assert.True(t, ok)

	s := waitForTerminal(t, q, id, time.Second)
	assert.Equal(t, StateCancelled, s.State)
}

func TestResultTTLSweep(t *testing.T) {
	q := NewQueue(1, nil)
	q.Start()
	defer q.Shutdown(context.Background())

	id := q.Submit(func(ctx context.Context) (any, error) {
		return 1, nil
	}, Options{ResultTTL: 10 * time.Millisecond})

	waitForTerminal(t, q, id, time.Second)

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		_, err := q.Status(id)
		if errors.Is(err, ErrNotFound) {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("expired task was never swept")
}

func TestWorkerPanicIsolation(t *testing.T) {
	q := NewQueue(1, nil)
	q.Start()
	defer q.Shutdown(context.Background())

	panicID := q.Submit(func(ctx context.Context) (any, error) {
		panic("kaboom")
	}, Options{MaxAttempts: 1})

	okID := q.Submit(func(ctx context.Context) (any, error) {
		return "survived", nil
	}, Options{})

	panicSnap := waitForTerminal(t, q, panicID, time.Second)
	assert.Equal(t, StateFailed, panicSnap.State)

	okSnap := waitForTerminal(t, q, okID, time.Second)
	assert.Equal(t, StateSucceeded, okSnap.State)
	assert.Equal(t, "survived", okSnap.Result)
}
