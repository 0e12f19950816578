package tasks

import (
	"container/heap"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Queue is a fixed pool of workers pulling from a priority heap behind
// one mutex and a condition variable, per spec.md section 5's worker
// model, collapsed into a single package since tasks never need to
// survive a restart.
type Queue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	heap   taskHeap
	seq    uint64
	byID   map[uuid.UUID]*Task
	closed bool

	workers int
	wg      sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc

	logger *slog.Logger

	processed atomic.Int64
	failed    atomic.Int64
	retried   atomic.Int64
}

// NewQueue builds a Queue with the given worker count. Call Start to
// begin processing.
func NewQueue(workers int, logger *slog.Logger) *Queue {
	if workers <= 0 {
		workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		byID:    map[uuid.UUID]*Task{},
		workers: workers,
		ctx:     ctx,
		cancel:  cancel,
		logger:  logger,
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Start launches the worker pool and the result_ttl sweep goroutine.
func (q *Queue) Start() {
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.runWorker()
	}
	go q.sweepExpired()
}

// Submit enqueues fn with opts and returns its task_id.
func (q *Queue) Submit(fn Func, opts Options) uuid.UUID {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 1
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = time.Minute
	}
	if opts.ResultTTL <= 0 {
		opts.ResultTTL = 10 * time.Minute
	}

	t := &Task{
		ID:           uuid.New(),
		fn:           fn,
		priority:     opts.Priority,
		maxAttempts:  opts.MaxAttempts,
		retryBackoff: opts.RetryBackoff,
		maxBackoff:   opts.MaxBackoff,
		resultTTL:    opts.ResultTTL,
		state:        StateQueued,
	}

	q.mu.Lock()
	q.seq++
	t.seq = q.seq
	q.byID[t.ID] = t
	heap.Push(&q.heap, t)
	q.mu.Unlock()

	q.cond.Signal()
	return t.ID
}

// Cancel flags id for cooperative cancellation; the owning worker
// transitions it to StateCancelled at its next safe point.
func (q *Queue) Cancel(id uuid.UUID) bool {
	q.mu.Lock()
	t, ok := q.byID[id]
	q.mu.Unlock()
	if !ok {
		return false
	}
	t.cancelRequested.Store(true)
	return true
}

// Status returns id's current snapshot.
func (q *Queue) Status(id uuid.UUID) (Snapshot, error) {
	q.mu.Lock()
	t, ok := q.byID[id]
	q.mu.Unlock()
	if !ok {
		return Snapshot{}, ErrNotFound
	}
	return t.snapshot(), nil
}

// Result returns id's value or error, once terminal. ok is false while
// the task is still queued or running.
func (q *Queue) Result(id uuid.UUID) (value any, err error, ok bool, retErr error) {
	q.mu.Lock()
	t, found := q.byID[id]
	q.mu.Unlock()
	if !found {
		return nil, nil, false, ErrNotFound
	}

	s := t.snapshot()
	terminal := s.State == StateSucceeded || s.State == StateFailed || s.State == StateCancelled
	return s.Result, s.Err, terminal, nil
}

// Stats are cumulative counters since the Queue started.
type Stats struct {
	Processed int64
	Failed    int64
	Retried   int64
	Pending   int
}

func (q *Queue) Stats() Stats {
	q.mu.Lock()
	pending := len(q.heap)
	q.mu.Unlock()

	return Stats{
		Processed: q.processed.Load(),
		Failed:    q.failed.Load(),
		Retried:   q.retried.Load(),
		Pending:   pending,
	}
}

// Health reports "degraded" when the backlog is far beyond what the
// worker pool can plausibly drain, "ok" otherwise.
func (q *Queue) Health() string {
	q.mu.Lock()
	pending := len(q.heap)
	q.mu.Unlock()

	if pending > q.workers*1000 {
		return "degraded"
	}
	return "ok"
}

// Shutdown stops accepting new work from the heap and waits for
// in-flight tasks to finish, or ctx to expire.
func (q *Queue) Shutdown(ctx context.Context) error {
	q.mu.Lock()
	q.closed = true
	pending := q.heap
	q.heap = nil
	q.mu.Unlock()
	for _, t := range pending {
		q.finish(t, StateCancelled, nil, ErrCancelled)
	}
	q.cancel()
	q.cond.Broadcast()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Queue) runWorker() {
	defer q.wg.Done()
	for {
		t, ok := q.nextTask()
		if !ok {
			return
		}
		q.executeWithRecovery(t)
	}
}

func (q *Queue) nextTask() (*Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.heap) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.heap) == 0 {
		return nil, false
	}
	return heap.Pop(&q.heap).(*Task), true
}

// executeWithRecovery isolates a worker-goroutine panic from the rest of
// the pool: per spec.md's failure semantics, "worker crashes must not
// poison the queue," so a recovered panic here fails the task (eligible
// for retry) and lets runWorker's loop keep going instead of this
// goroutine dying silently.
func (q *Queue) executeWithRecovery(t *Task) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("tasks: worker crashed processing task",
				"task_id", t.ID.String(), "panic", r)
			q.retryOrFail(t, fmt.Errorf("tasks: worker crashed: %v", r))
		}
	}()
	q.execute(t)
}

func (q *Queue) execute(t *Task) {
	if t.cancelRequested.Load() {
		q.finish(t, StateCancelled, nil, ErrCancelled)
		return
	}

	t.mu.Lock()
	t.state = StateRunning
	t.attempt++
	t.mu.Unlock()

	ctx, cancel := context.WithCancel(q.ctx)
	stopWatch := make(chan struct{})
	go func() {
		ticker := time.NewTicker(25 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stopWatch:
				return
			case <-ticker.C:
				if t.cancelRequested.Load() {
					cancel()
					return
				}
			}
		}
	}()

	result, err := t.fn(ctx)
	close(stopWatch)
	cancel()

	if err != nil {
		if t.cancelRequested.Load() {
			q.finish(t, StateCancelled, nil, ErrCancelled)
			return
		}
		q.retryOrFail(t, err)
		return
	}

	q.finish(t, StateSucceeded, result, nil)
}

// retryOrFail re-queues t after a bounded exponential backoff when
// attempts remain, or finishes it as StateFailed otherwise.
func (q *Queue) retryOrFail(t *Task, cause error) {
	t.mu.Lock()
	attempt := t.attempt
	maxAttempts := t.maxAttempts
	t.mu.Unlock()

	if attempt >= maxAttempts {
		q.finish(t, StateFailed, nil, cause)
		return
	}

	q.retried.Add(1)
	backoff := t.retryBackoff * time.Duration(1<<uint(attempt-1))
	if t.maxBackoff > 0 && backoff > t.maxBackoff {
		backoff = t.maxBackoff
	}

	t.mu.Lock()
	t.state = StateQueued
	t.mu.Unlock()

	time.AfterFunc(backoff, func() {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			q.finish(t, StateFailed, nil, cause)
			return
		}
		heap.Push(&q.heap, t)
		q.mu.Unlock()
		q.cond.Signal()
	})
}

func (q *Queue) finish(t *Task, state State, result any, err error) {
	t.mu.Lock()
	t.state = state
	t.result = result
	t.err = err
	t.completedAt = time.Now()
	t.mu.Unlock()

	switch state {
	case StateSucceeded:
		q.processed.Add(1)
	case StateFailed:
		q.failed.Add(1)
	}
}

// sweepExpired discards terminal tasks whose result_ttl has elapsed.
func (q *Queue) sweepExpired() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-q.ctx.Done():
			return
		case <-ticker.C:
			now := time.Now()
			q.mu.Lock()
			for id, t := range q.byID {
				t.mu.Lock()
				terminal := t.state == StateSucceeded || t.state == StateFailed || t.state == StateCancelled
				expired := terminal && !t.completedAt.IsZero() && now.Sub(t.completedAt) > t.resultTTL
				t.mu.Unlock()
				if expired {
					delete(q.byID, id)
				}
			}
			q.mu.Unlock()
		}
	}
}
