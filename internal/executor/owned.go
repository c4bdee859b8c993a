package executor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Default sizing of an owned executor.
const (
	DefaultWorkers   = 2
	DefaultQueueSize = 256
)

type task struct {
	ctx  context.Context
	fn   Func
	done chan error
}

// OwnedStats reports the state of an owned executor.
type OwnedStats struct {
	Workers   int   `json:"workers"`
	Queued    int   `json:"queued"`
	Submitted int64 `json:"submitted"`
	Completed int64 `json:"completed"`
	Rejected  int64 `json:"rejected"`
	Panics    int64 `json:"panics"`
}

// Owned is a fixed-size worker pool owned by a single volume.
// A full queue makes submitters wait for room; only a closed pool rejects.
type Owned struct {
	workers int
	tasks   chan task
	wg      sync.WaitGroup

	// mu guards closed and the close of tasks against concurrent sends
	mu     sync.RWMutex
	closed bool

	submitted int64
	completed int64
	rejected  int64
	panics    int64

	logger *slog.Logger
}

// NewOwned starts an owned executor with the given number of workers and queue depth.
// Non-positive values select the defaults.
func NewOwned(workers, queueSize int) *Owned {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}

	o := &Owned{
		workers: workers,
		tasks:   make(chan task, queueSize),
		logger:  slog.Default().With("component", "executor"),
	}

	for i := 0; i < workers; i++ {
		o.wg.Add(1)
		go o.worker(i)
	}

	o.logger.Debug("Owned executor started", "workers", workers, "queue_size", queueSize)
	return o
}

// Do queues fn and waits for its result. When the queue is full Do waits for
// room. If ctx ends first, Do returns a DISPATCH_FAILURE wrapping ctx.Err(); a
// task already queued still runs with that ctx.
func (o *Owned) Do(ctx context.Context, fn Func) error {
	t := task{ctx: ctx, fn: fn, done: make(chan error, 1)}

	// the read lock is held while waiting for room so Close cannot close tasks
	// under a pending send; workers keep draining meanwhile
	o.mu.RLock()
	if o.closed {
		o.mu.RUnlock()
		atomic.AddInt64(&o.rejected, 1)
		return dispatchFailure(ErrClosed, "task rejected")
	}
	select {
	case o.tasks <- t:
		atomic.AddInt64(&o.submitted, 1)
	case <-ctx.Done():
		o.mu.RUnlock()
		atomic.AddInt64(&o.rejected, 1)
		return dispatchFailure(ctx.Err(), "gave up waiting for queue room")
	}
	o.mu.RUnlock()

	select {
	case err := <-t.done:
		return err
	case <-ctx.Done():
		return dispatchFailure(ctx.Err(), "gave up waiting for task")
	}
}

func (o *Owned) worker(id int) {
	defer o.wg.Done()

	for t := range o.tasks {
		t.done <- o.run(id, t)
		atomic.AddInt64(&o.completed, 1)
	}
}

func (o *Owned) run(id int, t task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			atomic.AddInt64(&o.panics, 1)
			o.logger.Error("Task panicked", "worker", id, "panic", r)
			err = dispatchFailure(fmt.Errorf("%w: %v", ErrPanic, r), "task failed")
		}
	}()

	if ctxErr := t.ctx.Err(); ctxErr != nil {
		return dispatchFailure(ctxErr, "task cancelled before start")
	}
	return t.fn(t.ctx)
}

// Close stops accepting tasks, lets queued tasks finish and waits for the workers
// for at most timeout. A non-positive timeout waits indefinitely. Close is idempotent.
func (o *Owned) Close(timeout time.Duration) error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil
	}
	o.closed = true
	close(o.tasks)
	o.mu.Unlock()

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	if timeout <= 0 {
		<-done
		return nil
	}

	select {
	case <-done:
		o.logger.Debug("Owned executor stopped")
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("owned executor did not stop within %v", timeout)
	}
}

// Stats returns a snapshot of the executor counters.
func (o *Owned) Stats() OwnedStats {
	return OwnedStats{
		Workers:   o.workers,
		Queued:    len(o.tasks),
		Submitted: atomic.LoadInt64(&o.submitted),
		Completed: atomic.LoadInt64(&o.completed),
		Rejected:  atomic.LoadInt64(&o.rejected),
		Panics:    atomic.LoadInt64(&o.panics),
	}
}
