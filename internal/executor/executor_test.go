package executor

import (
	"context"
	stderr "errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/objectfs/s3backend/pkg/errors"
)

func TestAmbient_RunsInline(t *testing.T) {
	t.Parallel()

	sentinel := stderr.New("store down")
	var ran bool

	err := NewAmbient().Do(context.Background(), func(ctx context.Context) error {
		ran = true
		return sentinel
	})

	assert.True(t, ran, "work must have completed before Do returns")
	assert.Same(t, sentinel, err, "work errors pass through untouched")
}

func TestOwned_ReturnsWorkResult(t *testing.T) {
	t.Parallel()

	o := NewOwned(2, 8)
	defer o.Close(time.Second)

	require.NoError(t, o.Do(context.Background(), func(ctx context.Context) error { return nil }))

	sentinel := stderr.New("boom")
	err := o.Do(context.Background(), func(ctx context.Context) error { return sentinel })
	assert.ErrorIs(t, err, sentinel)
	assert.False(t, errors.IsCode(err, errors.ErrCodeDispatchFailure), "work errors are not dispatch failures")
}

func TestOwned_BoundsConcurrencyToWorkers(t *testing.T) {
	t.Parallel()

	o := NewOwned(2, 64)
	defer o.Close(time.Second)

	var running, peak int64
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = o.Do(context.Background(), func(ctx context.Context) error {
				n := atomic.AddInt64(&running, 1)
				for {
					p := atomic.LoadInt64(&peak)
					if n <= p || atomic.CompareAndSwapInt64(&peak, p, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				atomic.AddInt64(&running, -1)
				return nil
			})
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, atomic.LoadInt64(&peak), int64(2))
	assert.Equal(t, int64(16), o.Stats().Completed)
}

func TestOwned_RejectsWhenClosed(t *testing.T) {
	t.Parallel()

	o := NewOwned(1, 1)
	require.NoError(t, o.Close(time.Second))
	require.NoError(t, o.Close(time.Second), "Close is idempotent")

	err := o.Do(context.Background(), func(ctx context.Context) error {
		t.Error("work must not run on a closed executor")
		return nil
	})

	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeDispatchFailure))
	assert.ErrorIs(t, err, ErrClosed)
	assert.Equal(t, int64(1), o.Stats().Rejected)
}

func TestOwned_WaitsWhenQueueFull(t *testing.T) {
	t.Parallel()

	o := NewOwned(1, 1)
	defer o.Close(time.Second)

	started := make(chan struct{})
	release := make(chan struct{})
	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		_ = o.Do(context.Background(), func(ctx context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	go func() {
		defer wg.Done()
		_ = o.Do(context.Background(), func(ctx context.Context) error { return nil })
	}()
	require.Eventually(t, func() bool { return o.Stats().Queued == 1 }, time.Second, time.Millisecond)

	result := make(chan error, 1)
	go func() {
		result <- o.Do(context.Background(), func(ctx context.Context) error { return nil })
	}()

	select {
	case err := <-result:
		t.Fatalf("Do returned %v while the queue was full", err)
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	require.NoError(t, <-result)
	wg.Wait()
	assert.Equal(t, int64(0), o.Stats().Rejected)
}

func TestOwned_QueueWaitHonoursContext(t *testing.T) {
	t.Parallel()

	o := NewOwned(1, 1)
	release := make(chan struct{})
	defer func() {
		close(release)
		o.Close(time.Second)
	}()

	started := make(chan struct{})
	go func() {
		_ = o.Do(context.Background(), func(ctx context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started
	go func() {
		_ = o.Do(context.Background(), func(ctx context.Context) error { return nil })
	}()
	require.Eventually(t, func() bool { return o.Stats().Queued == 1 }, time.Second, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := o.Do(ctx, func(ctx context.Context) error {
		t.Error("work must not run after its context ended in the queue wait")
		return nil
	})

	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeDispatchFailure))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, int64(1), o.Stats().Rejected)
}

func TestOwned_ManyConcurrentSubmitters(t *testing.T) {
	t.Parallel()

	o := NewOwned(2, 4)
	defer o.Close(time.Second)

	var failed int64
	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := o.Do(context.Background(), func(ctx context.Context) error {
				time.Sleep(100 * time.Microsecond)
				return nil
			})
			if err != nil {
				atomic.AddInt64(&failed, 1)
			}
		}()
	}
	wg.Wait()

	assert.Zero(t, atomic.LoadInt64(&failed))
	assert.Equal(t, int64(200), o.Stats().Completed)
}

func TestOwned_PanicBecomesDispatchFailure(t *testing.T) {
	t.Parallel()

	o := NewOwned(1, 4)
	defer o.Close(time.Second)

	err := o.Do(context.Background(), func(ctx context.Context) error {
		panic("corrupted state")
	})

	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeDispatchFailure))
	assert.ErrorIs(t, err, ErrPanic)
	assert.Contains(t, err.Error(), "corrupted state")

	// the worker survives
	assert.NoError(t, o.Do(context.Background(), func(ctx context.Context) error { return nil }))
	assert.Equal(t, int64(1), o.Stats().Panics)
}

func TestOwned_HonoursContextWhileWaiting(t *testing.T) {
	t.Parallel()

	o := NewOwned(1, 4)
	release := make(chan struct{})
	defer func() {
		close(release)
		o.Close(time.Second)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := o.Do(ctx, func(ctx context.Context) error {
		<-release
		return nil
	})

	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeDispatchFailure))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestOwned_CloseDrainsQueuedTasks(t *testing.T) {
	t.Parallel()

	o := NewOwned(1, 16)

	var done int64
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = o.Do(context.Background(), func(ctx context.Context) error {
				time.Sleep(time.Millisecond)
				atomic.AddInt64(&done, 1)
				return nil
			})
		}()
	}
	require.Eventually(t, func() bool { return o.Stats().Submitted == 8 }, time.Second, time.Millisecond)

	require.NoError(t, o.Close(0))
	wg.Wait()
	assert.Equal(t, int64(8), atomic.LoadInt64(&done))
}

func TestNewOwned_Defaults(t *testing.T) {
	t.Parallel()

	o := NewOwned(0, 0)
	defer o.Close(time.Second)

	assert.Equal(t, DefaultWorkers, o.Stats().Workers)
	assert.Equal(t, DefaultQueueSize, cap(o.tasks))
}
