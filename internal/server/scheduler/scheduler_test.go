package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/vehiclerent/internal/logging"
	"github.com/dmitrijs2005/vehiclerent/internal/timex"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newScheduler(opts Options) *Scheduler {
	return New(opts, timex.NewFixedClock(time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)), logging.Nop{})
}

func stop(t *testing.T, s *Scheduler) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
}

func TestNew_Defaults(t *testing.T) {
	s := newScheduler(Options{})
	assert.Equal(t, DefaultQueueSize, cap(s.queue))
	assert.Equal(t, DefaultMaxAttempts, s.opts.MaxAttempts)
	assert.Equal(t, DefaultDrainTimeout, s.opts.DrainTimeout)
}

func TestEnqueue_RunsJobsOneAtATime(t *testing.T) {
	s := newScheduler(Options{})
	var running, maxRunning, calls atomic.Int32
	var wg sync.WaitGroup
	s.Register("work", func(ctx context.Context, j Job) error {
		defer wg.Done()
		n := running.Add(1)
		if n > maxRunning.Load() {
			maxRunning.Store(n)
		}
		time.Sleep(time.Millisecond)
		running.Add(-1)
		calls.Add(1)
		return nil
	})
	s.Start(context.Background())
	defer stop(t, s)

	for range 10 {
		wg.Add(1)
		id, err := s.Enqueue("work", nil)
		require.NoError(t, err)
		assert.NotEmpty(t, id)
	}
	wg.Wait()

	assert.Equal(t, int32(10), calls.Load())
	assert.Equal(t, int32(1), maxRunning.Load())
}

func TestRun_RetriesUntilMaxAttempts(t *testing.T) {
	s := newScheduler(Options{MaxAttempts: 3})
	attempts := make(chan int, 10)
	s.Register("flaky", func(ctx context.Context, j Job) error {
		attempts <- j.Attempts
		return errors.New("boom")
	})
	s.Start(context.Background())

	_, err := s.Enqueue("flaky", []byte("x"))
	require.NoError(t, err)

	for want := 1; want <= 3; want++ {
		select {
		case got := <-attempts:
			assert.Equal(t, want, got)
		case <-time.After(time.Second):
			t.Fatalf("attempt %d did not run", want)
		}
	}
	stop(t, s)
	assert.Empty(t, attempts, "no attempt past the limit")
}

func TestRun_SucceedsOnRetry(t *testing.T) {
	s := newScheduler(Options{})
	var calls atomic.Int32
	done := make(chan struct{})
	s.Register("flaky", func(ctx context.Context, j Job) error {
		if calls.Add(1) < 2 {
			return errors.New("transient")
		}
		close(done)
		return nil
	})
	s.Start(context.Background())

	_, err := s.Enqueue("flaky", nil)
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("job never succeeded")
	}
	stop(t, s)
	assert.Equal(t, int32(2), calls.Load())
}

func TestRun_PanicCountsAsFailure(t *testing.T) {
	s := newScheduler(Options{MaxAttempts: 2})
	var calls atomic.Int32
	s.Register("bad", func(ctx context.Context, j Job) error {
		calls.Add(1)
		panic("nil map")
	})
	s.Start(context.Background())

	_, err := s.Enqueue("bad", nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return calls.Load() == 2 }, time.Second, time.Millisecond)
	stop(t, s)
	assert.Equal(t, int32(2), calls.Load())
}

func TestRun_UnknownTypeIsDropped(t *testing.T) {
	s := newScheduler(Options{})
	done := make(chan struct{})
	s.Register("known", func(ctx context.Context, j Job) error {
		close(done)
		return nil
	})
	s.Start(context.Background())
	defer stop(t, s)

	_, err := s.Enqueue("unknown", nil)
	require.NoError(t, err)
	_, err = s.Enqueue("known", nil)
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("queue stalled after unknown job")
	}
}

func TestEnqueue_QueueFull(t *testing.T) {
	s := newScheduler(Options{QueueSize: 1})

	_, err := s.Enqueue("a", nil)
	require.NoError(t, err)
	_, err = s.Enqueue("a", nil)
	assert.ErrorIs(t, err, ErrQueueFull)
}

func TestEnqueue_AfterStop(t *testing.T) {
	s := newScheduler(Options{})
	s.Start(context.Background())
	stop(t, s)

	_, err := s.Enqueue("a", nil)
	assert.ErrorIs(t, err, ErrStopped)
	assert.NoError(t, s.Stop(context.Background()), "second stop is a no-op")
}

func TestStop_DrainsQueuedJobsOnce(t *testing.T) {
	s := newScheduler(Options{})
	release := make(chan struct{})
	var blockers, failures atomic.Int32
	s.Register("block", func(ctx context.Context, j Job) error {
		blockers.Add(1)
		<-release
		return nil
	})
	s.Register("fail", func(ctx context.Context, j Job) error {
		failures.Add(1)
		return errors.New("boom")
	})
	s.Start(context.Background())

	_, err := s.Enqueue("block", nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return blockers.Load() == 1 }, time.Second, time.Millisecond)
	_, err = s.Enqueue("fail", nil)
	require.NoError(t, err)

	stopped := make(chan error, 1)
	go func() { stopped <- s.Stop(context.Background()) }()
	require.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.stopped
	}, time.Second, time.Millisecond)
	close(release)

	select {
	case err := <-stopped:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("stop did not return")
	}
	assert.Equal(t, int32(1), failures.Load())
}

func TestStop_ReturnsWhenContextExpires(t *testing.T) {
	s := newScheduler(Options{})
	release := make(chan struct{})
	started := make(chan struct{})
	s.Register("block", func(ctx context.Context, j Job) error {
		close(started)
		<-release
		return nil
	})
	s.Start(context.Background())
	defer close(release)

	_, err := s.Enqueue("block", nil)
	require.NoError(t, err)
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.Stop(ctx), context.DeadlineExceeded)
}

func TestEvery_EnqueuesOnEachTick(t *testing.T) {
	s := newScheduler(Options{})
	var calls atomic.Int32
	s.Register("sweep", func(ctx context.Context, j Job) error {
		calls.Add(1)
		return nil
	})
	require.NoError(t, s.Every("sweep", 5*time.Millisecond))
	s.Start(context.Background())

	require.Eventually(t, func() bool { return calls.Load() >= 3 }, time.Second, time.Millisecond)
	stop(t, s)
}

func TestEvery_Errors(t *testing.T) {
	s := newScheduler(Options{})
	assert.Error(t, s.Every("sweep", 0))

	s.Start(context.Background())
	defer stop(t, s)
	assert.Error(t, s.Every("sweep", time.Hour))
}
