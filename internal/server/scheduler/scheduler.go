// Package scheduler runs background jobs one at a time from a bounded
// in-process queue.
//
// Jobs are enqueued without blocking, either directly or by recurring tasks
// that each own a ticker. A failed job goes back to the tail of the queue
// until it has been attempted MaxAttempts times; after that it is dropped and
// the failure is logged. Stop lets the worker run what is still queued, once,
// within DrainTimeout.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/vehiclerent/internal/logging"
	"github.com/dmitrijs2005/vehiclerent/internal/timex"
	"github.com/google/uuid"
)

var (
	ErrQueueFull = errors.New("job queue is full")
	ErrStopped   = errors.New("scheduler is stopped")
)

const (
	DefaultQueueSize    = 64
	DefaultMaxAttempts  = 3
	DefaultDrainTimeout = 10 * time.Second
)

// Job is one unit of background work.
type Job struct {
	ID        string
	Type      string
	Payload   []byte
	Attempts  int
	CreatedAt time.Time
}

// Handler executes jobs of one type.
type Handler func(ctx context.Context, job Job) error

type Options struct {
	QueueSize    int
	MaxAttempts  int
	DrainTimeout time.Duration
}

type task struct {
	jobType string
	every   time.Duration
}

type Scheduler struct {
	opts  Options
	clock timex.Clock
	log   logging.Logger
	queue chan Job

	mu       sync.Mutex
	handlers map[string]Handler
	tasks    []task
	started  bool
	stopped  bool

	done chan struct{}
	wg   sync.WaitGroup
}

func New(opts Options, clock timex.Clock, log logging.Logger) *Scheduler {
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.DrainTimeout <= 0 {
		opts.DrainTimeout = DefaultDrainTimeout
	}
	return &Scheduler{
		opts:     opts,
		clock:    clock,
		log:      log.With("module", "scheduler"),
		queue:    make(chan Job, opts.QueueSize),
		handlers: map[string]Handler{},
		done:     make(chan struct{}),
	}
}

// Register sets the handler for jobType, replacing any previous one.
func (s *Scheduler) Register(jobType string, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[jobType] = h
}

// Every enqueues a jobType job each interval once the scheduler is started.
func (s *Scheduler) Every(jobType string, every time.Duration) error {
	if every <= 0 {
		return fmt.Errorf("task %s: interval must be positive", jobType)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return fmt.Errorf("task %s: scheduler already started", jobType)
	}
	s.tasks = append(s.tasks, task{jobType: jobType, every: every})
	return nil
}

// Enqueue adds a job to the tail of the queue and returns its id.
func (s *Scheduler) Enqueue(jobType string, payload []byte) (string, error) {
	j := Job{
		ID:        uuid.NewString(),
		Type:      jobType,
		Payload:   payload,
		CreatedAt: s.clock.Now(),
	}
	if err := s.push(j); err != nil {
		return "", err
	}
	return j.ID, nil
}

func (s *Scheduler) push(j Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return ErrStopped
	}
	select {
	case s.queue <- j:
		return nil
	default:
		return ErrQueueFull
	}
}

// Start launches the worker and the recurring tasks. Handlers run with ctx.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started || s.stopped {
		s.mu.Unlock()
		return
	}
	s.started = true
	tasks := append([]task(nil), s.tasks...)
	s.mu.Unlock()

	s.wg.Add(1)
	go s.work(ctx)

	for _, t := range tasks {
		s.wg.Add(1)
		go s.tick(ctx, t)
	}
	s.log.Info(ctx, "scheduler started", "tasks", len(tasks), "queue_size", s.opts.QueueSize)
}

// Stop refuses new jobs, waits for the worker to drain the queue and returns
// when it is done or ctx expires.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	close(s.done)
	s.mu.Unlock()

	finished := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		s.log.Info(ctx, "scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) tick(ctx context.Context, t task) {
	defer s.wg.Done()

	ticker := time.NewTicker(t.every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-ticker.C:
			if _, err := s.Enqueue(t.jobType, nil); err != nil {
				s.log.Warn(ctx, "error scheduling task", "job_type", t.jobType, "error", err)
			}
		}
	}
}

func (s *Scheduler) work(ctx context.Context) {
	defer s.wg.Done()

	for {
		select {
		case <-s.done:
			s.drain(ctx)
			return
		case j := <-s.queue:
			s.run(ctx, j, true)
		}
	}
}

func (s *Scheduler) drain(ctx context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.DrainTimeout)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			s.log.Warn(ctx, "drain timed out", "dropped", len(s.queue))
			return
		case j := <-s.queue:
			s.run(ctx, j, false)
		default:
			return
		}
	}
}

func (s *Scheduler) run(ctx context.Context, j Job, retry bool) {
	s.mu.Lock()
	h, ok := s.handlers[j.Type]
	s.mu.Unlock()
	if !ok {
		s.log.Warn(ctx, "no handler for job", "job_type", j.Type, "job_id", j.ID)
		return
	}

	j.Attempts++
	err := safeCall(ctx, h, j)
	if err == nil {
		s.log.Debug(ctx, "job done", "job_type", j.Type, "job_id", j.ID, "attempt", j.Attempts)
		return
	}

	s.log.Error(ctx, "job failed", "job_type", j.Type, "job_id", j.ID, "attempt", j.Attempts, "error", err)
	if !retry || j.Attempts >= s.opts.MaxAttempts {
		s.log.Error(ctx, "job dropped", "job_type", j.Type, "job_id", j.ID, "attempt", j.Attempts)
		return
	}
	if err := s.push(j); err != nil {
		s.log.Error(ctx, "error requeueing job", "job_type", j.Type, "job_id", j.ID, "attempt", j.Attempts, "error", err)
	}
}

func safeCall(ctx context.Context, h Handler, j Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h(ctx, j)
}
