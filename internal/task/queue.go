package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Submission errors
var (
	// ErrQueueFull is returned when the queue has no room for another job.
	ErrQueueFull = errors.New("task queue is full")

	// ErrQueueClosed is returned when the queue has been stopped.
	ErrQueueClosed = errors.New("task queue is closed")
)

// Job is a unit of background work. The context passed to Run is bounded by
// the queue's per-job timeout, not by the HTTP request that submitted it.
type Job struct {
	// Kind identifies the job type for logging (e.g. "record_outcome").
	Kind string

	// Run executes the job.
	Run func(ctx context.Context) error
}

// QueueConfig holds configuration for the queue.
type QueueConfig struct {
	// Size is the buffer size of the in-memory queue.
	Size int

	// WorkerCount determines how many concurrent workers process jobs.
	WorkerCount int

	// JobTimeout bounds each job's execution. Zero means 30 seconds.
	JobTimeout time.Duration
}

// DefaultQueueConfig returns a QueueConfig with reasonable defaults.
func DefaultQueueConfig() QueueConfig {
	return QueueConfig{
		Size:        256,
		WorkerCount: 2,
		JobTimeout:  30 * time.Second,
	}
}

// Queue processes jobs in the background with a fixed worker pool.
type Queue struct {
	jobs    chan Job
	wg      sync.WaitGroup
	config  QueueConfig
	logger  *slog.Logger
	onError func(job Job, err error)

	mu     sync.Mutex
	closed bool
}

// NewQueue creates a new Queue. A nil logger falls back to slog.Default().
func NewQueue(config QueueConfig, logger *slog.Logger) *Queue {
	if config.Size <= 0 {
		config.Size = DefaultQueueConfig().Size
	}
	if config.WorkerCount <= 0 {
		config.WorkerCount = DefaultQueueConfig().WorkerCount
	}
	if config.JobTimeout <= 0 {
		config.JobTimeout = DefaultQueueConfig().JobTimeout
	}

	if logger == nil {
		logger = slog.Default()
	}

	q := &Queue{
		jobs:   make(chan Job, config.Size),
		config: config,
		logger: logger.With(slog.String("component", "task_queue")),
	}
	q.onError = func(job Job, err error) {
		q.logger.Error("job execution failed",
			slog.String("job_kind", job.Kind),
			slog.String("error", err.Error()))
	}

	return q
}

// SetErrorHandler replaces the default error handler. It must be called
// before Start.
func (q *Queue) SetErrorHandler(handler func(job Job, err error)) {
	q.onError = handler
}

// Start launches the worker pool.
func (q *Queue) Start() {
	for i := 0; i < q.config.WorkerCount; i++ {
		q.wg.Add(1)
		go q.worker(i)
	}
}

// Submit adds a job to the queue without blocking. Returns ErrQueueFull when
// the buffer is saturated and ErrQueueClosed after Stop; callers translate
// either into their own degraded-mode signal.
func (q *Queue) Submit(job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.jobs <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop closes the queue and waits for queued jobs to drain, up to the
// deadline on ctx. Jobs still running when the deadline passes complete or
// fail on their own; no further state is mutated on their behalf.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.jobs)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("task queue drain interrupted: %w", ctx.Err())
	}
}

// worker consumes jobs until the channel is closed and drained.
func (q *Queue) worker(id int) {
	defer q.wg.Done()

	q.logger.Debug("starting worker", slog.Int("worker_id", id))

	for job := range q.jobs {
		q.process(job, id)
	}

	q.logger.Debug("stopping worker", slog.Int("worker_id", id))
}

// process runs a single job under the configured timeout.
func (q *Queue) process(job Job, workerID int) {
	ctx, cancel := context.WithTimeout(context.Background(), q.config.JobTimeout)
	defer cancel()

	if err := job.Run(ctx); err != nil {
		q.onError(job, err)
		return
	}

	q.logger.Debug("job completed",
		slog.String("job_kind", job.Kind),
		slog.Int("worker_id", workerID))
}
