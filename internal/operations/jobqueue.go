package operations

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	apperrors "neuropipe/internal/errors"
	"neuropipe/internal/processing"
)

var (
	// ErrQueueFull is returned by Enqueue when the buffer is exhausted.
	ErrQueueFull = errors.New("job queue is full")
	// ErrQueueStopped is returned by Enqueue after Stop.
	ErrQueueStopped = errors.New("job queue is stopped")
)

// Executor runs one dequeued task to completion.
type Executor func(ctx context.Context, task *Task)

// QueueStats is a snapshot of the queue.
type QueueStats struct {
	Workers    int `json:"workers"`
	QueueSize  int `json:"queue_size"`
	QueueCap   int `json:"queue_cap"`
	ActiveJobs int `json:"active_jobs"`
}

// JobQueue runs tasks on a fixed pool of worker goroutines
type JobQueue struct {
	mu       sync.RWMutex
	jobs     chan *Task
	workers  int
	wg       sync.WaitGroup
	execute  Executor
	logger   *slog.Logger
	shutdown chan struct{}
	started  bool
	stopped  bool
	active   map[string]*Task // currently executing
}

// NewJobQueue creates a queue with the given worker count and buffer size
func NewJobQueue(workers, size int, execute Executor, logger *slog.Logger) *JobQueue {
	if workers <= 0 {
		workers = 4
	}
	if size <= 0 {
		size = workers * 2
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &JobQueue{
		jobs:     make(chan *Task, size),
		workers:  workers,
		execute:  execute,
		logger:   logger.With(slog.String("component", "jobqueue")),
		shutdown: make(chan struct{}),
		active:   make(map[string]*Task),
	}
}

// Start launches the workers. Calling it again is a no-op.
func (q *JobQueue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started || q.stopped {
		return
	}
	q.started = true

	q.logger.Info("starting job queue", slog.Int("workers", q.workers))
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, i)
	}
}

// Stop signals the workers and waits for running jobs to finish. Tasks still
// buffered stay in the queue; collect them with Drain.
func (q *JobQueue) Stop(timeout time.Duration) error {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return nil
	}
	q.stopped = true
	close(q.shutdown)
	q.mu.Unlock()

	q.logger.Info("stopping job queue")

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.logger.Info("job queue stopped gracefully")
		return nil
	case <-time.After(timeout):
		q.logger.Warn("job queue stop timeout exceeded")
		return fmt.Errorf("timeout waiting for workers to finish")
	}
}

// Enqueue adds task without blocking
func (q *JobQueue) Enqueue(task *Task) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.stopped {
		return ErrQueueStopped
	}
	select {
	case q.jobs <- task:
		q.logger.Info("job enqueued",
			slog.String("job_id", task.ID),
			slog.String("processor", string(task.Kind)))
		return nil
	default:
		return ErrQueueFull
	}
}

// Drain removes and returns every task still waiting in the buffer
func (q *JobQueue) Drain() []*Task {
	var out []*Task
	for {
		select {
		case task := <-q.jobs:
			out = append(out, task)
		default:
			return out
		}
	}
}

// Stats returns queue statistics
func (q *JobQueue) Stats() QueueStats {
	q.mu.RLock()
	defer q.mu.RUnlock()

	return QueueStats{
		Workers:    q.workers,
		QueueSize:  len(q.jobs),
		QueueCap:   cap(q.jobs),
		ActiveJobs: len(q.active),
	}
}

func (q *JobQueue) isStopped() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.stopped
}

func (q *JobQueue) worker(ctx context.Context, workerID int) {
	defer q.wg.Done()

	logger := q.logger.With(slog.Int("worker_id", workerID))
	logger.Debug("worker started")

	for {
		// shutdown wins over buffered work
		select {
		case <-ctx.Done():
			logger.Debug("worker stopped by context")
			return
		case <-q.shutdown:
			logger.Debug("worker stopped by shutdown")
			return
		default:
		}

		select {
		case <-ctx.Done():
			logger.Debug("worker stopped by context")
			return
		case <-q.shutdown:
			logger.Debug("worker stopped by shutdown")
			return
		case task := <-q.jobs:
			q.processJob(ctx, task, logger)
		}
	}
}

func (q *JobQueue) processJob(ctx context.Context, task *Task, logger *slog.Logger) {
	logger = logger.With(slog.String("job_id", task.ID))

	q.mu.Lock()
	q.active[task.ID] = task
	q.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			logger.Error("job processing panicked", slog.Any("panic", r))
			task.finish(processing.Failure(apperrors.NewInternalError(
				fmt.Sprintf("job processing panicked: %v", r), nil)), 0)
		}

		q.mu.Lock()
		delete(q.active, task.ID)
		q.mu.Unlock()
	}()

	q.execute(ctx, task)
}
