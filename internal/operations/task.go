package operations

import (
	"context"
	"sync"
	"time"

	apperrors "neuropipe/internal/errors"
	"neuropipe/internal/processing"
)

// EventType distinguishes task events.
type EventType string

const (
	EventProgress EventType = "progress"
	EventResult   EventType = "result"
)

// Event is one message on a task's event stream.
type Event struct {
	Type     EventType          `json:"type"`
	JobID    string             `json:"job_id"`
	Progress float64            `json:"progress"`
	Result   *processing.Result `json:"result,omitempty"`
}

const minEventBuffer = 2

// Task is a handle on a submitted job.
//
// Events delivers progress events followed by exactly one result event, then
// the channel is closed. Progress events are dropped when the consumer falls
// behind; the result event never is.
type Task struct {
	ID        string
	DatasetID int64
	Kind      processing.Kind
	CreatedAt time.Time

	params processing.Params
	cancel func(ctx context.Context) error

	mu        sync.Mutex
	events    chan Event
	started   bool
	cancelled bool
	closed    bool
	done      chan struct{}
	result    *processing.Result
}

func newTask(id string, datasetID int64, kind processing.Kind, params processing.Params, buffer int) *Task {
	if buffer < minEventBuffer {
		buffer = minEventBuffer
	}
	return &Task{
		ID:        id,
		DatasetID: datasetID,
		Kind:      kind,
		CreatedAt: time.Now(),
		params:    params,
		events:    make(chan Event, buffer),
		done:      make(chan struct{}),
	}
}

// Events returns the event stream
func (t *Task) Events() <-chan Event {
	return t.events
}

// Done is closed once the result is available
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Result returns the result if the task has finished
func (t *Task) Result() (*processing.Result, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.result, t.closed
}

// Wait blocks until the task finishes or ctx is done.
func (t *Task) Wait(ctx context.Context) (*processing.Result, error) {
	select {
	case <-t.done:
		res, _ := t.Result()
		return res, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Cancel cancels the job if it has not started yet. A running job is never
// interrupted; Cancel then returns a validation error.
func (t *Task) Cancel(ctx context.Context) error {
	if t.cancel == nil {
		return apperrors.NewValidationError("job %s cannot be cancelled", t.ID)
	}
	return t.cancel(ctx)
}

// begin marks the task as running. It fails once the task was cancelled.
func (t *Task) begin() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed || t.cancelled {
		return false
	}
	t.started = true
	return true
}

// markCancelled succeeds only while the task has not started.
func (t *Task) markCancelled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed || t.started || t.cancelled {
		return false
	}
	t.cancelled = true
	return true
}

func (t *Task) publishProgress(percent float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	// one slot stays free for the result event
	if t.closed || len(t.events) >= cap(t.events)-1 {
		return
	}
	t.events <- Event{Type: EventProgress, JobID: t.ID, Progress: percent}
}

// finish publishes the result and closes the stream. Only the first call
// has any effect.
func (t *Task) finish(res *processing.Result, progress float64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return false
	}
	t.closed = true
	t.result = res
	t.events <- Event{Type: EventResult, JobID: t.ID, Progress: progress, Result: res}
	close(t.events)
	close(t.done)
	return true
}
