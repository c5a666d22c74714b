package operations

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "neuropipe/internal/errors"
	"neuropipe/internal/processing"
)

func TestTask_ResultIsNeverDropped(t *testing.T) {
	task := newTask("job-1", 1, processing.KindExtraction, nil, 3)

	// nobody reads: only cap-1 progress events fit
	for p := 1.0; p <= 10; p++ {
		task.publishProgress(p * 10)
	}
	res := &processing.Result{Success: true}
	require.True(t, task.finish(res, 100))
	assert.False(t, task.finish(&processing.Result{}, 0), "only the first result counts")

	var events []Event
	for ev := range task.Events() {
		events = append(events, ev)
	}
	require.Len(t, events, 3)
	assert.Equal(t, EventProgress, events[0].Type)
	assert.Equal(t, 10.0, events[0].Progress)
	assert.Equal(t, 20.0, events[1].Progress)
	assert.Equal(t, EventResult, events[2].Type)
	assert.Same(t, res, events[2].Result)
	assert.Equal(t, "job-1", events[2].JobID)

	// publishing after finish is ignored
	task.publishProgress(99)
}

func TestTask_MinimumBuffer(t *testing.T) {
	task := newTask("job-2", 1, processing.KindIndexing, nil, 0)
	task.publishProgress(50)
	require.True(t, task.finish(processing.Failure(apperrors.NewValidationError("bad")), 50))

	var types []EventType
	for ev := range task.Events() {
		types = append(types, ev.Type)
	}
	assert.Equal(t, []EventType{EventProgress, EventResult}, types)
}

func TestTask_Wait(t *testing.T) {
	task := newTask("job-3", 1, processing.KindAnnotation, nil, 4)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := task.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	_, done := task.Result()
	assert.False(t, done)

	go task.finish(&processing.Result{Success: true, Message: "ok"}, 100)
	res := waitResult(t, task)
	assert.Equal(t, "ok", res.Message)
}

func TestTask_StartAndCancelAreExclusive(t *testing.T) {
	started := newTask("a", 1, processing.KindModification, nil, 4)
	require.True(t, started.begin())
	assert.False(t, started.markCancelled())

	cancelled := newTask("b", 1, processing.KindModification, nil, 4)
	require.True(t, cancelled.markCancelled())
	assert.False(t, cancelled.markCancelled())
	assert.False(t, cancelled.begin())
}

func TestTask_CancelWithoutCoordinator(t *testing.T) {
	task := newTask("c", 1, processing.KindModification, nil, 4)
	err := task.Cancel(context.Background())
	assert.True(t, apperrors.Is(err, apperrors.ErrTypeValidation))
}
