package operations

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"neuropipe/internal/infrastructure"
	"neuropipe/internal/processing"
)

func TestCoordinator_JobSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	f := newFixture(t, func(o *Options) {
		o.Telemetry = &infrastructure.Telemetry{
			Tracer: tp.Tracer(infrastructure.InstrumentationName),
			Meter:  metricnoop.NewMeterProvider().Meter(infrastructure.InstrumentationName),
		}
	})
	ctx := context.Background()

	ok := f.coord.Run(ctx, f.ds.ID, "Matrix Extraction", extractionParams(), nil)
	require.True(t, ok.Success, ok.Message)
	failed := f.coord.Run(ctx, f.ds.ID, "Data Annotation", processing.Params{"annotation_name": "stim", "framerate": 0}, nil)
	require.False(t, failed.Success)

	spans := recorder.Ended()
	require.Len(t, spans, 2)

	assert.Equal(t, "pipeline.extraction", spans[0].Name())
	assert.Equal(t, codes.Ok, spans[0].Status().Code)
	assert.Empty(t, spans[0].Events())

	assert.Equal(t, codes.Error, spans[1].Status().Code)
	assert.Equal(t, failed.Message, spans[1].Status().Description)
	require.Len(t, spans[1].Events(), 1)
	assert.Equal(t, "exception", spans[1].Events()[0].Name)

	for _, span := range spans {
		assert.True(t, f.logs.ContainsAttr("otel_trace_id", span.SpanContext().TraceID().String()))
	}
}
