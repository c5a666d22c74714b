package operations

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"neuropipe/internal/infrastructure"
	"neuropipe/internal/processing"
	"neuropipe/internal/registry"
)

// startJobSpan opens the span covering one processor run
func startJobSpan(ctx context.Context, tracer trace.Tracer, ds *registry.Dataset, kind processing.Kind, jobID string) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		attribute.Int64("dataset.id", ds.ID),
		attribute.String("dataset.name", ds.Name),
		attribute.String("processor.kind", string(kind)),
	}
	if jobID != "" {
		attrs = append(attrs, attribute.String("job.id", jobID))
	}
	return tracer.Start(ctx, fmt.Sprintf("pipeline.%s", kind),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...))
}

// endJobSpan records the outcome on span, the span carried by ctx
func endJobSpan(ctx context.Context, span trace.Span, res *processing.Result) {
	span.SetAttributes(attribute.Bool("result.success", res.Success))
	if res.OutputPath != "" {
		span.SetAttributes(attribute.String("result.output_path", res.OutputPath))
	}
	if res.Success {
		span.SetStatus(codes.Ok, "")
	} else {
		span.SetAttributes(attribute.String("result.error_type", res.ErrorType))
		infrastructure.RecordError(ctx, errors.New(res.Message))
	}
	span.End()
}
