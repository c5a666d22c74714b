package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"runtime"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.28.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"neuropipe/internal/config"
)

// InstrumentationName names the tracer and meter.
const InstrumentationName = "neuropipe"

// Telemetry holds the tracer, meter and the Prometheus scrape handler.
type Telemetry struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	Tracer         trace.Tracer
	Meter          metric.Meter
	MetricsHandler http.Handler
	logger         *slog.Logger
}

// NoopTelemetry discards spans and measurements. Tests and the CLI use it.
func NoopTelemetry() *Telemetry {
	return &Telemetry{
		Tracer:         tracenoop.NewTracerProvider().Tracer(InstrumentationName),
		Meter:          metricnoop.NewMeterProvider().Meter(InstrumentationName),
		MetricsHandler: http.NotFoundHandler(),
		logger:         slog.Default(),
	}
}

// InitializeTelemetry sets up tracing (stdout exporter) and metrics
// (Prometheus exporter on a private registry) as cfg enables them.
func InitializeTelemetry(cfg config.TelemetryConfig, logger *slog.Logger) (*Telemetry, error) {
	tel := NoopTelemetry()
	tel.logger = logger

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(config.AppVersion),
		attribute.String("service.instance.id", instanceID()),
	)

	if cfg.TracingEnabled {
		exporter, err := stdouttrace.New(stdouttrace.WithWriter(os.Stderr))
		if err != nil {
			return nil, fmt.Errorf("failed to create trace exporter: %w", err)
		}
		tp := sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exporter),
			sdktrace.WithResource(res),
			sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
		)
		tel.TracerProvider = tp
		tel.Tracer = tp.Tracer(InstrumentationName, trace.WithInstrumentationVersion(config.AppVersion))
		otel.SetTracerProvider(tp)
	}

	if cfg.MetricsEnabled {
		registry := promclient.NewRegistry()
		exporter, err := prometheus.New(prometheus.WithRegisterer(registry))
		if err != nil {
			return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
		}
		mp := sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(exporter),
		)
		tel.MeterProvider = mp
		tel.Meter = mp.Meter(InstrumentationName, metric.WithInstrumentationVersion(config.AppVersion))
		tel.MetricsHandler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
		otel.SetMeterProvider(mp)

		if err := registerRuntimeMetrics(tel.Meter); err != nil {
			return nil, fmt.Errorf("failed to register runtime metrics: %w", err)
		}
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.Info("telemetry initialized",
		slog.Bool("tracing_enabled", cfg.TracingEnabled),
		slog.Bool("metrics_enabled", cfg.MetricsEnabled),
		slog.Float64("sample_ratio", cfg.SampleRatio))
	return tel, nil
}

// Shutdown flushes and stops the providers
func (t *Telemetry) Shutdown(ctx context.Context) error {
	var errs []error
	if t.TracerProvider != nil {
		if err := t.TracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider shutdown: %w", err))
		}
	}
	if t.MeterProvider != nil {
		if err := t.MeterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider shutdown: %w", err))
		}
	}
	return errors.Join(errs...)
}

// registerRuntimeMetrics exposes goroutine and heap gauges read at scrape time.
func registerRuntimeMetrics(meter metric.Meter) error {
	goroutines, err := meter.Int64ObservableGauge("process_goroutines",
		metric.WithDescription("Number of live goroutines"))
	if err != nil {
		return err
	}
	heap, err := meter.Int64ObservableGauge("process_heap_alloc_bytes",
		metric.WithDescription("Bytes of allocated heap objects"),
		metric.WithUnit("By"))
	if err != nil {
		return err
	}

	_, err = meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		var ms runtime.MemStats
		runtime.ReadMemStats(&ms)
		o.ObserveInt64(goroutines, int64(runtime.NumGoroutine()))
		o.ObserveInt64(heap, int64(ms.HeapAlloc))
		return nil
	}, goroutines, heap)
	return err
}

// PipelineMetrics are the job-level instruments.
type PipelineMetrics struct {
	jobsTotal   metric.Int64Counter
	jobDuration metric.Float64Histogram
	activeJobs  metric.Int64UpDownCounter
	nanCells    metric.Int64Counter
}

// NewPipelineMetrics creates the pipeline instruments on meter
func NewPipelineMetrics(meter metric.Meter) (*PipelineMetrics, error) {
	jobsTotal, err := meter.Int64Counter("pipeline_jobs_total",
		metric.WithDescription("Processor jobs by processor and final status"))
	if err != nil {
		return nil, err
	}
	jobDuration, err := meter.Float64Histogram("pipeline_job_duration_seconds",
		metric.WithDescription("Processor job duration in seconds"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}
	activeJobs, err := meter.Int64UpDownCounter("pipeline_active_jobs",
		metric.WithDescription("Jobs currently running"))
	if err != nil {
		return nil, err
	}
	nanCells, err := meter.Int64Counter("pipeline_nan_cells_total",
		metric.WithDescription("Matrix cells coerced to NaN during extraction"))
	if err != nil {
		return nil, err
	}

	return &PipelineMetrics{
		jobsTotal:   jobsTotal,
		jobDuration: jobDuration,
		activeJobs:  activeJobs,
		nanCells:    nanCells,
	}, nil
}

// JobStarted marks a job as running
func (m *PipelineMetrics) JobStarted(ctx context.Context, processor string) {
	if m == nil {
		return
	}
	m.activeJobs.Add(ctx, 1, metric.WithAttributes(attribute.String("processor", processor)))
}

// JobFinished records the outcome of a job that JobStarted counted
func (m *PipelineMetrics) JobFinished(ctx context.Context, processor, status string, duration time.Duration) {
	if m == nil {
		return
	}
	proc := attribute.String("processor", processor)
	m.activeJobs.Add(ctx, -1, metric.WithAttributes(proc))
	m.jobsTotal.Add(ctx, 1, metric.WithAttributes(proc, attribute.String("status", status)))
	m.jobDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(proc, attribute.String("status", status)))
}

// JobSkipped counts a job that never ran (cancelled while pending)
func (m *PipelineMetrics) JobSkipped(ctx context.Context, processor, status string) {
	if m == nil {
		return
	}
	m.jobsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("processor", processor),
		attribute.String("status", status)))
}

// NaNCells adds n coerced cells
func (m *PipelineMetrics) NaNCells(ctx context.Context, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.nanCells.Add(ctx, int64(n))
}

// RecordError records err on the span in ctx
func RecordError(ctx context.Context, err error) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// TraceIDFromContext returns the OpenTelemetry trace id of the active span
func TraceIDFromContext(ctx context.Context) string {
	spanCtx := trace.SpanContextFromContext(ctx)
	if spanCtx.IsValid() {
		return spanCtx.TraceID().String()
	}
	return ""
}

func instanceID() string {
	hostname, _ := os.Hostname()
	return fmt.Sprintf("%s-%d", hostname, time.Now().Unix())
}
