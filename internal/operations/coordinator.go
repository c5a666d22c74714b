package operations

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"neuropipe/internal/artifacts"
	"neuropipe/internal/config"
	apperrors "neuropipe/internal/errors"
	"neuropipe/internal/infrastructure"
	"neuropipe/internal/processing"
	"neuropipe/internal/registry"
	"neuropipe/internal/tabular"
	"neuropipe/internal/validation"
)

// Messages written to the registry for jobs that never ran.
const (
	msgCancelled   = "cancelled"
	msgInterrupted = "interrupted by restart"
)

// TableLoader reads a dataset's raw file.
type TableLoader interface {
	Load(ctx context.Context, path string, opts tabular.LoadOptions) (*tabular.Table, error)
}

// Options wires a Coordinator. Repository, Processors and Paths are required.
type Options struct {
	Repository registry.Repository
	Processors *processing.Registry
	Loader     TableLoader
	Paths      *config.Paths
	Pipeline   config.PipelineConfig
	Telemetry  *infrastructure.Telemetry
	Logger     *slog.Logger
}

// SubmitRequest asks for a background job.
type SubmitRequest struct {
	DatasetID  int64             `json:"dataset_id"`
	Processor  string            `json:"processor" validate:"required"`
	JobName    string            `json:"job_name,omitempty"`
	Parameters processing.Params `json:"parameters,omitempty"`
}

// Coordinator runs processors against registered datasets
type Coordinator struct {
	repo       registry.Repository
	processors *processing.Registry
	loader     TableLoader
	sources    *validation.SourceValidator
	paths      *config.Paths
	pipeline   config.PipelineConfig
	tracer     trace.Tracer
	metrics    *infrastructure.PipelineMetrics
	logger     *slog.Logger

	locks *KeyedMutex
	queue *JobQueue

	mu    sync.Mutex
	tasks map[string]*Task // submitted and not yet finished
}

// NewCoordinator creates a Coordinator. Call Start before Submit.
func NewCoordinator(opts Options) (*Coordinator, error) {
	if opts.Repository == nil {
		return nil, apperrors.NewConfigError("coordinator requires a repository", nil)
	}
	if opts.Processors == nil {
		return nil, apperrors.NewConfigError("coordinator requires a processor registry", nil)
	}
	if opts.Paths == nil {
		return nil, apperrors.NewConfigError("coordinator requires resolved paths", nil)
	}
	if opts.Loader == nil {
		opts.Loader = tabular.NewLoader()
	}
	if opts.Telemetry == nil {
		opts.Telemetry = infrastructure.NoopTelemetry()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	opts.Pipeline = withPipelineDefaults(opts.Pipeline)

	metrics, err := infrastructure.NewPipelineMetrics(opts.Telemetry.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline metrics: %w", err)
	}

	c := &Coordinator{
		repo:       opts.Repository,
		processors: opts.Processors,
		loader:     opts.Loader,
		sources:    validation.NewSourceValidator(opts.Logger),
		paths:      opts.Paths,
		pipeline:   opts.Pipeline,
		tracer:     opts.Telemetry.Tracer,
		metrics:    metrics,
		logger:     infrastructure.WithComponent(opts.Logger, "coordinator"),
		locks:      NewKeyedMutex(),
		tasks:      make(map[string]*Task),
	}
	c.queue = NewJobQueue(opts.Pipeline.Workers, opts.Pipeline.QueueSize, c.runTask, opts.Logger)
	return c, nil
}

func withPipelineDefaults(p config.PipelineConfig) config.PipelineConfig {
	if p.Workers <= 0 {
		p.Workers = config.DefaultWorkers
	}
	if p.QueueSize <= 0 {
		p.QueueSize = config.DefaultQueueSize
	}
	if p.PreviewSize <= 0 {
		p.PreviewSize = config.DefaultPreviewSize
	}
	if p.EventBuffer <= 0 {
		p.EventBuffer = config.DefaultEventBuffer
	}
	return p
}

// Start fails jobs left over from a previous process and starts the workers.
func (c *Coordinator) Start(ctx context.Context) error {
	if _, err := c.RecoverStale(ctx); err != nil {
		return err
	}
	c.queue.Start(ctx)
	return nil
}

// Shutdown stops the workers. Jobs that never left the queue are cancelled.
func (c *Coordinator) Shutdown(ctx context.Context, timeout time.Duration) error {
	err := c.queue.Stop(timeout)
	for _, task := range c.queue.Drain() {
		c.cancelTask(ctx, task)
	}
	return err
}

// Stats returns job queue statistics
func (c *Coordinator) Stats() QueueStats {
	return c.queue.Stats()
}

// Processors lists the registered processors
func (c *Coordinator) Processors() []processing.Info {
	return c.processors.Describe()
}

// Run executes a processor synchronously and always returns a result.
// Failures, including unknown datasets or processors and panics, are
// reported in the result rather than as errors.
func (c *Coordinator) Run(ctx context.Context, datasetID int64, processorName string, params processing.Params, progress processing.ProgressFunc) *processing.Result {
	return c.guard(ctx, func() *processing.Result {
		ds, err := c.repo.Resolve(ctx, datasetID)
		if err != nil {
			return processing.Failure(err)
		}
		proc, err := c.processors.Lookup(processorName)
		if err != nil {
			return processing.Failure(err)
		}
		return c.execute(ctx, ds, proc, params, NewProgressTracker(progress), "")
	})
}

// Preview runs the extraction preview. Nothing is written.
func (c *Coordinator) Preview(ctx context.Context, datasetID int64, params processing.Params) *processing.Result {
	return c.Run(ctx, datasetID, string(processing.KindPreview), params, nil)
}

// guard turns a panic in fn into a failure result
func (c *Coordinator) guard(ctx context.Context, fn func() *processing.Result) (res *processing.Result) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.ErrorContext(ctx, "pipeline_run_panicked", slog.Any("panic", r))
			res = processing.Failure(apperrors.NewInternalError(fmt.Sprintf("pipeline run panicked: %v", r), nil))
		}
	}()
	return fn()
}

func (c *Coordinator) execute(ctx context.Context, ds *registry.Dataset, proc processing.Processor, params processing.Params, tracker *ProgressTracker, jobID string) *processing.Result {
	kind := proc.Kind()
	ctx, span := startJobSpan(ctx, c.tracer, ds, kind, jobID)
	logger := c.logger.With(
		slog.Int64("dataset_id", ds.ID),
		slog.String("dataset", ds.Name),
		slog.String("processor", string(kind)))
	if jobID != "" {
		logger = logger.With(slog.String("job_id", jobID))
	}
	if spanTrace := infrastructure.TraceIDFromContext(ctx); spanTrace != "" {
		logger = logger.With(slog.String("otel_trace_id", spanTrace))
	}

	res := c.executeLocked(ctx, ds, proc, params, tracker, logger)
	endJobSpan(ctx, span, res)
	return res
}

func (c *Coordinator) executeLocked(ctx context.Context, ds *registry.Dataset, proc processing.Processor, params processing.Params, tracker *ProgressTracker, logger *slog.Logger) *processing.Result {
	kind := proc.Kind()

	// previews never write, so they skip the dataset lock
	if kind != processing.KindPreview {
		layout, err := c.paths.DatasetLayout(ds.Name)
		if err != nil {
			return processing.Failure(err)
		}
		// keyed on the directory: distinct names can share a folder
		unlock, err := c.locks.Lock(ctx, layout.Root)
		if err != nil {
			return processing.Failure(apperrors.NewCancelledError(
				fmt.Sprintf("%s not started: %v", kind.DisplayName(), err)))
		}
		defer unlock()
	}

	in, err := c.prepare(ctx, ds, kind, params)
	if err != nil {
		logger.WarnContext(ctx, "processor_input_failed", slog.String("error", err.Error()))
		return processing.Failure(err)
	}

	logger.InfoContext(ctx, "processor_started")
	start := time.Now()
	c.metrics.JobStarted(ctx, string(kind))

	res := processing.Execute(ctx, proc, in, tracker.Func())

	elapsed := time.Since(start)
	c.metrics.JobFinished(ctx, string(kind), string(resultStatus(res)), elapsed)
	if n, ok := res.Statistics["nan_values_count"].(int); ok {
		c.metrics.NaNCells(ctx, n)
	}

	if res.Success {
		tracker.Update(100)
		logger.InfoContext(ctx, "processor_completed",
			slog.Duration("duration", elapsed),
			slog.String("output_path", res.OutputPath))
	} else {
		logger.WarnContext(ctx, "processor_failed",
			slog.Duration("duration", elapsed),
			slog.String("error_type", res.ErrorType),
			slog.String("error", res.Message))
	}
	return res
}

// prepare builds the processor input for ds
func (c *Coordinator) prepare(ctx context.Context, ds *registry.Dataset, kind processing.Kind, params processing.Params) (processing.Input, error) {
	store, err := c.store(ds)
	if err != nil {
		return processing.Input{}, err
	}
	if kind != processing.KindPreview {
		if err := store.Ensure(); err != nil {
			return processing.Input{}, apperrors.NewStorageError(
				fmt.Sprintf("failed to create directories for dataset %s", ds.Name), err)
		}
	}

	p := params.Clone()
	p[processing.ParamDatasetName] = ds.Name
	p[processing.ParamDatasetPath] = ds.FilePath
	p[processing.ParamFileFormat] = ds.FileFormat

	in := processing.Input{Store: store, Params: p}
	if kind.NeedsTable() {
		table, err := c.loader.Load(ctx, ds.FilePath, tabular.LoadOptions{
			Format: ds.FileFormat,
			Sheet:  p.String("sheet"),
		})
		if err != nil {
			return processing.Input{}, err
		}
		in.Table = table
	}
	return in, nil
}

func (c *Coordinator) store(ds *registry.Dataset) (*artifacts.Store, error) {
	layout, err := c.paths.DatasetLayout(ds.Name)
	if err != nil {
		return nil, err
	}
	return artifacts.NewStore(layout, c.logger), nil
}

func resultStatus(res *processing.Result) registry.JobStatus {
	if res.Success {
		return registry.JobStatusCompleted
	}
	return registry.JobStatusFailed
}

// Submit records a pending job and queues it.
func (c *Coordinator) Submit(ctx context.Context, req SubmitRequest) (*Task, error) {
	ds, err := c.repo.Resolve(ctx, req.DatasetID)
	if err != nil {
		return nil, err
	}
	proc, err := c.processors.Lookup(req.Processor)
	if err != nil {
		return nil, err
	}
	kind := proc.Kind()

	name := strings.TrimSpace(req.JobName)
	if name == "" {
		name = defaultJobName(kind, ds.Name)
	}
	params := req.Parameters.Clone()

	job := &registry.Job{
		ID:         uuid.NewString(),
		DatasetID:  ds.ID,
		Name:       name,
		Processor:  string(kind),
		Parameters: params,
		Status:     registry.JobStatusPending,
	}
	if err := c.repo.CreateJob(ctx, job); err != nil {
		return nil, err
	}

	task := newTask(job.ID, ds.ID, kind, params, c.pipeline.EventBuffer)
	task.cancel = func(ctx context.Context) error { return c.Cancel(ctx, task.ID) }

	c.mu.Lock()
	c.tasks[task.ID] = task
	c.mu.Unlock()

	if err := c.queue.Enqueue(task); err != nil {
		c.forget(task.ID)
		c.updateStatus(ctx, job.ID, registry.StatusUpdate{
			Status:    registry.JobStatusFailed,
			Message:   err.Error(),
			ErrorType: string(apperrors.ErrTypeInternal),
		})
		return nil, err
	}

	c.logger.InfoContext(ctx, "job_submitted",
		slog.String("job_id", job.ID),
		slog.String("job_name", name),
		slog.Int64("dataset_id", ds.ID),
		slog.String("processor", string(kind)))
	return task, nil
}

func defaultJobName(kind processing.Kind, dataset string) string {
	return strings.ReplaceAll(kind.DisplayName(), " ", "_") + "_" + dataset
}

// Task returns the handle of a job that has not finished yet
func (c *Coordinator) Task(jobID string) (*Task, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	task, ok := c.tasks[jobID]
	return task, ok
}

func (c *Coordinator) forget(jobID string) {
	c.mu.Lock()
	delete(c.tasks, jobID)
	c.mu.Unlock()
}

// Cancel cancels a job that is still pending. Running and finished jobs
// cannot be cancelled.
func (c *Coordinator) Cancel(ctx context.Context, jobID string) error {
	task, ok := c.Task(jobID)
	if !ok {
		job, err := c.repo.GetJob(ctx, jobID)
		if err != nil {
			return err
		}
		return apperrors.NewValidationError("job %s is %s and cannot be cancelled", jobID, job.Status)
	}
	if !c.cancelTask(ctx, task) {
		return apperrors.NewValidationError("job %s is already running and cannot be cancelled", jobID)
	}
	return nil
}

func (c *Coordinator) cancelTask(ctx context.Context, task *Task) bool {
	if !task.markCancelled() {
		return false
	}
	c.updateStatus(ctx, task.ID, registry.StatusUpdate{
		Status:    registry.JobStatusCancelled,
		Message:   msgCancelled,
		ErrorType: string(apperrors.ErrTypeCancelled),
	})
	c.metrics.JobSkipped(ctx, string(task.Kind), string(registry.JobStatusCancelled))
	task.finish(processing.Failure(apperrors.NewCancelledError(msgCancelled)), 0)
	c.forget(task.ID)

	c.logger.InfoContext(ctx, "job_cancelled", slog.String("job_id", task.ID))
	return true
}

// runTask is the JobQueue executor
func (c *Coordinator) runTask(ctx context.Context, task *Task) {
	if !task.begin() {
		c.logger.DebugContext(ctx, "job_skipped", slog.String("job_id", task.ID))
		return
	}
	ctx = infrastructure.EnsureTraceID(ctx)

	c.updateStatus(ctx, task.ID, registry.StatusUpdate{
		Status:   registry.JobStatusRunning,
		Progress: registry.Progress(0),
	})

	tracker := NewProgressTracker(func(percent float64) {
		task.publishProgress(percent)
		c.updateStatus(ctx, task.ID, registry.StatusUpdate{Progress: registry.Progress(percent)})
	})

	res := c.guard(ctx, func() *processing.Result {
		ds, err := c.repo.Resolve(ctx, task.DatasetID)
		if err != nil {
			return processing.Failure(err)
		}
		proc, err := c.processors.Get(task.Kind)
		if err != nil {
			return processing.Failure(err)
		}
		return c.execute(ctx, ds, proc, task.params, tracker, task.ID)
	})

	c.updateStatus(ctx, task.ID, registry.StatusUpdate{
		Status:     resultStatus(res),
		Progress:   registry.Progress(tracker.Current()),
		Message:    res.Message,
		ErrorType:  res.ErrorType,
		OutputPath: res.OutputPath,
	})
	task.finish(res, tracker.Current())
	c.forget(task.ID)
}

// updateStatus writes u to the registry. Failures are logged; the job
// itself carries on.
func (c *Coordinator) updateStatus(ctx context.Context, jobID string, u registry.StatusUpdate) {
	if _, err := c.repo.UpdateStatus(ctx, jobID, u); err != nil {
		c.logger.ErrorContext(ctx, "job_status_update_failed",
			slog.String("job_id", jobID),
			slog.String("status", string(u.Status)),
			slog.String("error", err.Error()))
	}
}

// RecoverStale fails jobs a previous process left pending or running. It
// returns how many were updated.
func (c *Coordinator) RecoverStale(ctx context.Context) (int, error) {
	var stale []*registry.Job
	for _, status := range []registry.JobStatus{registry.JobStatusRunning, registry.JobStatusPending} {
		jobs, err := c.repo.ListJobs(ctx, registry.JobFilter{Status: status})
		if err != nil {
			return 0, fmt.Errorf("failed to list %s jobs: %w", status, err)
		}
		stale = append(stale, jobs...)
	}

	recovered := 0
	for _, job := range stale {
		if _, live := c.Task(job.ID); live {
			continue
		}
		_, err := c.repo.UpdateStatus(ctx, job.ID, registry.StatusUpdate{
			Status:    registry.JobStatusFailed,
			Message:   msgInterrupted,
			ErrorType: string(apperrors.ErrTypeInternal),
		})
		if err != nil {
			c.logger.ErrorContext(ctx, "job_recovery_failed",
				slog.String("job_id", job.ID),
				slog.String("error", err.Error()))
			continue
		}
		recovered++
	}
	if recovered > 0 {
		c.logger.InfoContext(ctx, "stale_jobs_recovered", slog.Int("count", recovered))
	}
	return recovered, nil
}

// GetJob returns a job from the registry
func (c *Coordinator) GetJob(ctx context.Context, jobID string) (*registry.Job, error) {
	return c.repo.GetJob(ctx, jobID)
}

// ListJobs returns a dataset's jobs, newest first
func (c *Coordinator) ListJobs(ctx context.Context, datasetID int64, limit int) ([]*registry.Job, error) {
	if _, err := c.repo.Resolve(ctx, datasetID); err != nil {
		return nil, err
	}
	return c.repo.ListJobs(ctx, registry.JobFilter{DatasetID: datasetID, Limit: limit})
}

// ListMatrices lists the matrices a dataset's processors have produced
func (c *Coordinator) ListMatrices(ctx context.Context, datasetID int64) ([]artifacts.MatrixInfo, error) {
	ds, err := c.repo.Resolve(ctx, datasetID)
	if err != nil {
		return nil, err
	}
	store, err := c.store(ds)
	if err != nil {
		return nil, err
	}
	return store.ListMatrices()
}

// Dataset resolves a dataset by id
func (c *Coordinator) Dataset(ctx context.Context, id int64) (*registry.Dataset, error) {
	return c.repo.Resolve(ctx, id)
}

// DatasetByName resolves a dataset by name
func (c *Coordinator) DatasetByName(ctx context.Context, name string) (*registry.Dataset, error) {
	return c.repo.ResolveByName(ctx, name)
}

// Datasets lists registered datasets
func (c *Coordinator) Datasets(ctx context.Context) ([]*registry.Dataset, error) {
	return c.repo.List(ctx)
}

// RegisterDataset validates the raw file behind d and stores d. The file
// format defaults to the file extension; the file size is filled in.
func (c *Coordinator) RegisterDataset(ctx context.Context, d *registry.Dataset) error {
	if d == nil {
		return apperrors.NewValidationError("dataset is required")
	}
	d.Name = strings.TrimSpace(d.Name)
	if _, err := config.SanitizeFolderName(d.Name); err != nil {
		return err
	}

	src, err := c.sources.Validate(d.FilePath, d.FileFormat)
	if err != nil {
		return err
	}

	d.FilePath = src.Path
	d.FileFormat = src.Format
	d.FileSize = src.Size
	if err := c.repo.Create(ctx, d); err != nil {
		return err
	}

	c.logger.InfoContext(ctx, "dataset_registered",
		slog.Int64("dataset_id", d.ID),
		slog.String("dataset", d.Name),
		slog.String("file_format", d.FileFormat),
		slog.Int64("file_size", d.FileSize))
	return nil
}
