package http

import (
	"context"

	"neuropipe/internal/artifacts"
	"neuropipe/internal/operations"
	"neuropipe/internal/processing"
	"neuropipe/internal/registry"
)

// PipelineService is the part of the coordinator the handlers depend on.
// *operations.Coordinator satisfies it.
type PipelineService interface {
	Processors() []processing.Info
	Stats() operations.QueueStats

	Datasets(ctx context.Context) ([]*registry.Dataset, error)
	Dataset(ctx context.Context, id int64) (*registry.Dataset, error)
	RegisterDataset(ctx context.Context, d *registry.Dataset) error
	ListMatrices(ctx context.Context, datasetID int64) ([]artifacts.MatrixInfo, error)

	Preview(ctx context.Context, datasetID int64, params processing.Params) *processing.Result
	Submit(ctx context.Context, req operations.SubmitRequest) (*operations.Task, error)
	Task(jobID string) (*operations.Task, bool)
	GetJob(ctx context.Context, jobID string) (*registry.Job, error)
	ListJobs(ctx context.Context, datasetID int64, limit int) ([]*registry.Job, error)
	Cancel(ctx context.Context, jobID string) error
}

var _ PipelineService = (*operations.Coordinator)(nil)
