package http

import (
	"context"

	"github.com/stretchr/testify/mock"

	"neuropipe/internal/artifacts"
	"neuropipe/internal/operations"
	"neuropipe/internal/processing"
	"neuropipe/internal/registry"
)

// MockPipelineService is a mock implementation of PipelineService
type MockPipelineService struct {
	mock.Mock
}

func (m *MockPipelineService) Processors() []processing.Info {
	args := m.Called()
	return args.Get(0).([]processing.Info)
}

func (m *MockPipelineService) Stats() operations.QueueStats {
	args := m.Called()
	return args.Get(0).(operations.QueueStats)
}

func (m *MockPipelineService) Datasets(ctx context.Context) ([]*registry.Dataset, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*registry.Dataset), args.Error(1)
}

func (m *MockPipelineService) Dataset(ctx context.Context, id int64) (*registry.Dataset, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*registry.Dataset), args.Error(1)
}

func (m *MockPipelineService) RegisterDataset(ctx context.Context, d *registry.Dataset) error {
	args := m.Called(ctx, d)
	return args.Error(0)
}

func (m *MockPipelineService) ListMatrices(ctx context.Context, datasetID int64) ([]artifacts.MatrixInfo, error) {
	args := m.Called(ctx, datasetID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]artifacts.MatrixInfo), args.Error(1)
}

func (m *MockPipelineService) Preview(ctx context.Context, datasetID int64, params processing.Params) *processing.Result {
	args := m.Called(ctx, datasetID, params)
	return args.Get(0).(*processing.Result)
}

func (m *MockPipelineService) Submit(ctx context.Context, req operations.SubmitRequest) (*operations.Task, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*operations.Task), args.Error(1)
}

func (m *MockPipelineService) Task(jobID string) (*operations.Task, bool) {
	args := m.Called(jobID)
	if args.Get(0) == nil {
		return nil, args.Bool(1)
	}
	return args.Get(0).(*operations.Task), args.Bool(1)
}

func (m *MockPipelineService) GetJob(ctx context.Context, jobID string) (*registry.Job, error) {
	args := m.Called(ctx, jobID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*registry.Job), args.Error(1)
}

func (m *MockPipelineService) ListJobs(ctx context.Context, datasetID int64, limit int) ([]*registry.Job, error) {
	args := m.Called(ctx, datasetID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*registry.Job), args.Error(1)
}

func (m *MockPipelineService) Cancel(ctx context.Context, jobID string) error {
	args := m.Called(ctx, jobID)
	return args.Error(0)
}
