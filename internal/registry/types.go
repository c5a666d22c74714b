package registry

import (
	"context"
	"time"

	apperrors "neuropipe/internal/errors"
)

// Dataset is a raw file registered for processing.
type Dataset struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	FilePath    string    `json:"file_path"`
	FileFormat  string    `json:"file_format"`
	FileSize    int64     `json:"file_size"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// JobStatus is a job's lifecycle state.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// IsTerminal reports whether no further transition is possible.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// CanTransition reports whether a job may move from s to next. Staying in
// the same non-terminal state is allowed so progress can be recorded.
func (s JobStatus) CanTransition(next JobStatus) bool {
	switch s {
	case JobStatusPending:
		return next == JobStatusPending || next == JobStatusRunning || next == JobStatusCancelled || next == JobStatusFailed
	case JobStatusRunning:
		return next == JobStatusRunning || next == JobStatusCompleted || next == JobStatusFailed
	default:
		return false
	}
}

// Job is one processor run against a dataset.
type Job struct {
	ID          string         `json:"id"`
	DatasetID   int64          `json:"dataset_id"`
	Name        string         `json:"name"`
	Processor   string         `json:"processor"`
	Parameters  map[string]any `json:"parameters,omitempty"`
	Status      JobStatus      `json:"status"`
	Progress    float64        `json:"progress"`
	Message     string         `json:"message,omitempty"`
	ErrorType   string         `json:"error_type,omitempty"`
	OutputPath  string         `json:"output_path,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	StartedAt   *time.Time     `json:"started_at,omitempty"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
}

// StatusUpdate changes a job. Zero fields are left untouched.
type StatusUpdate struct {
	Status     JobStatus
	Progress   *float64
	Message    string
	ErrorType  string
	OutputPath string
}

// Progress is a helper for building a StatusUpdate.
func Progress(p float64) *float64 { return &p }

// Apply validates u against the job's current state and applies it.
// Entering running stamps StartedAt; entering a terminal state stamps
// CompletedAt.
func (j *Job) Apply(u StatusUpdate, now time.Time) error {
	if u.Status != "" && u.Status != j.Status {
		if !j.Status.CanTransition(u.Status) {
			return apperrors.NewValidationError("job %s cannot move from %s to %s", j.ID, j.Status, u.Status)
		}
		j.Status = u.Status
		switch {
		case u.Status == JobStatusRunning:
			j.StartedAt = &now
		case u.Status.IsTerminal():
			j.CompletedAt = &now
		}
	} else if j.Status.IsTerminal() {
		return apperrors.NewValidationError("job %s is already %s", j.ID, j.Status)
	}

	if u.Progress != nil {
		j.Progress = *u.Progress
	}
	if u.Message != "" {
		j.Message = u.Message
	}
	if u.ErrorType != "" {
		j.ErrorType = u.ErrorType
	}
	if u.OutputPath != "" {
		j.OutputPath = u.OutputPath
	}
	return nil
}

// JobFilter narrows ListJobs. Zero fields match everything.
type JobFilter struct {
	DatasetID int64
	Status    JobStatus
	Limit     int
}

func (f JobFilter) matches(j *Job) bool {
	if f.DatasetID != 0 && j.DatasetID != f.DatasetID {
		return false
	}
	return f.Status == "" || j.Status == f.Status
}

// Repository stores datasets and jobs.
type Repository interface {
	Resolve(ctx context.Context, id int64) (*Dataset, error)
	ResolveByName(ctx context.Context, name string) (*Dataset, error)
	Create(ctx context.Context, d *Dataset) error
	List(ctx context.Context) ([]*Dataset, error)

	CreateJob(ctx context.Context, j *Job) error
	GetJob(ctx context.Context, id string) (*Job, error)
	// ListJobs returns matching jobs, newest first.
	ListJobs(ctx context.Context, filter JobFilter) ([]*Job, error)
	UpdateStatus(ctx context.Context, jobID string, u StatusUpdate) (*Job, error)

	Close() error
}

func validateDataset(d *Dataset) error {
	if d == nil {
		return apperrors.NewValidationError("dataset is required")
	}
	if d.Name == "" {
		return apperrors.NewValidationError("dataset name is required")
	}
	if d.FilePath == "" {
		return apperrors.NewValidationError("dataset file path is required")
	}
	return nil
}

func validateJob(j *Job) error {
	if j == nil {
		return apperrors.NewValidationError("job is required")
	}
	if j.ID == "" {
		return apperrors.NewValidationError("job id is required")
	}
	if j.Processor == "" {
		return apperrors.NewValidationError("job processor is required")
	}
	return nil
}

func datasetNotFound(what string) error {
	return apperrors.NewNotFoundError("dataset " + what)
}

func jobNotFound(id string) error {
	return apperrors.NewNotFoundError("job " + id)
}
