package registry

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	apperrors "neuropipe/internal/errors"
)

// Memory is an in-process Repository. Values are copied on the way in and
// out so callers never share state with the store.
type Memory struct {
	mu       sync.RWMutex
	datasets map[int64]*Dataset
	jobs     map[string]*Job
	nextID   int64
	now      func() time.Time
}

var _ Repository = (*Memory)(nil)

// NewMemory creates an empty in-memory repository
func NewMemory() *Memory {
	return &Memory{
		datasets: make(map[int64]*Dataset),
		jobs:     make(map[string]*Job),
		nextID:   1,
		now:      time.Now,
	}
}

// Resolve returns the dataset with id.
func (m *Memory) Resolve(_ context.Context, id int64) (*Dataset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	d, ok := m.datasets[id]
	if !ok {
		return nil, datasetNotFound(strconv.FormatInt(id, 10))
	}
	cp := *d
	return &cp, nil
}

// ResolveByName returns the dataset called name.
func (m *Memory) ResolveByName(_ context.Context, name string) (*Dataset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, d := range m.datasets {
		if d.Name == name {
			cp := *d
			return &cp, nil
		}
	}
	return nil, datasetNotFound(fmt.Sprintf("%q", name))
}

// Create stores d and fills in its ID and CreatedAt.
func (m *Memory) Create(_ context.Context, d *Dataset) error {
	if err := validateDataset(d); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.datasets {
		if existing.Name == d.Name {
			return apperrors.NewValidationError("dataset %q already exists", d.Name)
		}
	}
	d.ID = m.nextID
	m.nextID++
	if d.CreatedAt.IsZero() {
		d.CreatedAt = m.now().UTC()
	}
	cp := *d
	m.datasets[d.ID] = &cp
	return nil
}

// List returns every dataset ordered by ID.
func (m *Memory) List(_ context.Context) ([]*Dataset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Dataset, 0, len(m.datasets))
	for _, d := range m.datasets {
		cp := *d
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// CreateJob stores j. Its dataset must exist.
func (m *Memory) CreateJob(_ context.Context, j *Job) error {
	if err := validateJob(j); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.datasets[j.DatasetID]; !ok {
		return datasetNotFound(strconv.FormatInt(j.DatasetID, 10))
	}
	if _, exists := m.jobs[j.ID]; exists {
		return apperrors.NewValidationError("job %s already exists", j.ID)
	}
	if j.Status == "" {
		j.Status = JobStatusPending
	}
	if j.CreatedAt.IsZero() {
		j.CreatedAt = m.now().UTC()
	}
	m.jobs[j.ID] = copyJob(j)
	return nil
}

// GetJob returns the job with id.
func (m *Memory) GetJob(_ context.Context, id string) (*Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	j, ok := m.jobs[id]
	if !ok {
		return nil, jobNotFound(id)
	}
	return copyJob(j), nil
}

// ListJobs returns matching jobs, newest first.
func (m *Memory) ListJobs(_ context.Context, filter JobFilter) ([]*Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Job
	for _, j := range m.jobs {
		if filter.matches(j) {
			out = append(out, copyJob(j))
		}
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].CreatedAt.Equal(out[b].CreatedAt) {
			return out[a].ID > out[b].ID
		}
		return out[a].CreatedAt.After(out[b].CreatedAt)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// UpdateStatus applies u to the job and returns the result.
func (m *Memory) UpdateStatus(_ context.Context, jobID string, u StatusUpdate) (*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[jobID]
	if !ok {
		return nil, jobNotFound(jobID)
	}
	updated := copyJob(j)
	if err := updated.Apply(u, m.now().UTC()); err != nil {
		return nil, err
	}
	m.jobs[jobID] = updated
	return copyJob(updated), nil
}

// Close is a no-op
func (m *Memory) Close() error { return nil }

func copyJob(j *Job) *Job {
	cp := *j
	if j.Parameters != nil {
		cp.Parameters = make(map[string]any, len(j.Parameters))
		for k, v := range j.Parameters {
			cp.Parameters[k] = v
		}
	}
	return &cp
}
