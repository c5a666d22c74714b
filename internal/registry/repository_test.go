package registry

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "neuropipe/internal/errors"
	"neuropipe/internal/shared/testutil"
)

// repositories returns a fresh instance of every implementation.
func repositories(t *testing.T) map[string]Repository {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	sqlite, err := Open(filepath.Join(t.TempDir(), "nested", "registry.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close() })

	return map[string]Repository{
		"memory": NewMemory(),
		"sqlite": sqlite,
	}
}

func TestRepository_Datasets(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			d := &Dataset{Name: "mouse7", FilePath: "/data/mouse7.csv", FileFormat: "csv", FileSize: 1024}
			require.NoError(t, repo.Create(ctx, d))
			assert.NotZero(t, d.ID)
			assert.False(t, d.CreatedAt.IsZero())

			second := &Dataset{Name: "mouse8", FilePath: "/data/mouse8.xlsx", FileFormat: "xlsx"}
			require.NoError(t, repo.Create(ctx, second))

			got, err := repo.Resolve(ctx, d.ID)
			require.NoError(t, err)
			assert.Equal(t, "mouse7", got.Name)
			assert.Equal(t, int64(1024), got.FileSize)
			assert.True(t, d.CreatedAt.Equal(got.CreatedAt))

			byName, err := repo.ResolveByName(ctx, "mouse8")
			require.NoError(t, err)
			assert.Equal(t, second.ID, byName.ID)

			list, err := repo.List(ctx)
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, "mouse7", list[0].Name)

			err = repo.Create(ctx, &Dataset{Name: "mouse7", FilePath: "/other.csv"})
			assert.True(t, apperrors.Is(err, apperrors.ErrTypeValidation))
			assert.Contains(t, err.Error(), "already exists")

			_, err = repo.Resolve(ctx, 999)
			assert.True(t, apperrors.Is(err, apperrors.ErrTypeNotFound))
			assert.Equal(t, "dataset 999 not found", err.Error())

			_, err = repo.ResolveByName(ctx, "nope")
			assert.True(t, apperrors.Is(err, apperrors.ErrTypeNotFound))

			assert.True(t, apperrors.Is(repo.Create(ctx, &Dataset{FilePath: "x"}), apperrors.ErrTypeValidation))
		})
	}
}

func TestRepository_Jobs(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			d := &Dataset{Name: "ds", FilePath: "/ds.csv"}
			require.NoError(t, repo.Create(ctx, d))

			base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
			for i, id := range []string{"job-a", "job-b", "job-c"} {
				require.NoError(t, repo.CreateJob(ctx, &Job{
					ID:         id,
					DatasetID:  d.ID,
					Name:       "run " + id,
					Processor:  "extraction",
					Parameters: map[string]any{"matrix_name": "raster", "transpose_matrix": true},
					CreatedAt:  base.Add(time.Duration(i) * time.Minute),
				}))
			}

			job, err := repo.GetJob(ctx, "job-a")
			require.NoError(t, err)
			assert.Equal(t, JobStatusPending, job.Status)
			assert.Equal(t, "raster", job.Parameters["matrix_name"])
			assert.Equal(t, true, job.Parameters["transpose_matrix"])
			assert.Nil(t, job.StartedAt)

			job, err = repo.UpdateStatus(ctx, "job-a", StatusUpdate{Status: JobStatusRunning, Progress: Progress(10), Message: "running"})
			require.NoError(t, err)
			assert.Equal(t, JobStatusRunning, job.Status)
			assert.NotNil(t, job.StartedAt)

			_, err = repo.UpdateStatus(ctx, "job-a", StatusUpdate{Progress: Progress(60)})
			require.NoError(t, err)

			job, err = repo.UpdateStatus(ctx, "job-a", StatusUpdate{
				Status: JobStatusCompleted, Progress: Progress(100), Message: "done", OutputPath: "/out",
			})
			require.NoError(t, err)
			assert.NotNil(t, job.CompletedAt)

			stored, err := repo.GetJob(ctx, "job-a")
			require.NoError(t, err)
			assert.Equal(t, JobStatusCompleted, stored.Status)
			assert.Equal(t, 100.0, stored.Progress)
			assert.Equal(t, "/out", stored.OutputPath)
			assert.NotNil(t, stored.StartedAt)

			_, err = repo.UpdateStatus(ctx, "job-a", StatusUpdate{Status: JobStatusRunning})
			assert.True(t, apperrors.Is(err, apperrors.ErrTypeValidation))

			_, err = repo.UpdateStatus(ctx, "job-b", StatusUpdate{Status: JobStatusCancelled})
			require.NoError(t, err)

			all, err := repo.ListJobs(ctx, JobFilter{DatasetID: d.ID})
			require.NoError(t, err)
			require.Len(t, all, 3)
			assert.Equal(t, "job-c", all[0].ID)
			assert.Equal(t, "job-a", all[2].ID)

			cancelled, err := repo.ListJobs(ctx, JobFilter{Status: JobStatusCancelled})
			require.NoError(t, err)
			require.Len(t, cancelled, 1)
			assert.Equal(t, "job-b", cancelled[0].ID)

			limited, err := repo.ListJobs(ctx, JobFilter{Limit: 1})
			require.NoError(t, err)
			assert.Len(t, limited, 1)

			_, err = repo.GetJob(ctx, "missing")
			assert.True(t, apperrors.Is(err, apperrors.ErrTypeNotFound))
			_, err = repo.UpdateStatus(ctx, "missing", StatusUpdate{Status: JobStatusRunning})
			assert.True(t, apperrors.Is(err, apperrors.ErrTypeNotFound))

			err = repo.CreateJob(ctx, &Job{ID: "orphan", DatasetID: 404, Processor: "indexing"})
			assert.True(t, apperrors.Is(err, apperrors.ErrTypeNotFound))

			err = repo.CreateJob(ctx, &Job{ID: "job-a", DatasetID: d.ID, Processor: "indexing"})
			assert.True(t, apperrors.Is(err, apperrors.ErrTypeValidation))
		})
	}
}

func TestMemory_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewMemory()
	d := &Dataset{Name: "ds", FilePath: "/ds.csv"}
	require.NoError(t, repo.Create(ctx, d))
	require.NoError(t, repo.CreateJob(ctx, &Job{ID: "j", DatasetID: d.ID, Processor: "indexing", Parameters: map[string]any{"a": 1}}))

	job, err := repo.GetJob(ctx, "j")
	require.NoError(t, err)
	job.Status = JobStatusFailed
	job.Parameters["a"] = 2

	again, err := repo.GetJob(ctx, "j")
	require.NoError(t, err)
	assert.Equal(t, JobStatusPending, again.Status)
	assert.Equal(t, 1, again.Parameters["a"])
}

func TestOpen_Idempotent(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	path := filepath.Join(t.TempDir(), "registry.db")

	first, err := Open(path, logger)
	require.NoError(t, err)
	require.NoError(t, first.Create(context.Background(), &Dataset{Name: "kept", FilePath: "/k.csv"}))
	require.NoError(t, first.Close())

	second, err := Open(path, logger)
	require.NoError(t, err)
	defer second.Close()
	d, err := second.ResolveByName(context.Background(), "kept")
	require.NoError(t, err)
	assert.Equal(t, "/k.csv", d.FilePath)
}
