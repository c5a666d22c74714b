package registry

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "neuropipe/internal/errors"
	"neuropipe/internal/shared/testutil"
)

func newMockRepo(t *testing.T) (*SQLite, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger, _ := testutil.NewTestLogger(t)
	return NewSQLite(db, logger), mock
}

var errDiskIO = errors.New("disk I/O error")

func TestSQLite_StorageFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("resolve query error", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectQuery(regexp.QuoteMeta(selectDatasetByIDQuery)).WithArgs(int64(3)).WillReturnError(errDiskIO)

		_, err := repo.Resolve(ctx, 3)
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrTypeStorage, apperrors.TypeOf(err))
		assert.ErrorIs(t, err, errDiskIO)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("resolve no rows", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectQuery(regexp.QuoteMeta(selectDatasetByIDQuery)).WithArgs(int64(3)).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		_, err := repo.Resolve(ctx, 3)
		assert.Equal(t, apperrors.ErrTypeNotFound, apperrors.TypeOf(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("corrupt timestamp", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		rows := sqlmock.NewRows([]string{"id", "name", "file_path", "file_format", "file_size", "description", "created_at"}).
			AddRow(1, "ds", "/ds.csv", "csv", 10, "", "yesterday")
		mock.ExpectQuery(regexp.QuoteMeta(listDatasetsQuery)).WillReturnRows(rows)

		_, err := repo.List(ctx)
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrTypeStorage, apperrors.TypeOf(err))
		assert.Contains(t, err.Error(), "yesterday")
	})

	t.Run("insert dataset error", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectExec(regexp.QuoteMeta(insertDatasetQuery)).WillReturnError(errDiskIO)

		err := repo.Create(ctx, &Dataset{Name: "ds", FilePath: "/ds.csv"})
		assert.Equal(t, apperrors.ErrTypeStorage, apperrors.TypeOf(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("create reads last insert id", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectExec(regexp.QuoteMeta(insertDatasetQuery)).
			WithArgs("ds", "/ds.csv", "csv", int64(0), "", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(42, 1))

		d := &Dataset{Name: "ds", FilePath: "/ds.csv", FileFormat: "csv"}
		require.NoError(t, repo.Create(ctx, d))
		assert.Equal(t, int64(42), d.ID)
	})

	t.Run("update rolls back on exec failure", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		rows := sqlmock.NewRows([]string{
			"id", "dataset_id", "job_name", "processor", "parameters", "status", "progress", "message",
			"error_type", "output_path", "created_at", "started_at", "completed_at",
		}).AddRow("j1", 1, "", "indexing", "{}", "pending", 0.0, "", "", "", "2026-01-01T00:00:00.000000000Z", nil, nil)

		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(selectJobQuery)).WithArgs("j1").WillReturnRows(rows)
		mock.ExpectExec(regexp.QuoteMeta(updateJobQuery)).WillReturnError(errDiskIO)
		mock.ExpectRollback()

		_, err := repo.UpdateStatus(ctx, "j1", StatusUpdate{Status: JobStatusRunning})
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrTypeStorage, apperrors.TypeOf(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("update rejects invalid transition before writing", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		rows := sqlmock.NewRows([]string{
			"id", "dataset_id", "job_name", "processor", "parameters", "status", "progress", "message",
			"error_type", "output_path", "created_at", "started_at", "completed_at",
		}).AddRow("j1", 1, "", "indexing", "{}", "completed", 100.0, "", "", "", "2026-01-01T00:00:00.000000000Z", nil, nil)

		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(selectJobQuery)).WithArgs("j1").WillReturnRows(rows)
		mock.ExpectRollback()

		_, err := repo.UpdateStatus(ctx, "j1", StatusUpdate{Status: JobStatusRunning})
		assert.Equal(t, apperrors.ErrTypeValidation, apperrors.TypeOf(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("begin failure", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectBegin().WillReturnError(errDiskIO)

		_, err := repo.UpdateStatus(ctx, "j1", StatusUpdate{Status: JobStatusRunning})
		assert.Equal(t, apperrors.ErrTypeStorage, apperrors.TypeOf(err))
	})

	t.Run("list jobs builds filter", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectQuery(`FROM processing_jobs WHERE dataset_id = \? AND status = \? ORDER BY created_at DESC, id DESC LIMIT \?`).
			WithArgs(int64(7), "failed", int64(5)).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		jobs, err := repo.ListJobs(ctx, JobFilter{DatasetID: 7, Status: JobStatusFailed, Limit: 5})
		require.NoError(t, err)
		assert.Empty(t, jobs)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
