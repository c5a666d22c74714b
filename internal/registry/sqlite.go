package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	apperrors "neuropipe/internal/errors"
)

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const (
	datasetColumns = `id, name, file_path, file_format, file_size, description, created_at`
	jobColumns     = `id, dataset_id, job_name, processor, parameters, status, progress, message,
		error_type, output_path, created_at, started_at, completed_at`

	insertDatasetQuery = `
		INSERT INTO datasets (name, file_path, file_format, file_size, description, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`
	selectDatasetByIDQuery   = `SELECT ` + datasetColumns + ` FROM datasets WHERE id = ?`
	selectDatasetByNameQuery = `SELECT ` + datasetColumns + ` FROM datasets WHERE name = ?`
	listDatasetsQuery        = `SELECT ` + datasetColumns + ` FROM datasets ORDER BY id`

	insertJobQuery = `
		INSERT INTO processing_jobs (id, dataset_id, job_name, processor, parameters, status, progress,
			message, error_type, output_path, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	selectJobQuery = `SELECT ` + jobColumns + ` FROM processing_jobs WHERE id = ?`
	updateJobQuery = `
		UPDATE processing_jobs
		SET status = ?, progress = ?, message = ?, error_type = ?, output_path = ?,
			started_at = ?, completed_at = ?
		WHERE id = ?`
)

// SQLite is a Repository backed by a SQLite database file.
type SQLite struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

var _ Repository = (*SQLite)(nil)

// Open opens (creating if needed) the database at path, enables WAL mode,
// foreign keys and a busy timeout, and applies pending migrations.
func Open(path string, logger *slog.Logger) (*SQLite, error) {
	logger = logger.With(slog.String("component", "registry"))
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, apperrors.NewStorageError("failed to create registry directory", err).WithContext("path", dir)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to open registry database", err)
	}
	// SQLite has a single writer; serialise at the pool.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, apperrors.NewStorageError(fmt.Sprintf("failed to apply %q", pragma), err)
		}
	}

	if err := Migrate(db, logger); err != nil {
		db.Close()
		return nil, apperrors.NewStorageError("failed to migrate registry database", err)
	}

	logger.Info("registry_opened",
		slog.String("path", path),
		slog.Bool("wal_mode", true),
		slog.Bool("foreign_keys", true))
	return NewSQLite(db, logger), nil
}

// NewSQLite wraps an already prepared database handle.
func NewSQLite(db *sql.DB, logger *slog.Logger) *SQLite {
	return &SQLite{db: db, logger: logger, now: time.Now}
}

// Close closes the database
func (s *SQLite) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDataset(row rowScanner) (*Dataset, error) {
	var (
		d       Dataset
		created string
	)
	if err := row.Scan(&d.ID, &d.Name, &d.FilePath, &d.FileFormat, &d.FileSize, &d.Description, &created); err != nil {
		return nil, err
	}
	t, err := time.Parse(timeLayout, created)
	if err != nil {
		return nil, fmt.Errorf("parse created_at %q: %w", created, err)
	}
	d.CreatedAt = t
	return &d, nil
}

// Resolve returns the dataset with id.
func (s *SQLite) Resolve(ctx context.Context, id int64) (*Dataset, error) {
	d, err := scanDataset(s.db.QueryRowContext(ctx, selectDatasetByIDQuery, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, datasetNotFound(strconv.FormatInt(id, 10))
	}
	if err != nil {
		return nil, apperrors.NewStorageError(fmt.Sprintf("failed to load dataset %d", id), err)
	}
	return d, nil
}

// ResolveByName returns the dataset called name.
func (s *SQLite) ResolveByName(ctx context.Context, name string) (*Dataset, error) {
	d, err := scanDataset(s.db.QueryRowContext(ctx, selectDatasetByNameQuery, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, datasetNotFound(fmt.Sprintf("%q", name))
	}
	if err != nil {
		return nil, apperrors.NewStorageError(fmt.Sprintf("failed to load dataset %q", name), err)
	}
	return d, nil
}

// Create inserts d and fills in its ID and CreatedAt.
func (s *SQLite) Create(ctx context.Context, d *Dataset) error {
	if err := validateDataset(d); err != nil {
		return err
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = s.now().UTC()
	}

	res, err := s.db.ExecContext(ctx, insertDatasetQuery,
		d.Name, d.FilePath, d.FileFormat, d.FileSize, d.Description, d.CreatedAt.UTC().Format(timeLayout))
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.NewValidationError("dataset %q already exists", d.Name)
		}
		return apperrors.NewStorageError(fmt.Sprintf("failed to insert dataset %q", d.Name), err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return apperrors.NewStorageError("failed to read dataset id", err)
	}
	d.ID = id

	s.logger.Info("dataset_registered",
		slog.Int64("dataset_id", id),
		slog.String("name", d.Name),
		slog.String("file_path", d.FilePath))
	return nil
}

// List returns every dataset ordered by ID.
func (s *SQLite) List(ctx context.Context) ([]*Dataset, error) {
	rows, err := s.db.QueryContext(ctx, listDatasetsQuery)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to list datasets", err)
	}
	defer rows.Close()

	var out []*Dataset
	for rows.Next() {
		d, err := scanDataset(rows)
		if err != nil {
			return nil, apperrors.NewStorageError("failed to read dataset row", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageError("failed to list datasets", err)
	}
	return out, nil
}

// CreateJob inserts j. Its dataset must exist.
func (s *SQLite) CreateJob(ctx context.Context, j *Job) error {
	if err := validateJob(j); err != nil {
		return err
	}
	if j.Status == "" {
		j.Status = JobStatusPending
	}
	if j.CreatedAt.IsZero() {
		j.CreatedAt = s.now().UTC()
	}
	params, err := json.Marshal(j.Parameters)
	if err != nil {
		return apperrors.NewValidationError("job parameters are not serialisable: %v", err)
	}

	_, err = s.db.ExecContext(ctx, insertJobQuery,
		j.ID, j.DatasetID, j.Name, j.Processor, string(params), string(j.Status), j.Progress,
		j.Message, j.ErrorType, j.OutputPath, j.CreatedAt.UTC().Format(timeLayout))
	if err != nil {
		if isForeignKeyViolation(err) {
			return datasetNotFound(strconv.FormatInt(j.DatasetID, 10))
		}
		if isUniqueViolation(err) {
			return apperrors.NewValidationError("job %s already exists", j.ID)
		}
		return apperrors.NewStorageError(fmt.Sprintf("failed to insert job %s", j.ID), err)
	}
	return nil
}

func scanJob(row rowScanner) (*Job, error) {
	var (
		j                  Job
		params, status     string
		created            string
		started, completed sql.NullString
	)
	err := row.Scan(&j.ID, &j.DatasetID, &j.Name, &j.Processor, &params, &status, &j.Progress,
		&j.Message, &j.ErrorType, &j.OutputPath, &created, &started, &completed)
	if err != nil {
		return nil, err
	}
	j.Status = JobStatus(status)
	if params != "" && params != "null" {
		if err := json.Unmarshal([]byte(params), &j.Parameters); err != nil {
			return nil, fmt.Errorf("decode parameters of job %s: %w", j.ID, err)
		}
	}
	if j.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
		return nil, fmt.Errorf("parse created_at %q: %w", created, err)
	}
	if j.StartedAt, err = parseNullTime(started); err != nil {
		return nil, err
	}
	if j.CompletedAt, err = parseNullTime(completed); err != nil {
		return nil, err
	}
	return &j, nil
}

func parseNullTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := time.Parse(timeLayout, s.String)
	if err != nil {
		return nil, fmt.Errorf("parse time %q: %w", s.String, err)
	}
	return &t, nil
}

func formatNullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(timeLayout), Valid: true}
}

// GetJob returns the job with id.
func (s *SQLite) GetJob(ctx context.Context, id string) (*Job, error) {
	j, err := scanJob(s.db.QueryRowContext(ctx, selectJobQuery, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, jobNotFound(id)
	}
	if err != nil {
		return nil, apperrors.NewStorageError(fmt.Sprintf("failed to load job %s", id), err)
	}
	return j, nil
}

// ListJobs returns matching jobs, newest first.
func (s *SQLite) ListJobs(ctx context.Context, filter JobFilter) ([]*Job, error) {
	var (
		where []string
		args  []any
	)
	if filter.DatasetID != 0 {
		where = append(where, "dataset_id = ?")
		args = append(args, filter.DatasetID)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}

	query := `SELECT ` + jobColumns + ` FROM processing_jobs`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to list jobs", err)
	}
	defer rows.Close()

	var out []*Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, apperrors.NewStorageError("failed to read job row", err)
		}
		out = append(out, j)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageError("failed to list jobs", err)
	}
	return out, nil
}

// UpdateStatus applies u inside a transaction and returns the updated job.
func (s *SQLite) UpdateStatus(ctx context.Context, jobID string, u StatusUpdate) (*Job, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to begin job update", err)
	}
	defer tx.Rollback()

	j, err := scanJob(tx.QueryRowContext(ctx, selectJobQuery, jobID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, jobNotFound(jobID)
	}
	if err != nil {
		return nil, apperrors.NewStorageError(fmt.Sprintf("failed to load job %s", jobID), err)
	}
	if err := j.Apply(u, s.now().UTC()); err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, updateJobQuery,
		string(j.Status), j.Progress, j.Message, j.ErrorType, j.OutputPath,
		formatNullTime(j.StartedAt), formatNullTime(j.CompletedAt), j.ID)
	if err != nil {
		return nil, apperrors.NewStorageError(fmt.Sprintf("failed to update job %s", jobID), err)
	}
	if err := tx.Commit(); err != nil {
		return nil, apperrors.NewStorageError(fmt.Sprintf("failed to commit job %s", jobID), err)
	}
	return j, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) &&
		(sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique || sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey)
}

func isForeignKeyViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey
}
