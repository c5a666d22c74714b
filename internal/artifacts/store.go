package artifacts

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gonum.org/v1/gonum/mat"

	"neuropipe/internal/config"
	apperrors "neuropipe/internal/errors"
	"neuropipe/internal/tabular"
)

// Artifact file naming
const (
	WithLabelsSuffix   = "_with_labels.csv"
	MatrixSuffix       = "_matrix.npy"
	RowLabelsSuffix    = "_row_labels_and_indices.csv"
	ColumnLabelsSuffix = "_column_labels_and_indices.csv"

	RowLabelsColumn    = "row_labels"
	ColumnLabelsColumn = "column_labels"

	RowIndexFile    = "Raster_row_labels_and_indices.csv"
	ColumnIndexFile = "Raster_column_labels_and_indices.csv"

	FormatNPY = ".npy"
	FormatCSV = ".csv"
)

// Store gives access to one dataset's artifacts.
type Store struct {
	layout config.DatasetLayout
	logger *slog.Logger
}

// NewStore creates a store over layout
func NewStore(layout config.DatasetLayout, logger *slog.Logger) *Store {
	return &Store{
		layout: layout,
		logger: logger.With(slog.String("component", "artifact_store")),
	}
}

// Layout returns the dataset directory tree
func (s *Store) Layout() config.DatasetLayout { return s.layout }

// Dir is the matrices directory all artifacts live in.
func (s *Store) Dir() string { return s.layout.Matrices }

// Ensure creates the dataset directory tree.
func (s *Store) Ensure() error { return s.layout.Ensure() }

// Path joins name onto the matrices directory.
func (s *Store) Path(name string) string { return filepath.Join(s.layout.Matrices, name) }

// Bundle is an extracted matrix with its labels.
type Bundle struct {
	Name      string
	Data      *mat.Dense
	RowLabels []string
	ColLabels []string
}

// WriteBundle persists b as four files and returns their paths in write
// order. The first failing write aborts the rest.
func (s *Store) WriteBundle(b Bundle) ([]string, error) {
	rows, cols := b.Data.Dims()
	if len(b.RowLabels) != rows || len(b.ColLabels) != cols {
		return nil, apperrors.NewValidationError(
			"labels (%d rows, %d columns) do not match matrix shape (%d, %d)",
			len(b.RowLabels), len(b.ColLabels), rows, cols)
	}
	if err := s.Ensure(); err != nil {
		return nil, err
	}

	withLabels := s.Path(b.Name + WithLabelsSuffix)
	header := append([]string{""}, b.ColLabels...)
	records := make([][]string, rows)
	for i := 0; i < rows; i++ {
		rec := make([]string, 0, cols+1)
		rec = append(rec, b.RowLabels[i])
		for _, v := range b.Data.RawRowView(i) {
			rec = append(rec, formatValue(v))
		}
		records[i] = rec
	}

	steps := []struct {
		path  string
		write func(string) error
	}{
		{withLabels, func(p string) error { return WriteCSV(p, WriteOptions{Headers: header, Records: records}) }},
		{s.Path(b.Name + MatrixSuffix), func(p string) error { return WriteNPY(p, b.Data) }},
		{s.Path(b.Name + RowLabelsSuffix), func(p string) error { return writeSingleColumn(p, RowLabelsColumn, b.RowLabels) }},
		{s.Path(b.Name + ColumnLabelsSuffix), func(p string) error { return writeSingleColumn(p, ColumnLabelsColumn, b.ColLabels) }},
	}

	created := make([]string, 0, len(steps))
	for _, step := range steps {
		if err := step.write(step.path); err != nil {
			s.logger.Error("bundle_write_failed",
				slog.String("path", step.path),
				slog.Int("files_written", len(created)),
				slog.String("error", err.Error()))
			return created, err
		}
		created = append(created, step.path)
	}

	s.logger.Info("bundle_written",
		slog.String("name", b.Name),
		slog.Int("rows", rows),
		slog.Int("cols", cols),
		slog.String("directory", s.Dir()))
	return created, nil
}

func writeSingleColumn(path, header string, values []string) error {
	records := make([][]string, len(values))
	for i, v := range values {
		records[i] = []string{v}
	}
	return WriteCSV(path, WriteOptions{Headers: []string{header}, Records: records})
}

// ResolveMatrix finds the file behind a matrix reference. name may carry
// its extension; otherwise <name>.npy, <name>.csv and <name>_matrix.npy are
// tried in that order.
func (s *Store) ResolveMatrix(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", apperrors.NewValidationError("matrix name is required")
	}

	var candidates []string
	switch strings.ToLower(filepath.Ext(name)) {
	case FormatNPY, FormatCSV:
		candidates = []string{name}
	default:
		candidates = []string{name + FormatNPY, name + FormatCSV, name + MatrixSuffix}
	}

	for _, c := range candidates {
		p := c
		if !filepath.IsAbs(p) {
			p = s.Path(c)
		}
		if config.FileExists(p) {
			return p, nil
		}
	}
	return "", apperrors.NewNotFoundError(fmt.Sprintf("matrix file %s", s.Path(candidates[0])))
}

// ReadMatrix loads a 2-D matrix from .npy, or from a headerless numeric CSV
// with unparsable cells read as NaN. The resolved path is returned too.
func (s *Store) ReadMatrix(name string) (*mat.Dense, string, error) {
	path, err := s.ResolveMatrix(name)
	if err != nil {
		return nil, "", err
	}
	if strings.EqualFold(filepath.Ext(path), FormatNPY) {
		m, ndim, err := readNPY(path)
		if err != nil {
			return nil, path, err
		}
		if ndim != 2 {
			return nil, path, apperrors.NewValidationError(
				"matrix %s must be 2-D, got %d dimension(s)", filepath.Base(path), ndim)
		}
		return m, path, nil
	}
	m, err := readCSVMatrix(path)
	return m, path, err
}

func readCSVMatrix(path string) (*mat.Dense, error) {
	records, err := ReadCSV(path)
	if err != nil {
		return nil, err
	}
	rows, cols := len(records), 0
	for _, rec := range records {
		if len(rec) > cols {
			cols = len(rec)
		}
	}
	if rows == 0 || cols == 0 {
		return nil, apperrors.NewValidationError("matrix %s is empty", filepath.Base(path))
	}

	data := make([]float64, 0, rows*cols)
	for _, rec := range records {
		padded := make([]string, cols)
		copy(padded, rec)
		values, _, _ := tabular.CoerceStrings(padded, tabular.Permissive)
		data = append(data, values...)
	}
	return mat.NewDense(rows, cols, data), nil
}

// WriteMatrix stores m as <stem><format>; format is .npy or .csv (headerless).
func (s *Store) WriteMatrix(stem, format string, m *mat.Dense) (string, error) {
	if err := s.Ensure(); err != nil {
		return "", err
	}
	switch strings.ToLower(format) {
	case "", FormatNPY:
		path := s.Path(stem + FormatNPY)
		return path, WriteNPY(path, m)
	case FormatCSV:
		path := s.Path(stem + FormatCSV)
		rows, _ := m.Dims()
		records := make([][]string, rows)
		for i := 0; i < rows; i++ {
			row := m.RawRowView(i)
			rec := make([]string, len(row))
			for j, v := range row {
				rec[j] = formatValue(v)
			}
			records[i] = rec
		}
		return path, WriteCSV(path, WriteOptions{Records: records})
	default:
		return "", apperrors.NewValidationError("unsupported file format %q (expected .npy or .csv)", format)
	}
}

// MatrixInfo describes a stored matrix a caller can pick.
type MatrixInfo struct {
	Name    string    `json:"name"`
	File    string    `json:"file"`
	Format  string    `json:"format"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}

// ListMatrices lists .npy files and headerless numeric CSVs, sorted by name.
// Label, index and annotation files are skipped. A missing directory lists
// as empty.
func (s *Store) ListMatrices() ([]MatrixInfo, error) {
	entries, err := os.ReadDir(s.Dir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, apperrors.NewStorageError(fmt.Sprintf("failed to read directory %s", s.Dir()), err)
	}

	var out []MatrixInfo
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		ext := strings.ToLower(filepath.Ext(name))
		switch ext {
		case FormatNPY:
		case FormatCSV:
			if isLabelFile(name) || !s.isHeaderlessNumeric(name) {
				continue
			}
		default:
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}
		out = append(out, MatrixInfo{
			Name:    strings.TrimSuffix(name, filepath.Ext(name)),
			File:    s.Path(name),
			Format:  ext,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// FirstBundleMatrix returns the lexicographically first *_matrix.npy.
func (s *Store) FirstBundleMatrix() (string, bool) {
	matches, err := filepath.Glob(filepath.Join(s.Dir(), "*"+MatrixSuffix))
	if err != nil || len(matches) == 0 {
		return "", false
	}
	sort.Strings(matches)
	return matches[0], true
}

func isLabelFile(name string) bool {
	for _, suffix := range []string{WithLabelsSuffix, RowLabelsSuffix, ColumnLabelsSuffix} {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return name == RowIndexFile || name == ColumnIndexFile
}

func (s *Store) isHeaderlessNumeric(name string) bool {
	f, err := os.Open(s.Path(name))
	if err != nil {
		return false
	}
	defer f.Close()

	first, err := csv.NewReader(bufio.NewReader(f)).Read()
	if err != nil {
		return false
	}
	for _, field := range first {
		if _, ok := tabular.ParseNumber(field); !ok {
			return false
		}
	}
	return true
}

// WriteVector writes an annotation vector as a single headed column.
func (s *Store) WriteVector(name string, vector []int) (string, error) {
	if err := s.Ensure(); err != nil {
		return "", err
	}
	values := make([]string, len(vector))
	for i, v := range vector {
		values[i] = formatInt(v)
	}
	path := s.Path(name + FormatCSV)
	return path, writeSingleColumn(path, name, values)
}

// IndexPath returns the shared Raster index file for rows or columns.
func (s *Store) IndexPath(rows bool) string {
	if rows {
		return s.Path(RowIndexFile)
	}
	return s.Path(ColumnIndexFile)
}
