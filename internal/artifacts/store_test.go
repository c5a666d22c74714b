package artifacts

import (
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/sbinet/npyio/npy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"neuropipe/internal/config"
	apperrors "neuropipe/internal/errors"
	"neuropipe/internal/shared/testutil"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	return NewStore(config.NewDatasetLayout(filepath.Join(t.TempDir(), "ds")), logger)
}

func TestStore_WriteBundle(t *testing.T) {
	store := newTestStore(t)
	m := mat.NewDense(2, 3, []float64{1, 2.5, math.NaN(), 4, 5, 6})

	files, err := store.WriteBundle(Bundle{
		Name:      "extracted_matrix",
		Data:      m,
		RowLabels: []string{"F0", "F1"},
		ColLabels: []string{"N0", "N1", "N2"},
	})
	require.NoError(t, err)
	require.Len(t, files, 4)

	assert.Equal(t, store.Path("extracted_matrix_with_labels.csv"), files[0])
	assert.Equal(t, store.Path("extracted_matrix_matrix.npy"), files[1])
	assert.Equal(t, store.Path("extracted_matrix_row_labels_and_indices.csv"), files[2])
	assert.Equal(t, store.Path("extracted_matrix_column_labels_and_indices.csv"), files[3])

	withLabels, err := ReadCSV(files[0])
	require.NoError(t, err)
	assert.Equal(t, []string{"", "N0", "N1", "N2"}, withLabels[0])
	assert.Equal(t, []string{"F0", "1", "2.5", ""}, withLabels[1])

	back, err := ReadNPY(files[1])
	require.NoError(t, err)
	r, c := back.Dims()
	assert.Equal(t, 2, r)
	assert.Equal(t, 3, c)
	assert.Equal(t, 2.5, back.At(0, 1))
	assert.True(t, math.IsNaN(back.At(0, 2)))
	assert.Equal(t, 6.0, back.At(1, 2))

	rowLabels, err := ReadFrame(files[2])
	require.NoError(t, err)
	col, ok := rowLabels.Column(RowLabelsColumn)
	require.True(t, ok)
	assert.Equal(t, []string{"F0", "F1"}, col)

	colLabels, err := ReadFrame(files[3])
	require.NoError(t, err)
	col, ok = colLabels.Column(ColumnLabelsColumn)
	require.True(t, ok)
	assert.Equal(t, []string{"N0", "N1", "N2"}, col)
}

func TestStore_WriteBundle_LabelMismatch(t *testing.T) {
	store := newTestStore(t)
	_, err := store.WriteBundle(Bundle{
		Name:      "m",
		Data:      mat.NewDense(2, 2, nil),
		RowLabels: []string{"a"},
		ColLabels: []string{"x", "y"},
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrTypeValidation, apperrors.TypeOf(err))
	assert.NoDirExists(t, store.Dir())
}

func TestStore_ReadMatrix_Resolution(t *testing.T) {
	store := newTestStore(t)
	m := mat.NewDense(2, 2, []float64{1, 2, 3, 4})

	_, err := store.WriteMatrix("plain", FormatNPY, m)
	require.NoError(t, err)
	_, err = store.WriteMatrix("table", FormatCSV, m)
	require.NoError(t, err)
	_, err = store.WriteBundle(Bundle{Name: "bundle", Data: m, RowLabels: []string{"a", "b"}, ColLabels: []string{"x", "y"}})
	require.NoError(t, err)

	tests := []struct {
		ref  string
		want string
	}{
		{"plain", "plain.npy"},
		{"plain.npy", "plain.npy"},
		{"table", "table.csv"},
		{"bundle", "bundle_matrix.npy"},
		{"bundle_matrix", "bundle_matrix.npy"},
	}
	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			got, path, err := store.ReadMatrix(tt.ref)
			require.NoError(t, err)
			assert.Equal(t, store.Path(tt.want), path)
			assert.True(t, mat.Equal(m, got))
		})
	}

	_, _, err = store.ReadMatrix("missing")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrTypeNotFound, apperrors.TypeOf(err))
	assert.Contains(t, err.Error(), filepath.Join(store.Dir(), "missing.npy"))
}

func TestStore_ReadMatrix_CSVPermissive(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, os.MkdirAll(store.Dir(), 0755))
	require.NoError(t, os.WriteFile(store.Path("raw.csv"), []byte("1,2,3\n4,x\n"), 0644))

	m, _, err := store.ReadMatrix("raw")
	require.NoError(t, err)
	assert.Equal(t, 3.0, m.At(0, 2))
	assert.True(t, math.IsNaN(m.At(1, 1)))
	assert.True(t, math.IsNaN(m.At(1, 2)))
}

func TestStore_ReadMatrix_RejectsVector(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, os.MkdirAll(store.Dir(), 0755))
	f, err := os.Create(store.Path("vec.npy"))
	require.NoError(t, err)
	require.NoError(t, npy.Write(f, []float64{1, 2, 3}))
	require.NoError(t, f.Close())

	_, _, err = store.ReadMatrix("vec")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrTypeValidation))
	assert.Contains(t, err.Error(), "must be 2-D")
}

func TestStore_WriteMatrix_BadFormat(t *testing.T) {
	store := newTestStore(t)
	_, err := store.WriteMatrix("m", ".parquet", mat.NewDense(1, 1, nil))
	assert.True(t, apperrors.Is(err, apperrors.ErrTypeValidation))
}

func TestStore_ListMatrices(t *testing.T) {
	store := newTestStore(t)

	list, err := store.ListMatrices()
	require.NoError(t, err)
	assert.Empty(t, list)

	m := mat.NewDense(2, 2, []float64{1, 2, 3, 4})
	_, err = store.WriteBundle(Bundle{Name: "b", Data: m, RowLabels: []string{"r0", "r1"}, ColLabels: []string{"c0", "c1"}})
	require.NoError(t, err)
	_, err = store.WriteMatrix("b_matrix_zscore", FormatCSV, m)
	require.NoError(t, err)
	_, err = store.WriteVector("stim", []int{0, 1, 1})
	require.NoError(t, err)

	list, err = store.ListMatrices()
	require.NoError(t, err)

	var names []string
	for _, info := range list {
		names = append(names, info.Name)
	}
	assert.Equal(t, []string{"b_matrix", "b_matrix_zscore"}, names)

	first, ok := store.FirstBundleMatrix()
	require.True(t, ok)
	assert.Equal(t, store.Path("b_matrix.npy"), first)
}

func TestStore_WriteVector(t *testing.T) {
	store := newTestStore(t)
	path, err := store.WriteVector("stimulus", []int{0, 1, 1, 0})
	require.NoError(t, err)
	assert.Equal(t, store.Path("stimulus.csv"), path)

	records, err := ReadCSV(path)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"stimulus"}, {"0"}, {"1"}, {"1"}, {"0"}}, records)
}

func TestNewStore_ComponentLogger(t *testing.T) {
	logger, handler := testutil.NewTestLogger(t)
	store := NewStore(config.NewDatasetLayout(t.TempDir()), logger)

	_, err := store.WriteBundle(Bundle{Name: "x", Data: mat.NewDense(1, 1, []float64{1}), RowLabels: []string{"r"}, ColLabels: []string{"c"}})
	require.NoError(t, err)
	testutil.AssertLogContains(t, handler, slog.LevelInfo, "bundle_written")
	assert.True(t, handler.ContainsAttr("component", "artifact_store"))
}

func TestReadCSV_ExcelBOM(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labels.csv")
	require.NoError(t, os.WriteFile(path, append([]byte{0xEF, 0xBB, 0xBF}, "name\nC000\n"...), 0644))

	records, err := ReadCSV(path)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"name"}, {"C000"}}, records)

	require.NoError(t, WriteCSV(path, WriteOptions{Headers: []string{"name"}, Records: [][]string{{"C001"}}}))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "name\nC001\n", string(data))
}
