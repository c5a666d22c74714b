package artifacts

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sbinet/npyio/npy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	apperrors "neuropipe/internal/errors"
)

func TestNPY_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "m.npy")
	m := mat.NewDense(3, 2, []float64{1, -2, 3.25, 4, 5, 6e-7})

	require.NoError(t, WriteNPY(path, m))
	back, err := ReadNPY(path)
	require.NoError(t, err)
	assert.True(t, mat.Equal(m, back))
}

func TestReadNPY_OneDimensional(t *testing.T) {
	path := filepath.Join(t.TempDir(), "v.npy")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, npy.Write(f, []float64{1, 2, 3}))
	require.NoError(t, f.Close())

	m, err := ReadNPY(path)
	require.NoError(t, err)
	r, c := m.Dims()
	assert.Equal(t, 1, r)
	assert.Equal(t, 3, c)
}

func TestReadNPY_IntWidened(t *testing.T) {
	path := filepath.Join(t.TempDir(), "i.npy")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, npy.Write(f, []int64{4, 5}))
	require.NoError(t, f.Close())

	m, err := ReadNPY(path)
	require.NoError(t, err)
	assert.Equal(t, 5.0, m.At(0, 1))
}

func TestReadNPY_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := ReadNPY(filepath.Join(dir, "missing.npy"))
	assert.True(t, apperrors.Is(err, apperrors.ErrTypeNotFound))

	junk := filepath.Join(dir, "junk.npy")
	require.NoError(t, os.WriteFile(junk, []byte("not numpy"), 0644))
	_, err = ReadNPY(junk)
	assert.True(t, apperrors.Is(err, apperrors.ErrTypeParsing))
}
