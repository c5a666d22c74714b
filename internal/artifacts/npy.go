package artifacts

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sbinet/npyio/npy"
	"gonum.org/v1/gonum/mat"

	apperrors "neuropipe/internal/errors"
)

// WriteNPY stores m as a 2-D float64, C-order NumPy array.
func WriteNPY(path string, m *mat.Dense) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return apperrors.NewStorageError("failed to create directory", err).WithContext("path", path)
	}

	f, err := os.Create(path)
	if err != nil {
		return apperrors.NewStorageError(fmt.Sprintf("failed to create %s", path), err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if err := npy.Write(w, m); err != nil {
		return apperrors.NewStorageError(fmt.Sprintf("failed to encode %s", path), err)
	}
	if err := w.Flush(); err != nil {
		return apperrors.NewStorageError(fmt.Sprintf("failed to write %s", path), err)
	}
	return f.Close()
}

// ReadNPY loads a 1-D or 2-D numeric array as a matrix. A 1-D array becomes a
// single row. Integer and float32 arrays are widened to float64.
func ReadNPY(path string) (*mat.Dense, error) {
	m, _, err := readNPY(path)
	return m, err
}

// readNPY is ReadNPY that also reports the array's dimension count.
func readNPY(path string) (*mat.Dense, int, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, apperrors.NewNotFoundError(fmt.Sprintf("matrix file %s", path))
		}
		return nil, 0, apperrors.NewStorageError(fmt.Sprintf("failed to open %s", path), err)
	}
	defer f.Close()

	r, err := npy.NewReader(bufio.NewReader(f))
	if err != nil {
		return nil, 0, apperrors.NewParsingError(fmt.Sprintf("%s is not a NumPy file", filepath.Base(path)), err)
	}

	shape := r.Header.Descr.Shape
	var rows, cols int
	switch len(shape) {
	case 1:
		rows, cols = 1, shape[0]
	case 2:
		rows, cols = shape[0], shape[1]
	default:
		return nil, len(shape), apperrors.NewValidationError("matrix %s must be 2-D, got %d dimensions", filepath.Base(path), len(shape))
	}
	if rows == 0 || cols == 0 {
		return nil, len(shape), apperrors.NewValidationError("matrix %s is empty (shape %v)", filepath.Base(path), shape)
	}

	data, err := readFloat64s(r, rows*cols)
	if err != nil {
		return nil, len(shape), apperrors.NewParsingError(fmt.Sprintf("failed to decode %s", filepath.Base(path)), err)
	}

	if r.Header.Descr.Fortran {
		// column-major on disk
		return mat.DenseCopyOf(mat.NewDense(cols, rows, data).T()), len(shape), nil
	}
	return mat.NewDense(rows, cols, data), len(shape), nil
}

func readFloat64s(r *npy.Reader, n int) ([]float64, error) {
	switch dt := r.Header.Descr.Type; dt {
	case "<f8", "f8", "float64":
		out := make([]float64, n)
		err := r.Read(&out)
		return out, err
	case "<f4", "f4", "float32":
		buf := make([]float32, n)
		if err := r.Read(&buf); err != nil {
			return nil, err
		}
		return widen(buf), nil
	case "<i8", "i8", "int64":
		buf := make([]int64, n)
		if err := r.Read(&buf); err != nil {
			return nil, err
		}
		return widen(buf), nil
	case "<i4", "i4", "int32":
		buf := make([]int32, n)
		if err := r.Read(&buf); err != nil {
			return nil, err
		}
		return widen(buf), nil
	default:
		return nil, fmt.Errorf("unsupported dtype %q", dt)
	}
}

func widen[T float32 | int64 | int32](in []T) []float64 {
	out := make([]float64, len(in))
	for i, v := range in {
		out[i] = float64(v)
	}
	return out
}
