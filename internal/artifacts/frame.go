package artifacts

import (
	"fmt"

	apperrors "neuropipe/internal/errors"
)

// Frame is a CSV file with a header row, held column-addressable.
type Frame struct {
	Header []string
	Rows   [][]string
}

// ReadFrame loads a headed CSV. Short rows are padded to the header width.
func ReadFrame(path string) (*Frame, error) {
	records, err := ReadCSV(path)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, apperrors.NewValidationError("%s has no header row", path)
	}

	f := &Frame{Header: records[0], Rows: records[1:]}
	width := len(f.Header)
	for i, row := range f.Rows {
		if len(row) < width {
			padded := make([]string, width)
			copy(padded, row)
			f.Rows[i] = padded
		}
	}
	return f, nil
}

// Len returns the number of data rows
func (f *Frame) Len() int { return len(f.Rows) }

// ColumnIndex returns the position of name in the header, or -1.
func (f *Frame) ColumnIndex(name string) int {
	for i, h := range f.Header {
		if h == name {
			return i
		}
	}
	return -1
}

// Column returns a copy of the named column.
func (f *Frame) Column(name string) ([]string, bool) {
	idx := f.ColumnIndex(name)
	if idx < 0 {
		return nil, false
	}
	out := make([]string, len(f.Rows))
	for i, row := range f.Rows {
		if idx < len(row) {
			out[i] = row[idx]
		}
	}
	return out, true
}

// SetColumn overwrites the named column in place, or appends it when absent.
// It reports whether an existing column was replaced.
func (f *Frame) SetColumn(name string, values []string) (bool, error) {
	if len(values) != len(f.Rows) {
		return false, apperrors.NewValidationError(
			"column %q has %d values but the frame has %d rows", name, len(values), len(f.Rows))
	}

	idx := f.ColumnIndex(name)
	overwritten := idx >= 0
	if !overwritten {
		f.Header = append(f.Header, name)
		idx = len(f.Header) - 1
	}
	for i := range f.Rows {
		for len(f.Rows[i]) <= idx {
			f.Rows[i] = append(f.Rows[i], "")
		}
		f.Rows[i][idx] = values[i]
	}
	return overwritten, nil
}

// WriteFrame writes f with its header.
func WriteFrame(path string, f *Frame) error {
	if len(f.Header) == 0 {
		return apperrors.NewValidationError("refusing to write %s without columns", path)
	}
	if err := WriteCSV(path, WriteOptions{Headers: f.Header, Records: f.Rows}); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}
