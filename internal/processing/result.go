package processing

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	apperrors "neuropipe/internal/errors"
)

// Result is the uniform outcome of a processor run.
type Result struct {
	Success    bool           `json:"success"`
	Data       any            `json:"data,omitempty"`
	Statistics map[string]any `json:"statistics,omitempty"`
	Message    string         `json:"message"`
	OutputPath string         `json:"output_path,omitempty"`
	ErrorType  string         `json:"error_type,omitempty"`
}

// Failure converts err into a failed result. The error text is passed
// through unchanged.
func Failure(err error) *Result {
	if err == nil {
		err = apperrors.NewInternalError("processor failed without an error", nil)
	}
	return &Result{
		Success:   false,
		Message:   err.Error(),
		ErrorType: string(apperrors.TypeOf(err)),
	}
}

// Execute runs p and always returns a result: errors and panics raised by
// the processor become failure results.
func Execute(ctx context.Context, p Processor, in Input, progress ProgressFunc) (res *Result) {
	defer func() {
		if r := recover(); r != nil {
			res = Failure(apperrors.NewInternalError(fmt.Sprintf("processor %s panicked: %v", p.Kind(), r), nil))
		}
	}()

	if err := ctx.Err(); err != nil {
		return Failure(apperrors.NewCancelledError(fmt.Sprintf("%s not started: %v", p.Kind().DisplayName(), err)))
	}
	res, err := p.Process(ctx, in, progress)
	if err != nil {
		return Failure(err)
	}
	if res == nil {
		return Failure(apperrors.NewInternalError(fmt.Sprintf("processor %s returned no result", p.Kind()), nil))
	}
	return res
}

// LabeledMatrix is a numeric matrix with one label per row and column.
// NaN marks a missing value.
type LabeledMatrix struct {
	Data      *mat.Dense
	RowLabels []string
	ColLabels []string
}

// Shape returns rows and columns
func (m *LabeledMatrix) Shape() (int, int) {
	return m.Data.Dims()
}

// Validate checks that the label counts match the matrix shape.
func (m *LabeledMatrix) Validate() error {
	rows, cols := m.Data.Dims()
	if len(m.RowLabels) != rows {
		return apperrors.NewValidationError(
			"row label count (%d) does not match matrix rows (%d)", len(m.RowLabels), rows)
	}
	if len(m.ColLabels) != cols {
		return apperrors.NewValidationError(
			"column label count (%d) does not match matrix columns (%d)", len(m.ColLabels), cols)
	}
	return nil
}

// Transpose swaps the axes together with their labels.
func (m *LabeledMatrix) Transpose() *LabeledMatrix {
	return &LabeledMatrix{
		Data:      mat.DenseCopyOf(m.Data.T()),
		RowLabels: m.ColLabels,
		ColLabels: m.RowLabels,
	}
}

// Corner returns the top-left rows×cols block, clipped to the matrix.
func (m *LabeledMatrix) Corner(rows, cols int) *LabeledMatrix {
	r, c := m.Data.Dims()
	rows, cols = min(rows, r), min(cols, c)
	return &LabeledMatrix{
		Data:      mat.DenseCopyOf(m.Data.Slice(0, rows, 0, cols)),
		RowLabels: m.RowLabels[:rows],
		ColLabels: m.ColLabels[:cols],
	}
}

// MarshalJSON writes the shape and labels. Values are left out; use
// MatrixValues for a serialisable copy of small matrices.
func (m *LabeledMatrix) MarshalJSON() ([]byte, error) {
	rows, cols := m.Data.Dims()
	return json.Marshal(struct {
		Shape     [2]int   `json:"shape"`
		RowLabels []string `json:"row_labels"`
		ColLabels []string `json:"column_labels"`
	}{[2]int{rows, cols}, m.RowLabels, m.ColLabels})
}

// MatrixValues is a JSON-safe copy of a labelled matrix; NaN becomes null.
type MatrixValues struct {
	Shape     [2]int       `json:"shape"`
	RowLabels []string     `json:"row_labels"`
	ColLabels []string     `json:"column_labels"`
	Values    [][]*float64 `json:"values"`
}

// NewMatrixValues copies m for serialisation.
func NewMatrixValues(m *LabeledMatrix) *MatrixValues {
	rows, cols := m.Data.Dims()
	values := make([][]*float64, rows)
	for i := 0; i < rows; i++ {
		row := make([]*float64, cols)
		for j, v := range m.Data.RawRowView(i) {
			if !math.IsNaN(v) && !math.IsInf(v, 0) {
				v := v
				row[j] = &v
			}
		}
		values[i] = row
	}
	return &MatrixValues{
		Shape:     [2]int{rows, cols},
		RowLabels: m.RowLabels,
		ColLabels: m.ColLabels,
		Values:    values,
	}
}

// jsonFloat keeps NaN and ±Inf out of statistics, which must stay encodable.
func jsonFloat(v float64) any {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}
