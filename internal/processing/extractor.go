package processing

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"gonum.org/v1/gonum/mat"

	"neuropipe/internal/artifacts"
	apperrors "neuropipe/internal/errors"
	"neuropipe/internal/tabular"
)

// DefaultPreviewSize bounds the side of the square preview.
const DefaultPreviewSize = 10

// ExtractionParams configures matrix extraction and preview.
type ExtractionParams struct {
	MatrixName        string `json:"matrix_name" validate:"required,excludesall=/\\"`
	MatrixRange       string `json:"matrix_range"`
	ColumnLabelsRange string `json:"column_labels_range"`
	RowLabelsRange    string `json:"row_labels_range"`
	Transpose         bool   `json:"transpose_matrix"`
	AutoDetect        bool   `json:"auto_detect"`
}

// DefaultExtractionParams matches the lab's standard export layout.
func DefaultExtractionParams() ExtractionParams {
	return ExtractionParams{
		MatrixName:        "extracted_matrix",
		MatrixRange:       "B3:AJW1217",
		ColumnLabelsRange: "B1:AJW1",
		RowLabelsRange:    "A3:A1217",
	}
}

// Extraction is a matrix cut from a raw table.
type Extraction struct {
	Matrix       *LabeledMatrix
	MatrixRect   tabular.Rect
	RowRect      tabular.Rect
	ColRect      tabular.Rect
	NaNCount     int
	AutoDetected bool
	Transposed   bool
}

// Extractor turns raw tables into labelled matrices.
type Extractor struct {
	logger      *slog.Logger
	previewSize int
}

// NewExtractor creates an extractor. previewSize <= 0 uses DefaultPreviewSize.
func NewExtractor(logger *slog.Logger, previewSize int) *Extractor {
	if previewSize <= 0 {
		previewSize = DefaultPreviewSize
	}
	return &Extractor{logger: logger, previewSize: previewSize}
}

// Kind implements Processor
func (e *Extractor) Kind() Kind { return KindExtraction }

// Process extracts the matrix and writes its four artifacts.
func (e *Extractor) Process(ctx context.Context, in Input, progress ProgressFunc) (*Result, error) {
	params := DefaultExtractionParams()
	if err := Decode(in.Params, &params); err != nil {
		return nil, err
	}
	if in.Table == nil {
		return nil, apperrors.NewValidationError("matrix extraction needs a loaded table")
	}
	if in.Store == nil {
		return nil, apperrors.NewInternalError("matrix extraction has no artifact store", nil)
	}
	progress.report(10)

	ext, err := e.Extract(in.Table, params, progress)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, apperrors.NewCancelledError(fmt.Sprintf("matrix extraction aborted before saving: %v", err))
	}

	files, err := in.Store.WriteBundle(artifacts.Bundle{
		Name:      params.MatrixName,
		Data:      ext.Matrix.Data,
		RowLabels: ext.Matrix.RowLabels,
		ColLabels: ext.Matrix.ColLabels,
	})
	if err != nil {
		return nil, err
	}
	progress.report(80)

	rows, cols := ext.Matrix.Shape()
	stats := map[string]any{
		"matrix_shape":     [2]int{rows, cols},
		"matrix_name":      params.MatrixName,
		"transposed":       ext.Transposed,
		"auto_detected":    ext.AutoDetected,
		"nan_values_count": ext.NaNCount,
		"output_directory": in.Store.Dir(),
		"files_created":    baseNames(files),
	}
	if ext.AutoDetected {
		stats["detected_range"] = tabular.FormatRange(ext.MatrixRect)
	}

	e.logger.Info("matrix_extracted",
		slog.String("matrix_name", params.MatrixName),
		slog.Int("rows", rows),
		slog.Int("cols", cols),
		slog.Int("nan_values", ext.NaNCount),
		slog.Bool("auto_detected", ext.AutoDetected))
	progress.report(100)

	return &Result{
		Success:    true,
		Data:       ext.Matrix,
		Statistics: stats,
		OutputPath: in.Store.Dir(),
		Message:    fmt.Sprintf("Matrix extraction completed. Shape: (%d, %d), Files saved to: %s", rows, cols, in.Store.Dir()),
	}, nil
}

// Extract cuts the matrix and its labels out of t without writing anything.
func (e *Extractor) Extract(t *tabular.Table, params ExtractionParams, progress ProgressFunc) (*Extraction, error) {
	tableRows, tableCols := t.Dims()
	if tableRows == 0 || tableCols == 0 {
		return nil, apperrors.NewValidationError("table is empty")
	}

	ext := &Extraction{AutoDetected: params.AutoDetect}
	if params.AutoDetect {
		m := tabular.AutoDetectMatrix(t)
		labelCol := max(0, m.StartCol-1)
		labelRow := max(0, m.StartRow-1)
		ext.MatrixRect = m
		ext.RowRect = tabular.Rect{StartRow: m.StartRow, EndRow: m.EndRow, StartCol: labelCol, EndCol: labelCol + 1}
		ext.ColRect = tabular.Rect{StartRow: labelRow, EndRow: labelRow + 1, StartCol: m.StartCol, EndCol: m.EndCol}
	} else {
		var err error
		if ext.MatrixRect, err = parseNamedRange("matrix_range", params.MatrixRange); err != nil {
			return nil, err
		}
		if ext.ColRect, err = parseNamedRange("column_labels_range", params.ColumnLabelsRange); err != nil {
			return nil, err
		}
		if ext.RowRect, err = parseNamedRange("row_labels_range", params.RowLabelsRange); err != nil {
			return nil, err
		}
	}
	progress.report(20)

	for _, check := range []struct {
		name string
		rect tabular.Rect
	}{
		{"matrix", ext.MatrixRect},
		{"column labels", ext.ColRect},
		{"row labels", ext.RowRect},
	} {
		if !check.rect.FitsIn(tableRows, tableCols) {
			return nil, apperrors.NewValidationError(
				"%s range %s exceeds table dimensions (%d rows, %d columns)",
				check.name, check.rect, tableRows, tableCols)
		}
	}
	if ext.MatrixRect.Empty() {
		return nil, apperrors.NewValidationError("matrix range %s is empty", ext.MatrixRect)
	}

	rows, cols := ext.MatrixRect.Rows(), ext.MatrixRect.Cols()
	data := make([]float64, 0, rows*cols)
	for _, row := range t.Region(ext.MatrixRect) {
		values, nan, err := tabular.CoerceAll(row, tabular.Permissive)
		if err != nil {
			return nil, err
		}
		ext.NaNCount += nan
		data = append(data, values...)
	}
	progress.report(40)

	lm := &LabeledMatrix{
		Data:      mat.NewDense(rows, cols, data),
		RowLabels: extractLabels(t, ext.RowRect),
		ColLabels: extractLabels(t, ext.ColRect),
	}
	if err := lm.Validate(); err != nil {
		return nil, err
	}
	progress.report(60)

	if params.Transpose {
		lm = lm.Transpose()
		ext.Transposed = true
	}
	ext.Matrix = lm
	return ext, nil
}

// Preview runs the extraction without saving and returns a square top-left
// corner of the final matrix, at most previewSize on a side.
func (e *Extractor) Preview(t *tabular.Table, params ExtractionParams) (*Result, error) {
	ext, err := e.Extract(t, params, nil)
	if err != nil {
		return nil, err
	}
	rows, cols := ext.Matrix.Shape()
	n := min(e.previewSize, rows, cols)
	corner := ext.Matrix.Corner(n, n)
	pr, pc := corner.Shape()

	stats := map[string]any{
		"matrix_name":      params.MatrixName,
		"full_shape":       [2]int{rows, cols},
		"preview_shape":    [2]int{pr, pc},
		"transposed":       ext.Transposed,
		"auto_detected":    ext.AutoDetected,
		"nan_values_count": ext.NaNCount,
	}
	if ext.AutoDetected {
		stats["detected_range"] = tabular.FormatRange(ext.MatrixRect)
	}
	return &Result{
		Success:    true,
		Data:       NewMatrixValues(corner),
		Statistics: stats,
		Message:    fmt.Sprintf("Preview generated successfully for %s", params.MatrixName),
	}, nil
}

// Previewer adapts Extractor.Preview to the Processor interface.
type Previewer struct {
	*Extractor
}

// Kind implements Processor
func (p Previewer) Kind() Kind { return KindPreview }

// Process implements Processor
func (p Previewer) Process(_ context.Context, in Input, progress ProgressFunc) (*Result, error) {
	params := DefaultExtractionParams()
	if err := Decode(in.Params, &params); err != nil {
		return nil, err
	}
	if in.Table == nil {
		return nil, apperrors.NewValidationError("matrix preview needs a loaded table")
	}
	res, err := p.Preview(in.Table, params)
	if err != nil {
		return nil, err
	}
	progress.report(100)
	return res, nil
}

func parseNamedRange(name, value string) (tabular.Rect, error) {
	r, err := tabular.ParseRange(value)
	if err != nil {
		return tabular.Rect{}, fmt.Errorf("%s: %w", name, err)
	}
	return r, nil
}

// extractLabels reads a single-column rectangle top to bottom and anything
// else along its first row.
func extractLabels(t *tabular.Table, r tabular.Rect) []string {
	if r.Empty() {
		return nil
	}
	var labels []string
	if r.Cols() == 1 {
		labels = make([]string, 0, r.Rows())
		for i := r.StartRow; i < r.EndRow; i++ {
			labels = append(labels, t.At(i, r.StartCol).String())
		}
		return labels
	}
	labels = make([]string, 0, r.Cols())
	for j := r.StartCol; j < r.EndCol; j++ {
		labels = append(labels, t.At(r.StartRow, j).String())
	}
	return labels
}

func baseNames(paths []string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = filepath.Base(p)
	}
	return out
}
