package processing

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"path/filepath"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"neuropipe/internal/artifacts"
	apperrors "neuropipe/internal/errors"
)

// Operation is a row-wise matrix transformation.
type Operation string

const (
	OpZScore    Operation = "Z-scoring"
	OpNormalize Operation = "[0,1] normalization"
)

// ParseOperation accepts the display names and the short forms "zscore"
// and "norm01".
func ParseOperation(s string) (Operation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "z-scoring", "zscore", "z-score", "zscoring":
		return OpZScore, nil
	case "[0,1] normalization", "[0,1] normalisation", "norm01", "normalize", "normalization":
		return OpNormalize, nil
	}
	return "", apperrors.NewValidationError("unknown operation %q (expected %q or %q)", s, OpZScore, OpNormalize)
}

func (o Operation) suffix() string {
	if o == OpNormalize {
		return "_norm01"
	}
	return "_zscore"
}

// ModificationParams configures the matrix modifier.
type ModificationParams struct {
	Matrix         string `json:"matrix" validate:"required"`
	Operation      string `json:"operation" validate:"required"`
	OutputFilename string `json:"output_filename"`
	FileFormat     string `json:"fileformat"`
}

// Summary describes the finite values of a matrix.
type Summary struct {
	Mean float64
	Std  float64
	Min  float64
	Max  float64
}

func (s Summary) toMap() map[string]any {
	return map[string]any{
		"mean": jsonFloat(s.Mean),
		"std":  jsonFloat(s.Std),
		"min":  jsonFloat(s.Min),
		"max":  jsonFloat(s.Max),
	}
}

// Summarize computes mean, population std, min and max over every non-NaN
// cell. An all-NaN matrix summarises to NaN.
func Summarize(m mat.Matrix) Summary {
	rows, cols := m.Dims()
	values := make([]float64, 0, rows*cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if v := m.At(i, j); !math.IsNaN(v) {
				values = append(values, v)
			}
		}
	}
	return summarizeValues(values)
}

func summarizeValues(values []float64) Summary {
	if len(values) == 0 {
		nan := math.NaN()
		return Summary{Mean: nan, Std: nan, Min: nan, Max: nan}
	}
	mean, std := stat.PopMeanStdDev(values, nil)
	return Summary{Mean: mean, Std: std, Min: floats.Min(values), Max: floats.Max(values)}
}

func finite(row []float64) []float64 {
	out := make([]float64, 0, len(row))
	for _, v := range row {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

// ZScoreRows standardises every row to mean 0 and population std 1. A row
// with zero spread is divided by 1 instead. NaN cells are skipped when
// computing the row statistics and stay NaN.
func ZScoreRows(m *mat.Dense) *mat.Dense {
	return applyRows(m, func(row []float64) (float64, float64) {
		s := summarizeValues(finite(row))
		scale := s.Std
		if scale == 0 || math.IsNaN(scale) {
			scale = 1
		}
		return s.Mean, scale
	})
}

// NormalizeRows rescales every row onto [0, 1]. A row whose values are all
// equal is divided by 1 instead.
func NormalizeRows(m *mat.Dense) *mat.Dense {
	return applyRows(m, func(row []float64) (float64, float64) {
		s := summarizeValues(finite(row))
		scale := s.Max - s.Min
		if scale == 0 || math.IsNaN(scale) {
			scale = 1
		}
		return s.Min, scale
	})
}

// applyRows maps each row x to (x - offset) / scale.
func applyRows(m *mat.Dense, params func(row []float64) (offset, scale float64)) *mat.Dense {
	rows, cols := m.Dims()
	out := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		src := m.RawRowView(i)
		offset, scale := params(src)
		dst := out.RawRowView(i)
		for j, v := range src {
			dst[j] = (v - offset) / scale
		}
	}
	return out
}

// Modifier applies row-wise transformations to stored matrices.
type Modifier struct {
	logger *slog.Logger
}

// NewModifier creates a modifier
func NewModifier(logger *slog.Logger) *Modifier {
	return &Modifier{logger: logger}
}

// Kind implements Processor
func (m *Modifier) Kind() Kind { return KindModification }

// Process reads the matrix, transforms it and writes the result next to it.
func (m *Modifier) Process(_ context.Context, in Input, progress ProgressFunc) (*Result, error) {
	var params ModificationParams
	if err := Decode(in.Params, &params); err != nil {
		return nil, err
	}
	op, err := ParseOperation(params.Operation)
	if err != nil {
		return nil, err
	}
	format, err := normalizeFileFormat(params.FileFormat)
	if err != nil {
		return nil, err
	}
	if in.Store == nil {
		return nil, apperrors.NewInternalError("matrix modification has no artifact store", nil)
	}

	src, srcPath, err := in.Store.ReadMatrix(params.Matrix)
	if err != nil {
		return nil, err
	}
	progress.report(20)

	before := Summarize(src)
	var out *mat.Dense
	if op == OpNormalize {
		out = NormalizeRows(src)
	} else {
		out = ZScoreRows(src)
	}
	after := Summarize(out)
	progress.report(60)

	stem := strings.TrimSpace(params.OutputFilename)
	if stem == "" {
		stem = matrixStem(params.Matrix) + op.suffix()
	} else {
		stem = strings.TrimSuffix(filepath.Base(stem), filepath.Ext(stem))
	}
	outPath, err := in.Store.WriteMatrix(stem, format, out)
	if err != nil {
		return nil, err
	}
	progress.report(90)

	rows, cols := out.Dims()
	m.logger.Info("matrix_modified",
		slog.String("operation", string(op)),
		slog.String("source", srcPath),
		slog.String("output", outPath),
		slog.Int("rows", rows),
		slog.Int("cols", cols))
	progress.report(100)

	return &Result{
		Success: true,
		Data: map[string]any{
			"output_path": outPath,
			"shape":       [2]int{rows, cols},
		},
		Statistics: map[string]any{
			"operation":     string(op),
			"source_matrix": filepath.Base(srcPath),
			"shape":         [2]int{rows, cols},
			"before":        before.toMap(),
			"after":         after.toMap(),
			"output_path":   outPath,
		},
		OutputPath: outPath,
		Message:    fmt.Sprintf("%s applied to %s, saved to %s", op, filepath.Base(srcPath), outPath),
	}, nil
}

// matrixStem drops a .npy or .csv extension from a matrix reference.
func matrixStem(name string) string {
	name = strings.TrimSpace(name)
	switch strings.ToLower(filepath.Ext(name)) {
	case artifacts.FormatNPY, artifacts.FormatCSV:
		return strings.TrimSuffix(name, filepath.Ext(name))
	}
	return name
}

func normalizeFileFormat(f string) (string, error) {
	f = strings.ToLower(strings.TrimSpace(f))
	if f != "" && !strings.HasPrefix(f, ".") {
		f = "." + f
	}
	switch f {
	case "", artifacts.FormatNPY:
		return artifacts.FormatNPY, nil
	case artifacts.FormatCSV:
		return artifacts.FormatCSV, nil
	}
	return "", apperrors.NewValidationError("unsupported file format %q (expected .npy or .csv)", f)
}
