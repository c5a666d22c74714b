package processing

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"path/filepath"
	"strings"

	apperrors "neuropipe/internal/errors"
)

// Dimension selects which matrix axis an annotation vector follows.
type Dimension string

const (
	DimensionRows    Dimension = "rows"
	DimensionColumns Dimension = "columns"
)

// ParseDimension accepts "rows", "columns" and labels of the form
// "rows = 1215".
func ParseDimension(s string) (Dimension, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	if i := strings.IndexAny(key, "=("); i >= 0 {
		key = strings.TrimSpace(key[:i])
	}
	switch key {
	case "rows", "row":
		return DimensionRows, nil
	case "columns", "column", "cols":
		return DimensionColumns, nil
	}
	return "", apperrors.NewValidationError("vector_dimension must be %q or %q, got %q", DimensionRows, DimensionColumns, s)
}

// Period is a stimulation interval in seconds.
type Period struct {
	Start float64
	End   float64
}

// Valid reports whether 0 <= Start < End and End is finite.
func (p Period) Valid() bool {
	return p.Start >= 0 && p.Start < p.End && !math.IsInf(p.End, 1)
}

// AnnotationParams configures the annotator.
type AnnotationParams struct {
	AnnotationName     string      `json:"annotation_name" validate:"required,excludesall=/\\"`
	Framerate          float64     `json:"framerate" validate:"gt=0"`
	VectorDimension    string      `json:"vector_dimension" validate:"required"`
	StimulationPeriods [][]float64 `json:"stimulation_periods"`
	Matrix             string      `json:"matrix"`
	VectorLength       int         `json:"vector_length" validate:"gte=0"`
}

// Periods validates and converts the raw period pairs. The first invalid
// period fails the whole set.
func (p AnnotationParams) Periods() ([]Period, error) {
	if len(p.StimulationPeriods) == 0 {
		return nil, apperrors.NewValidationError("at least one stimulation period is required")
	}
	periods := make([]Period, 0, len(p.StimulationPeriods))
	for i, pair := range p.StimulationPeriods {
		if len(pair) != 2 {
			return nil, apperrors.NewValidationError("stimulation period %d must be [start, end], got %d values", i+1, len(pair))
		}
		period := Period{Start: pair[0], End: pair[1]}
		if !period.Valid() {
			return nil, apperrors.NewValidationError(
				"stimulation period %d is invalid: need 0 <= start < end < +Inf, got start=%g end=%g", i+1, period.Start, period.End)
		}
		periods = append(periods, period)
	}
	return periods, nil
}

// BuildAnnotation returns a 0/1 vector of the given length with every
// sample inside a period set to 1. Period bounds are converted to samples
// with round-half-to-even and clamped to the vector. Invalid periods are
// skipped. The second value counts the periods that were applied.
func BuildAnnotation(length int, framerate float64, periods []Period) ([]int, int) {
	vector := make([]int, length)
	if length == 0 || framerate <= 0 {
		return vector, 0
	}
	applied := 0
	for _, p := range periods {
		if !p.Valid() {
			continue
		}
		s := sampleIndex(p.Start, framerate, length)
		e := sampleIndex(p.End, framerate, length)
		for i := s; i <= e; i++ {
			vector[i] = 1
		}
		applied++
	}
	return vector, applied
}

// sampleIndex rounds seconds*framerate and clamps it to [0, length-1]
// before the int conversion.
func sampleIndex(seconds, framerate float64, length int) int {
	x := math.RoundToEven(seconds * framerate)
	return int(math.Max(0, math.Min(x, float64(length-1))))
}

func periodPairs(periods []Period) [][2]float64 {
	pairs := make([][2]float64, len(periods))
	for i, p := range periods {
		pairs[i] = [2]float64{p.Start, p.End}
	}
	return pairs
}

// Annotator builds binary event vectors from stimulation periods.
type Annotator struct {
	logger *slog.Logger
}

// NewAnnotator creates an annotator
func NewAnnotator(logger *slog.Logger) *Annotator {
	return &Annotator{logger: logger}
}

// Kind implements Processor
func (a *Annotator) Kind() Kind { return KindAnnotation }

// Process validates the parameters, resolves the vector length, builds the
// vector and saves it as a single-column CSV.
func (a *Annotator) Process(_ context.Context, in Input, progress ProgressFunc) (*Result, error) {
	var params AnnotationParams
	if err := Decode(in.Params, &params); err != nil {
		return nil, err
	}
	dim, err := ParseDimension(params.VectorDimension)
	if err != nil {
		return nil, err
	}
	periods, err := params.Periods()
	if err != nil {
		return nil, err
	}
	if in.Store == nil {
		return nil, apperrors.NewInternalError("annotation has no artifact store", nil)
	}
	progress.report(10)

	length, source, err := a.resolveLength(in, params, dim)
	if err != nil {
		return nil, err
	}
	progress.report(30)

	vector, applied := BuildAnnotation(length, params.Framerate, periods)
	on := 0
	for _, v := range vector {
		on += v
	}
	progress.report(60)

	name := strings.TrimSpace(params.AnnotationName)
	path, err := in.Store.WriteVector(name, vector)
	if err != nil {
		return nil, err
	}
	progress.report(90)

	a.logger.Info("annotation_created",
		slog.String("annotation_name", name),
		slog.Int("vector_length", length),
		slog.Int("on_samples", on),
		slog.String("source_matrix", source))
	progress.report(100)

	percentage := 0.0
	if length > 0 {
		percentage = float64(on) / float64(length) * 100
	}
	return &Result{
		Success: true,
		Data:    vector,
		Statistics: map[string]any{
			"vector_length":    length,
			"on_samples":       on,
			"on_percentage":    percentage,
			"periods_used":     periodPairs(periods),
			"period_count":     len(periods),
			"valid_periods":    applied,
			"framerate":        params.Framerate,
			"source_matrix":    source,
			"vector_dimension": string(dim),
		},
		OutputPath: path,
		Message:    fmt.Sprintf("Annotation %s created: %d of %d samples active", name, on, length),
	}, nil
}

// resolveLength picks the vector length: an explicit vector_length, else the
// named matrix, else the first extracted matrix in the dataset.
func (a *Annotator) resolveLength(in Input, params AnnotationParams, dim Dimension) (int, string, error) {
	if params.VectorLength > 0 {
		return params.VectorLength, "", nil
	}

	ref := strings.TrimSpace(params.Matrix)
	if ref == "" {
		first, ok := in.Store.FirstBundleMatrix()
		if !ok {
			return 0, "", apperrors.NewNotFoundError(fmt.Sprintf(
				"no matrix to size the annotation vector in %s (set vector_length or matrix)", in.Store.Dir()))
		}
		ref = filepath.Base(first)
	}

	m, path, err := in.Store.ReadMatrix(ref)
	if err != nil {
		return 0, "", err
	}
	rows, cols := m.Dims()
	if dim == DimensionColumns {
		return cols, filepath.Base(path), nil
	}
	return rows, filepath.Base(path), nil
}
