package processing

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	apperrors "neuropipe/internal/errors"
)

// Keys the coordinator injects into every parameter set.
const (
	ParamDatasetName = "dataset_name"
	ParamDatasetPath = "dataset_path"
	ParamFileFormat  = "file_format"
)

// Params is the loosely typed parameter map callers send.
type Params map[string]any

// Clone returns a shallow copy that can be extended without touching p.
func (p Params) Clone() Params {
	out := make(Params, len(p)+3)
	for k, v := range p {
		out[k] = v
	}
	return out
}

// String returns the value for key when it is a string.
func (p Params) String(key string) string {
	s, _ := p[key].(string)
	return s
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func paramValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// Decode fills dst from p and validates it. Fields missing from p keep the
// values dst already holds, so callers preload defaults.
func Decode(p Params, dst any) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return apperrors.NewValidationError("parameters are not serialisable: %v", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(dst); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return apperrors.NewValidationError("parameter %s must be a %s, got %s", typeErr.Field, typeErr.Type, typeErr.Value)
		}
		return apperrors.NewValidationError("invalid parameters: %v", err)
	}
	return validateStruct(dst)
}

func validateStruct(v any) error {
	err := paramValidator().Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return apperrors.NewValidationError("%s", fieldMessage(verrs[0]))
	}
	return apperrors.NewValidationError("invalid parameters: %v", err)
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", fe.Field(), fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "min":
		return fmt.Sprintf("%s must have at least %s entries", fe.Field(), fe.Param())
	case "excludesall":
		return fmt.Sprintf("%s must not contain any of %q", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed the %s check", fe.Field(), fe.Tag())
	}
}

// ParamSpec describes one parameter for callers building forms.
type ParamSpec struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Default     any    `json:"default,omitempty"`
	Options     []any  `json:"options,omitempty"`
	Required    bool   `json:"required"`
	Description string `json:"description"`
}

// Describe lists the parameters a processor kind accepts.
func Describe(k Kind) []ParamSpec {
	switch k {
	case KindExtraction, KindPreview:
		d := DefaultExtractionParams()
		return []ParamSpec{
			{Name: "matrix_name", Type: "string", Default: d.MatrixName, Required: true, Description: "stem for the output files"},
			{Name: "matrix_range", Type: "range", Default: d.MatrixRange, Description: "cells holding the matrix values"},
			{Name: "column_labels_range", Type: "range", Default: d.ColumnLabelsRange, Description: "cells holding the column labels"},
			{Name: "row_labels_range", Type: "range", Default: d.RowLabelsRange, Description: "cells holding the row labels"},
			{Name: "transpose_matrix", Type: "bool", Default: d.Transpose, Description: "swap rows and columns before saving"},
			{Name: "auto_detect", Type: "bool", Default: d.AutoDetect, Description: "locate the largest numeric block instead of using the ranges"},
		}
	case KindModification:
		return []ParamSpec{
			{Name: "matrix", Type: "string", Required: true, Description: "stored matrix to transform"},
			{Name: "operation", Type: "choice", Default: string(OpZScore), Options: []any{string(OpZScore), string(OpNormalize)}, Required: true, Description: "row-wise transformation"},
			{Name: "output_filename", Type: "string", Description: "output stem, defaults to <matrix>_zscore or <matrix>_norm01"},
			{Name: "fileformat", Type: "choice", Default: ".npy", Options: []any{".npy", ".csv"}, Description: "output format"},
		}
	case KindAnnotation:
		return []ParamSpec{
			{Name: "annotation_name", Type: "string", Required: true, Description: "name of the vector file and its column"},
			{Name: "vector_dimension", Type: "choice", Default: string(DimensionRows), Options: []any{string(DimensionRows), string(DimensionColumns)}, Required: true, Description: "matrix axis the vector follows"},
			{Name: "framerate", Type: "float", Required: true, Description: "samples per second"},
			{Name: "stimulation_periods", Type: "periods", Required: true, Description: "[[start, end], ...] in seconds"},
			{Name: "matrix", Type: "string", Description: "matrix supplying the vector length"},
			{Name: "vector_length", Type: "int", Description: "explicit vector length"},
		}
	case KindIndexing:
		return []ParamSpec{
			{Name: "indexing_type", Type: "choice", Default: "Row Indexing", Options: []any{"Row Indexing", "Column Indexing"}, Required: true, Description: "which shared index file to update"},
			{Name: "selected_file", Type: "string", Required: true, Description: "CSV holding the values to rank"},
			{Name: "vector_column", Type: "string", Required: true, Description: "column of selected_file to rank"},
			{Name: "column_name", Type: "string", Description: "index column to write, defaults to vector_column"},
		}
	}
	return nil
}
