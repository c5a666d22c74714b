package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	apperrors "neuropipe/internal/errors"
	"neuropipe/internal/processing"
)

const (
	defaultJobLimit = 50
	maxJobLimit     = 500
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func bodyValidator() *validator.Validate {
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

// RegisterDatasetRequest is the body of POST /api/datasets
type RegisterDatasetRequest struct {
	Name        string `json:"name" validate:"required,max=255"`
	FilePath    string `json:"file_path" validate:"required"`
	FileFormat  string `json:"file_format,omitempty"`
	Description string `json:"description,omitempty" validate:"max=1024"`
}

// Bind implements the render.Binder interface for request validation
func (req *RegisterDatasetRequest) Bind(*http.Request) error {
	req.Name = strings.TrimSpace(req.Name)
	req.FilePath = strings.TrimSpace(req.FilePath)
	return validateBody(req)
}

// SubmitJobRequest is the body of POST /api/datasets/{id}/jobs
type SubmitJobRequest struct {
	Processor  string            `json:"processor" validate:"required"`
	JobName    string            `json:"job_name,omitempty" validate:"max=255"`
	Parameters processing.Params `json:"parameters"`
}

// Bind implements the render.Binder interface for request validation
func (req *SubmitJobRequest) Bind(*http.Request) error {
	req.Processor = strings.TrimSpace(req.Processor)
	return validateBody(req)
}

// PreviewRequest is the body of POST /api/datasets/{id}/preview
type PreviewRequest struct {
	Parameters processing.Params `json:"parameters"`
}

// Bind implements the render.Binder interface
func (req *PreviewRequest) Bind(*http.Request) error {
	return nil
}

// bind decodes a JSON body regardless of Content-Type and validates it
func bind(r *http.Request, v render.Binder) error {
	if err := render.DecodeJSON(r.Body, v); err != nil {
		if errors.Is(err, io.EOF) {
			return apperrors.NewValidationError("request body is required")
		}
		return apperrors.NewValidationError("invalid request body: %v", err)
	}
	return v.Bind(r)
}

func validateBody(v any) error {
	err := bodyValidator().Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apperrors.NewValidationError("%v", err)
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, describeFieldError(fe))
	}
	return apperrors.NewValidationError("%s", strings.Join(msgs, "; "))
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
}

// int64Param parses a positive numeric URL parameter
func int64Param(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewValidationError("invalid %s %q", name, raw)
	}
	return id, nil
}

// limitParam reads ?limit=, defaulting and capping it
func limitParam(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultJobLimit, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, apperrors.NewValidationError("invalid limit %q", raw)
	}
	if limit > maxJobLimit {
		limit = maxJobLimit
	}
	return limit, nil
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
