package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	apperrors "neuropipe/internal/errors"
	"neuropipe/internal/operations"
	"neuropipe/internal/registry"
)

// DatasetHandler serves dataset registration, matrices, previews and job
// submission.
type DatasetHandler struct {
	service PipelineService
	errs    *apperrors.ErrorHandler
	logger  *slog.Logger
}

// NewDatasetHandler creates a new dataset handler
func NewDatasetHandler(service PipelineService, errs *apperrors.ErrorHandler, logger *slog.Logger) *DatasetHandler {
	if service == nil {
		panic("service cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DatasetHandler{
		service: service,
		errs:    errs,
		logger:  logger.With(slog.String("handler", "datasets")),
	}
}

// Routes returns a chi router for dataset endpoints
func (h *DatasetHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Post("/", h.Register)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Get("/matrices", h.Matrices)
		r.Post("/preview", h.Preview)
		r.Post("/jobs", h.SubmitJob)
		r.Get("/jobs", h.ListJobs)
	})
	return r
}

// List handles GET /api/datasets
func (h *DatasetHandler) List(w http.ResponseWriter, r *http.Request) {
	datasets, err := h.service.Datasets(r.Context())
	if err != nil {
		respondError(h.errs, w, r, err)
		return
	}
	if datasets == nil {
		datasets = []*registry.Dataset{}
	}
	h.errs.JSON(w, r, http.StatusOK, map[string]any{
		"datasets": datasets,
		"count":    len(datasets),
	})
}

// Register handles POST /api/datasets
func (h *DatasetHandler) Register(w http.ResponseWriter, r *http.Request) {
	req := &RegisterDatasetRequest{}
	if err := bind(r, req); err != nil {
		respondError(h.errs, w, r, err)
		return
	}

	ds := &registry.Dataset{
		Name:        req.Name,
		FilePath:    req.FilePath,
		FileFormat:  req.FileFormat,
		Description: req.Description,
	}
	if err := h.service.RegisterDataset(r.Context(), ds); err != nil {
		respondError(h.errs, w, r, err)
		return
	}

	w.Header().Set("Location", "/api/datasets/"+formatID(ds.ID))
	h.errs.JSON(w, r, http.StatusCreated, ds)
}

// Get handles GET /api/datasets/{id}
func (h *DatasetHandler) Get(w http.ResponseWriter, r *http.Request) {
	ds, ok := h.dataset(w, r)
	if !ok {
		return
	}
	h.errs.JSON(w, r, http.StatusOK, ds)
}

// Matrices handles GET /api/datasets/{id}/matrices
func (h *DatasetHandler) Matrices(w http.ResponseWriter, r *http.Request) {
	id, err := int64Param(r, "id")
	if err != nil {
		respondError(h.errs, w, r, err)
		return
	}
	matrices, err := h.service.ListMatrices(r.Context(), id)
	if err != nil {
		respondError(h.errs, w, r, err)
		return
	}
	h.errs.JSON(w, r, http.StatusOK, map[string]any{
		"dataset_id": id,
		"matrices":   matrices,
	})
}

// Preview handles POST /api/datasets/{id}/preview. The envelope is returned
// with 200 whether or not the preview succeeded.
func (h *DatasetHandler) Preview(w http.ResponseWriter, r *http.Request) {
	ds, ok := h.dataset(w, r)
	if !ok {
		return
	}
	req := &PreviewRequest{}
	if err := bind(r, req); err != nil {
		respondError(h.errs, w, r, err)
		return
	}

	res := h.service.Preview(r.Context(), ds.ID, req.Parameters)
	h.errs.JSON(w, r, http.StatusOK, res)
}

// SubmitJob handles POST /api/datasets/{id}/jobs
func (h *DatasetHandler) SubmitJob(w http.ResponseWriter, r *http.Request) {
	id, err := int64Param(r, "id")
	if err != nil {
		respondError(h.errs, w, r, err)
		return
	}
	req := &SubmitJobRequest{}
	if err := bind(r, req); err != nil {
		respondError(h.errs, w, r, err)
		return
	}

	task, err := h.service.Submit(r.Context(), operations.SubmitRequest{
		DatasetID:  id,
		Processor:  req.Processor,
		JobName:    req.JobName,
		Parameters: req.Parameters,
	})
	if err != nil {
		h.logger.WarnContext(r.Context(), "job_submit_failed",
			slog.Int64("dataset_id", id),
			slog.String("processor", req.Processor),
			slog.String("error", err.Error()))
		respondError(h.errs, w, r, err)
		return
	}

	w.Header().Set("Location", "/api/jobs/"+task.ID)
	h.errs.JSON(w, r, http.StatusAccepted, map[string]any{
		"job_id":     task.ID,
		"status":     registry.JobStatusPending,
		"events_url": "/api/jobs/" + task.ID + "/events",
	})
}

// ListJobs handles GET /api/datasets/{id}/jobs
func (h *DatasetHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	id, err := int64Param(r, "id")
	if err != nil {
		respondError(h.errs, w, r, err)
		return
	}
	limit, err := limitParam(r)
	if err != nil {
		respondError(h.errs, w, r, err)
		return
	}
	jobs, err := h.service.ListJobs(r.Context(), id, limit)
	if err != nil {
		respondError(h.errs, w, r, err)
		return
	}
	if jobs == nil {
		jobs = []*registry.Job{}
	}
	h.errs.JSON(w, r, http.StatusOK, map[string]any{
		"dataset_id": id,
		"jobs":       jobs,
		"count":      len(jobs),
	})
}

func (h *DatasetHandler) dataset(w http.ResponseWriter, r *http.Request) (*registry.Dataset, bool) {
	id, err := int64Param(r, "id")
	if err != nil {
		respondError(h.errs, w, r, err)
		return nil, false
	}
	ds, err := h.service.Dataset(r.Context(), id)
	if err != nil {
		respondError(h.errs, w, r, err)
		return nil, false
	}
	return ds, true
}
