package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	apperrors "neuropipe/internal/errors"
	"neuropipe/internal/registry"
)

// JobHandler serves job state, cancellation and the event stream
type JobHandler struct {
	service  PipelineService
	errs     *apperrors.ErrorHandler
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// NewJobHandler creates a new job handler. allowedOrigins are origin
// prefixes accepted on the WebSocket upgrade in addition to same-host.
func NewJobHandler(service PipelineService, errs *apperrors.ErrorHandler, logger *slog.Logger, allowedOrigins []string) *JobHandler {
	if service == nil {
		panic("service cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	h := &JobHandler{
		service: service,
		errs:    errs,
		logger:  logger.With(slog.String("handler", "jobs")),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 2048,
		CheckOrigin:     originChecker(allowedOrigins, h.logger),
	}
	return h
}

// Routes returns a chi router for job endpoints. Events is mounted
// separately because it must not run under the request timeout.
func (h *JobHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/{id}", h.Get)
	r.Post("/{id}/cancel", h.Cancel)
	return r
}

// Get handles GET /api/jobs/{id}
func (h *JobHandler) Get(w http.ResponseWriter, r *http.Request) {
	job, err := h.service.GetJob(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(h.errs, w, r, err)
		return
	}
	h.errs.JSON(w, r, http.StatusOK, job)
}

// Cancel handles POST /api/jobs/{id}/cancel. Only pending jobs can be
// cancelled.
func (h *JobHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")
	if err := h.service.Cancel(r.Context(), jobID); err != nil {
		respondError(h.errs, w, r, err)
		return
	}
	h.logger.InfoContext(r.Context(), "job_cancel_requested", slog.String("job_id", jobID))
	h.errs.JSON(w, r, http.StatusOK, map[string]any{
		"job_id": jobID,
		"status": registry.JobStatusCancelled,
	})
}
