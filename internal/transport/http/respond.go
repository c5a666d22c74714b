package http

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	apperrors "neuropipe/internal/errors"
	"neuropipe/internal/operations"
)

// respondError renders err as a problem document. Queue back-pressure is
// reported as 503 so clients can retry.
func respondError(h *apperrors.ErrorHandler, w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, operations.ErrQueueFull) || errors.Is(err, operations.ErrQueueStopped) {
		w.Header().Set("Retry-After", "1")
		problem := apperrors.NewProblemDetails(
			http.StatusServiceUnavailable,
			apperrors.TypeUnavailable,
			"Service Unavailable",
			err.Error(),
			r.URL.Path,
		).WithExtension("trace_id", middleware.GetReqID(r.Context()))
		render.Render(w, r, problem)
		return
	}
	h.HandleError(w, r, err)
}
