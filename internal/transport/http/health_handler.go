package http

import (
	"net/http"
	"time"

	"github.com/go-chi/render"
)

// HealthHandler reports liveness and the processor catalogue
type HealthHandler struct {
	service PipelineService
	started time.Time
	version string
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(service PipelineService, version string) *HealthHandler {
	return &HealthHandler{service: service, started: time.Now(), version: version}
}

// Health handles GET /healthz
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]any{
		"status":  "ok",
		"version": h.version,
		"uptime":  time.Since(h.started).Round(time.Second).String(),
		"queue":   h.service.Stats(),
	})
}

// Processors handles GET /api/processors
func (h *HealthHandler) Processors(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]any{
		"processors": h.service.Processors(),
	})
}
