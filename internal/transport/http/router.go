package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"neuropipe/internal/config"
	apperrors "neuropipe/internal/errors"
	"neuropipe/internal/infrastructure"
	"neuropipe/internal/middleware"
)

// Deps are the collaborators of the HTTP surface
type Deps struct {
	Service   PipelineService
	Telemetry *infrastructure.Telemetry
	Logger    *slog.Logger
	Server    config.ServerConfig
	Version   string
	// Debug puts internal error details into problem documents
	Debug bool
}

// NewRouter builds the chi router with the middleware chain and all routes
func NewRouter(deps Deps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tel := deps.Telemetry
	if tel == nil {
		tel = infrastructure.NoopTelemetry()
	}
	errs := apperrors.NewErrorHandler(logger, deps.Debug)

	health := NewHealthHandler(deps.Service, deps.Version)
	datasets := NewDatasetHandler(deps.Service, errs, logger)
	jobs := NewJobHandler(deps.Service, errs, logger, deps.Server.AllowedOrigins)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.StructuredLogger(logger))
	r.Use(errs.Middleware)
	r.Use(middleware.Tracing(tel.Tracer))
	r.Use(middleware.SecurityHeaders)
	if rl := deps.Server.RateLimit; rl.Enabled && rl.RPS > 0 {
		r.Use(middleware.NewRateLimiter(rl.RPS, rl.Burst, logger).Handler)
	}

	r.NotFound(errs.NotFound)
	r.MethodNotAllowed(errs.MethodNotAllowed)

	r.Get("/healthz", health.Health)
	r.Method(http.MethodGet, "/metrics", tel.MetricsHandler)

	r.Route("/api", func(r chi.Router) {
		// the event stream outlives any request timeout
		r.Get("/jobs/{id}/events", jobs.Events)

		r.Group(func(r chi.Router) {
			if deps.Server.RequestTimeout > 0 {
				r.Use(middleware.Timeout(deps.Server.RequestTimeout))
			}
			r.Get("/processors", health.Processors)
			r.Mount("/datasets", datasets.Routes())
			r.Mount("/jobs", jobs.Routes())
		})
	})

	return r
}
