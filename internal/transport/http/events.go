package http

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"neuropipe/internal/operations"
	"neuropipe/internal/processing"
	"neuropipe/internal/registry"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Events handles GET /api/jobs/{id}/events.
//
// A live job streams progress events and then its result event. A job that
// already finished gets a single result event built from its record. Either
// way the server closes the socket afterwards.
func (h *JobHandler) Events(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	jobID := chi.URLParam(r, "id")

	task, live := h.service.Task(jobID)
	var job *registry.Job
	if !live {
		var err error
		if job, err = h.service.GetJob(ctx, jobID); err != nil {
			respondError(h.errs, w, r, err)
			return
		}
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error
		h.logger.WarnContext(ctx, "websocket_upgrade_failed",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()))
		return
	}
	defer conn.Close()

	logger := h.logger.With(slog.String("job_id", jobID))
	logger.DebugContext(ctx, "event_stream_opened", slog.Bool("live", live))

	if !live {
		h.finishStream(conn, jobEvent(job), logger)
		return
	}
	h.stream(ctx, conn, task, logger)
}

func (h *JobHandler) stream(ctx context.Context, conn *websocket.Conn, task *operations.Task, logger *slog.Logger) {
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		conn.SetReadLimit(512)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	sawResult := false
	events := task.Events()
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				if sawResult {
					h.close(conn)
					return
				}
				// another subscriber took the result; the record is final by now
				job, err := h.service.GetJob(ctx, task.ID)
				if err != nil {
					logger.WarnContext(ctx, "event_stream_lookup_failed", slog.String("error", err.Error()))
					h.close(conn)
					return
				}
				h.finishStream(conn, jobEvent(job), logger)
				return
			}
			if err := writeEvent(conn, ev); err != nil {
				logger.Debug("event_stream_write_failed", slog.String("error", err.Error()))
				return
			}
			if ev.Type == operations.EventResult {
				sawResult = true
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-gone:
			logger.Debug("event_stream_client_gone")
			return
		}
	}
}

func (h *JobHandler) finishStream(conn *websocket.Conn, ev operations.Event, logger *slog.Logger) {
	if err := writeEvent(conn, ev); err != nil {
		logger.Debug("event_stream_write_failed", slog.String("error", err.Error()))
		return
	}
	h.close(conn)
}

func (h *JobHandler) close(conn *websocket.Conn) {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "job finished"))
}

func writeEvent(conn *websocket.Conn, ev operations.Event) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(ev)
}

// jobEvent renders a stored job as the event a live stream would have ended
// with. Non-terminal jobs become a progress snapshot.
func jobEvent(job *registry.Job) operations.Event {
	ev := operations.Event{
		Type:     operations.EventProgress,
		JobID:    job.ID,
		Progress: job.Progress,
	}
	if !job.Status.IsTerminal() {
		return ev
	}
	ev.Type = operations.EventResult
	ev.Result = &processing.Result{
		Success:    job.Status == registry.JobStatusCompleted,
		Message:    job.Message,
		OutputPath: job.OutputPath,
		ErrorType:  job.ErrorType,
	}
	return ev
}

// originChecker accepts requests without an Origin header, same-host
// origins and origins starting with one of allowed.
func originChecker(allowed []string, logger *slog.Logger) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if u, err := url.Parse(origin); err == nil && strings.EqualFold(u.Host, r.Host) {
			return true
		}
		for _, prefix := range allowed {
			if prefix != "" && strings.HasPrefix(origin, prefix) {
				return true
			}
		}
		logger.WarnContext(r.Context(), "websocket_origin_rejected", slog.String("origin", origin))
		return false
	}
}
