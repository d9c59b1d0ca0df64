package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/media-state-bridge/internal/host"
)

// healthCheckTimeout bounds all dependency checks of one /health request.
const healthCheckTimeout = 3 * time.Second

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/metrics", s.handleMetrics)

		// Queries
		r.Get("/connection", s.handleConnection)
		r.Get("/logs", s.handleLogs)
		r.Get("/state", s.handleState)

		// Host notifications pushed by an external agent
		r.Post("/foreground", s.handleForeground)

		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

// handleHealth reports bridge status and runs each dependency check. A
// failing check marks the response degraded; the status code stays 200
// because the process itself is alive.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	status := "ok"
	checks := make(map[string]string, len(s.checks))
	for name, c := range s.checks {
		if err := c.HealthCheck(ctx); err != nil {
			checks[name] = err.Error()
			status = "degraded"
			continue
		}
		checks[name] = "ok"
	}

	snap := s.bridge.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    status,
		"version":   s.version,
		"bridge":    snap.Status,
		"connected": snap.Connected,
		"checks":    checks,
	})
}

// handleConnection answers getConnectionState.
func (s *Server) handleConnection(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.bridge.ConnectionState())
}

// handleLogs answers getLogs.
func (s *Server) handleLogs(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.bridge.Logs())
}

// handleState answers getState.
func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.bridge.Snapshot())
}

// handleForeground passes the raw request body to the webhook source.
// The body is not validated here; malformed notifications are the bridge's
// to record.
func (s *Server) handleForeground(w http.ResponseWriter, r *http.Request) {
	if s.webhook == nil {
		writeNotFound(w, "webhook source is not enabled")
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "notification too large")
			return
		}
		writeBadRequest(w, "reading request body failed")
		return
	}
	if err := s.webhook.Deliver(body); err != nil {
		if errors.Is(err, host.ErrSourceUnavailable) {
			writeUnavailable(w, "bridge is not subscribed yet")
			return
		}
		writeInternalError(w, "delivering notification failed")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}
