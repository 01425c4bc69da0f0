package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// healthCheckTimeout bounds the database check behind /api/health.
const healthCheckTimeout = 2 * time.Second

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeNotFound(w, "route not found")
	})

	// Prometheus scrape endpoint
	r.Get("/metrics", s.handleMetrics)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Route("/sensors", func(r chi.Router) {
			r.Get("/data", s.handleSensorData)
			r.Get("/latest", s.handleLatestReading)
			r.Get("/historical", s.handleHistoricalReadings)
			r.Get("/alerts", s.handleAlertCounts)
		})

		r.Route("/devices", func(r chi.Router) {
			r.Get("/states", s.handleDeviceStates)
			r.Post("/toggle", s.handleToggleDevice)
			r.Get("/history/all", s.handleActionHistory)
			r.Get("/{deviceName}", s.handleActionHistory)
		})

		r.Get(wsPath(s.wsCfg.Path), s.handleWebSocket)
	})

	return r
}

// wsPath returns the websocket route relative to /api.
func wsPath(path string) string {
	if path == "" {
		return "/ws"
	}
	if path[0] != '/' {
		return "/" + path
	}
	return path
}

// handleHealth returns the server health status.
//
// An unreachable database is a 503. A disconnected broker only degrades
// the service: queries still work, commands are logged but not sent.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	mqttConnected := s.mqtt != nil && s.mqtt.IsConnected()
	if !mqttConnected {
		status = "degraded"
	}

	if s.database != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()
		if err := s.database.HealthCheck(ctx); err != nil {
			s.logger.Warn("health check failed", "component", "database", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{
				"status":  "unhealthy",
				"version": s.version,
				"mqtt":    mqttConnected,
			})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  status,
		"version": s.version,
		"mqtt":    mqttConnected,
	})
}
