package api

import "net/http"

// handleMetrics serves the Prometheus exposition for the process.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if s.metrics == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "metrics are not enabled")
		return
	}
	s.metrics.Handler().ServeHTTP(w, r)
}
