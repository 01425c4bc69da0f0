package api

import (
	"net/http"

	"github.com/nerrad567/sensorhub/internal/query"
)

// handleSensorData returns one page of pivoted telemetry.
func (s *Server) handleSensorData(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()

	page, err := intParam(values, "page")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	limit, err := intParam(values, "limit")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	result, err := s.queries.Telemetry(r.Context(), query.TelemetryQuery{
		Page:           page,
		Limit:          limit,
		SortKey:        values.Get("sortKey"),
		SortOrder:      values.Get("sortOrder"),
		StartDate:      values.Get("startDate"),
		EndDate:        values.Get("endDate"),
		Search:         values.Get("search"),
		FilterCategory: values.Get("filterCategory"),
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleLatestReading returns the most recent pivoted row, or null.
func (s *Server) handleLatestReading(w http.ResponseWriter, r *http.Request) {
	row, err := s.queries.Latest(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if row == nil {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	writeJSON(w, http.StatusOK, row)
}

// handleHistoricalReadings returns the recent window, oldest first.
func (s *Server) handleHistoricalReadings(w http.ResponseWriter, r *http.Request) {
	rows, err := s.queries.History(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleAlertCounts(w http.ResponseWriter, r *http.Request) {
	counts, err := s.queries.AlertCounts(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, counts)
}
