package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/sensorhub/internal/device"
	"github.com/nerrad567/sensorhub/internal/query"
)

// toggleRequest is the body of POST /api/devices/toggle.
type toggleRequest struct {
	Device string `json:"device"`
	State  *bool  `json:"state"`
}

// toggleResponse confirms a logged command. Warning is set when the
// command could not be sent to the device.
type toggleResponse struct {
	Message string `json:"message"`
	Warning string `json:"warning,omitempty"`
}

// handleToggleDevice logs and publishes a relay command.
func (s *Server) handleToggleDevice(w http.ResponseWriter, r *http.Request) {
	var req toggleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.State == nil {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "state is required")
		return
	}

	result, err := s.dispatcher.Dispatch(r.Context(), device.Command{
		Device: req.Device,
		State:  *req.State,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	resp := toggleResponse{Message: result.Message()}
	if result.PublishErr != nil {
		resp.Warning = "command logged but not delivered: " + result.PublishErr.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleActionHistory returns a page of the action log, for one device
// when the route names one.
func (s *Server) handleActionHistory(w http.ResponseWriter, r *http.Request) {
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

	result, err := s.queries.Actions(r.Context(), query.ActionQuery{
		Device:    chi.URLParam(r, "deviceName"),
		Page:      page,
		Limit:     limit,
		State:     values.Get("state"),
		Search:    values.Get("search"),
		SortOrder: values.Get("sortOrder"),
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleDeviceStates(w http.ResponseWriter, r *http.Request) {
	states, err := s.queries.DeviceStates(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, states)
}
