// ABOUTME: HTTP API server exposing device, group, trigger, action, and event management
// ABOUTME: Routes use Go 1.22 method patterns on the stdlib mux; all bodies are JSON

package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/relaydeck/relaydeck/internal/hub"
	"github.com/relaydeck/relaydeck/internal/store"
)

// Server holds the handler dependencies for the management API.
type Server struct {
	store  store.Store
	hub    *hub.Hub
	logger *slog.Logger
}

// NewServer creates an API server backed by the given store and hub.
func NewServer(s store.Store, h *hub.Hub, logger *slog.Logger) *Server {
	return &Server{
		store:  s,
		hub:    h,
		logger: logger,
	}
}

// RegisterRoutes attaches every API route plus the device websocket
// endpoint to the mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	// Device websocket endpoint
	mux.HandleFunc("GET /ws", s.hub.HandleWS)

	mux.HandleFunc("GET /api/health", s.handleHealth)

	// Devices
	mux.HandleFunc("GET /api/devices", s.handleListDevices)
	mux.HandleFunc("POST /api/devices", s.handleCreateDevice)
	mux.HandleFunc("GET /api/devices/{id}", s.handleGetDevice)
	mux.HandleFunc("PUT /api/devices/{id}", s.handleUpdateDevice)
	mux.HandleFunc("DELETE /api/devices/{id}", s.handleDeleteDevice)
	mux.HandleFunc("GET /api/devices/{id}/config", s.handleDeviceConfig)
	mux.HandleFunc("POST /api/devices/{id}/heartbeat", s.handleDeviceHeartbeat)

	// Groups
	mux.HandleFunc("GET /api/groups", s.handleListGroups)
	mux.HandleFunc("POST /api/groups", s.handleCreateGroup)
	mux.HandleFunc("GET /api/groups/{id}", s.handleGetGroup)
	mux.HandleFunc("PUT /api/groups/{id}", s.handleUpdateGroup)
	mux.HandleFunc("DELETE /api/groups/{id}", s.handleDeleteGroup)

	// Triggers
	mux.HandleFunc("GET /api/triggers", s.handleListTriggers)
	mux.HandleFunc("POST /api/triggers", s.handleCreateTrigger)
	mux.HandleFunc("GET /api/triggers/device/{deviceId}", s.handleListTriggersByDevice)
	mux.HandleFunc("GET /api/triggers/{id}", s.handleGetTrigger)
	mux.HandleFunc("PUT /api/triggers/{id}", s.handleUpdateTrigger)
	mux.HandleFunc("DELETE /api/triggers/{id}", s.handleDeleteTrigger)
	mux.HandleFunc("POST /api/triggers/{id}/fire", s.handleFireTrigger)

	// Actions
	mux.HandleFunc("GET /api/actions", s.handleListActions)
	mux.HandleFunc("POST /api/actions", s.handleCreateAction)
	mux.HandleFunc("GET /api/actions/trigger/{triggerId}", s.handleListActionsByTrigger)
	mux.HandleFunc("PUT /api/actions/trigger/{triggerId}/reorder", s.handleReorderActions)
	mux.HandleFunc("GET /api/actions/{id}", s.handleGetAction)
	mux.HandleFunc("PUT /api/actions/{id}", s.handleUpdateAction)
	mux.HandleFunc("DELETE /api/actions/{id}", s.handleDeleteAction)

	// Event log
	mux.HandleFunc("GET /api/events", s.handleListEvents)
	mux.HandleFunc("POST /api/events", s.handleCreateEvent)
	mux.HandleFunc("GET /api/events/device/{deviceId}", s.handleListEventsByDevice)
	mux.HandleFunc("DELETE /api/events/cleanup", s.handleCleanupEvents)
}

// healthResponse is the JSON response for GET /api/health.
type healthResponse struct {
	Status           string `json:"status"`
	ConnectedDevices int    `json:"connectedDevices"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.respondJSON(w, http.StatusOK, healthResponse{
		Status:           "ok",
		ConnectedDevices: s.hub.Registry().Len(),
	})
}

// respondJSON writes v as the JSON response body.
func (s *Server) respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encoding response", "error", err)
	}
}

// errorResponse is the JSON body for all error replies.
type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, errorResponse{Error: message})
}

// decodeJSON parses the request body into v, answering 400 on failure.
// Returns false when the request has already been answered.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	return true
}

// pushConfig sends the current config snapshot to a device after one of
// its triggers or actions changed. Failures are logged; the mutation
// already succeeded.
func (s *Server) pushConfig(r *http.Request, deviceID string) {
	if err := s.hub.SendConfigUpdate(r.Context(), deviceID); err != nil {
		s.logger.Error("pushing config update", "device_id", deviceID, "error", err)
	}
}
