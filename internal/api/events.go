// ABOUTME: Event log handlers for listing, ingesting, and retention cleanup
// ABOUTME: List responses use a pagination envelope; cleanup takes a days cutoff

package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/relaydeck/relaydeck/internal/store"
)

// paginationInfo describes one page of a paginated listing.
type paginationInfo struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// listEventsResponse is the JSON response for GET /api/events.
type listEventsResponse struct {
	Events     []*store.EventLog `json:"events"`
	Pagination paginationInfo    `json:"pagination"`
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := store.EventFilter{
		DeviceID: q.Get("deviceId"),
		Type:     store.EventType(q.Get("type")),
	}
	if page, err := strconv.Atoi(q.Get("page")); err == nil {
		filter.Page = page
	}
	if limit, err := strconv.Atoi(q.Get("limit")); err == nil {
		filter.Limit = limit
	}

	result, err := s.store.ListEvents(r.Context(), filter)
	if err != nil {
		s.logger.Error("listing events", "error", err)
		s.respondError(w, http.StatusInternalServerError, "failed to list events")
		return
	}

	s.respondJSON(w, http.StatusOK, listEventsResponse{
		Events: result.Events,
		Pagination: paginationInfo{
			Page:       result.Page,
			Limit:      result.Limit,
			Total:      result.Total,
			TotalPages: result.TotalPages,
		},
	})
}

func (s *Server) handleListEventsByDevice(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if parsed, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil {
		limit = parsed
	}

	events, err := s.store.ListEventsByDevice(r.Context(), r.PathValue("deviceId"), limit)
	if err != nil {
		s.logger.Error("listing device events", "error", err)
		s.respondError(w, http.StatusInternalServerError, "failed to list events")
		return
	}
	s.respondJSON(w, http.StatusOK, events)
}

// createEventRequest is the JSON request body for POST /api/events.
// Agents without a websocket connection report events this way.
type createEventRequest struct {
	DeviceID  string          `json:"deviceId"`
	TriggerID *string         `json:"triggerId"`
	ActionID  *string         `json:"actionId"`
	Type      string          `json:"type"`
	Message   string          `json:"message"`
	Metadata  json.RawMessage `json:"metadata"`
}

var validEventTypes = map[store.EventType]bool{
	store.EventDeviceConnected:    true,
	store.EventDeviceDisconnected: true,
	store.EventTriggerFired:       true,
	store.EventActionExecuted:     true,
	store.EventDeviceError:        true,
}

func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var req createEventRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if req.DeviceID == "" {
		s.respondError(w, http.StatusBadRequest, "deviceId is required")
		return
	}
	eventType := store.EventType(req.Type)
	if !validEventTypes[eventType] {
		s.respondError(w, http.StatusBadRequest, "invalid event type: "+req.Type)
		return
	}

	event := &store.EventLog{
		ID:        uuid.New().String(),
		DeviceID:  req.DeviceID,
		TriggerID: req.TriggerID,
		ActionID:  req.ActionID,
		Type:      eventType,
		Message:   req.Message,
		CreatedAt: time.Now().UTC(),
	}
	if len(req.Metadata) > 0 {
		metadata := string(req.Metadata)
		event.Metadata = &metadata
	}

	if err := s.store.SaveEvent(r.Context(), event); err != nil {
		s.logger.Error("saving event", "error", err)
		s.respondError(w, http.StatusInternalServerError, "failed to save event")
		return
	}
	s.respondJSON(w, http.StatusCreated, event)
}

// cleanupResponse is the JSON response for DELETE /api/events/cleanup.
type cleanupResponse struct {
	Deleted    int64     `json:"deleted"`
	CutoffDate time.Time `json:"cutoffDate"`
}

// handleCleanupEvents deletes events older than ?days=N (default 30).
func (s *Server) handleCleanupEvents(w http.ResponseWriter, r *http.Request) {
	days := 30
	if parsed, err := strconv.Atoi(r.URL.Query().Get("days")); err == nil && parsed > 0 {
		days = parsed
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	deleted, err := s.store.DeleteEventsBefore(r.Context(), cutoff)
	if err != nil {
		s.logger.Error("cleaning up events", "error", err)
		s.respondError(w, http.StatusInternalServerError, "failed to clean up events")
		return
	}

	s.logger.Info("event cleanup completed", "deleted", deleted, "cutoff", cutoff)
	s.respondJSON(w, http.StatusOK, cleanupResponse{Deleted: deleted, CutoffDate: cutoff})
}
