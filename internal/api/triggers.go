// ABOUTME: Trigger CRUD handlers plus manual remote firing
// ABOUTME: Mutations push a fresh config snapshot to the affected device

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/relaydeck/relaydeck/internal/hub"
	"github.com/relaydeck/relaydeck/internal/store"
)

var validTriggerTypes = map[string]bool{
	store.TriggerTypeGPIOInput: true,
	store.TriggerTypeSchedule:  true,
	store.TriggerTypeAPICall:   true,
}

// createTriggerRequest is the JSON request body for POST /api/triggers.
// Config arrives as a JSON object and is stored serialized.
type createTriggerRequest struct {
	DeviceID    string          `json:"deviceId"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Type        string          `json:"type"`
	Config      json.RawMessage `json:"config"`
	IsEnabled   *bool           `json:"isEnabled"`
}

// updateTriggerRequest is the JSON request body for PUT /api/triggers/{id}.
type updateTriggerRequest struct {
	Name        *string         `json:"name"`
	Description *string         `json:"description"`
	Type        *string         `json:"type"`
	Config      json.RawMessage `json:"config"`
	IsEnabled   *bool           `json:"isEnabled"`
}

func (s *Server) handleListTriggers(w http.ResponseWriter, r *http.Request) {
	triggers, err := s.store.ListTriggers(r.Context())
	if err != nil {
		s.logger.Error("listing triggers", "error", err)
		s.respondError(w, http.StatusInternalServerError, "failed to list triggers")
		return
	}
	s.respondJSON(w, http.StatusOK, triggers)
}

func (s *Server) handleListTriggersByDevice(w http.ResponseWriter, r *http.Request) {
	triggers, err := s.store.ListTriggersByDevice(r.Context(), r.PathValue("deviceId"))
	if err != nil {
		s.logger.Error("listing triggers by device", "error", err)
		s.respondError(w, http.StatusInternalServerError, "failed to list triggers")
		return
	}
	s.respondJSON(w, http.StatusOK, triggers)
}

func (s *Server) handleCreateTrigger(w http.ResponseWriter, r *http.Request) {
	var req createTriggerRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if req.Name == "" {
		s.respondError(w, http.StatusBadRequest, "name is required")
		return
	}
	if !validTriggerTypes[req.Type] {
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid trigger type: %s", req.Type))
		return
	}

	// The device must exist before a trigger can reference it.
	if _, err := s.store.GetDevice(r.Context(), req.DeviceID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.respondError(w, http.StatusBadRequest, "device not found")
			return
		}
		s.logger.Error("checking trigger device", "error", err)
		s.respondError(w, http.StatusInternalServerError, "failed to create trigger")
		return
	}

	enabled := true
	if req.IsEnabled != nil {
		enabled = *req.IsEnabled
	}
	config := "{}"
	if len(req.Config) > 0 {
		config = string(req.Config)
	}

	now := time.Now().UTC()
	trigger := &store.Trigger{
		ID:          uuid.New().String(),
		DeviceID:    req.DeviceID,
		Name:        req.Name,
		Description: req.Description,
		Type:        req.Type,
		Config:      config,
		IsEnabled:   enabled,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.store.CreateTrigger(r.Context(), trigger); err != nil {
		s.logger.Error("creating trigger", "error", err)
		s.respondError(w, http.StatusInternalServerError, "failed to create trigger")
		return
	}

	s.pushConfig(r, trigger.DeviceID)
	s.respondJSON(w, http.StatusCreated, trigger)
}

func (s *Server) handleGetTrigger(w http.ResponseWriter, r *http.Request) {
	trigger, err := s.store.GetTrigger(r.Context(), r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, "trigger not found")
		return
	}
	if err != nil {
		s.logger.Error("getting trigger", "error", err)
		s.respondError(w, http.StatusInternalServerError, "failed to get trigger")
		return
	}
	s.respondJSON(w, http.StatusOK, trigger)
}

func (s *Server) handleUpdateTrigger(w http.ResponseWriter, r *http.Request) {
	trigger, err := s.store.GetTrigger(r.Context(), r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, "trigger not found")
		return
	}
	if err != nil {
		s.logger.Error("getting trigger", "error", err)
		s.respondError(w, http.StatusInternalServerError, "failed to get trigger")
		return
	}

	var req updateTriggerRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	if req.Name != nil {
		if *req.Name == "" {
			s.respondError(w, http.StatusBadRequest, "name cannot be empty")
			return
		}
		trigger.Name = *req.Name
	}
	if req.Description != nil {
		trigger.Description = *req.Description
	}
	if req.Type != nil {
		if !validTriggerTypes[*req.Type] {
			s.respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid trigger type: %s", *req.Type))
			return
		}
		trigger.Type = *req.Type
	}
	if len(req.Config) > 0 {
		trigger.Config = string(req.Config)
	}
	if req.IsEnabled != nil {
		trigger.IsEnabled = *req.IsEnabled
	}
	trigger.UpdatedAt = time.Now().UTC()

	if err := s.store.UpdateTrigger(r.Context(), trigger); err != nil {
		s.logger.Error("updating trigger", "error", err)
		s.respondError(w, http.StatusInternalServerError, "failed to update trigger")
		return
	}

	s.pushConfig(r, trigger.DeviceID)
	s.respondJSON(w, http.StatusOK, trigger)
}

func (s *Server) handleDeleteTrigger(w http.ResponseWriter, r *http.Request) {
	trigger, err := s.store.GetTrigger(r.Context(), r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, "trigger not found")
		return
	}
	if err != nil {
		s.logger.Error("getting trigger", "error", err)
		s.respondError(w, http.StatusInternalServerError, "failed to delete trigger")
		return
	}

	if err := s.store.DeleteTrigger(r.Context(), trigger.ID); err != nil {
		s.logger.Error("deleting trigger", "error", err)
		s.respondError(w, http.StatusInternalServerError, "failed to delete trigger")
		return
	}

	s.pushConfig(r, trigger.DeviceID)
	s.respondJSON(w, http.StatusNoContent, nil)
}

// fireTriggerResponse is the JSON response for POST /api/triggers/{id}/fire.
type fireTriggerResponse struct {
	Status  string         `json:"status"`
	Trigger *store.Trigger `json:"trigger"`
	Sent    bool           `json:"sent"`
}

// handleFireTrigger dispatches a trigger to its device over the
// websocket. Success means the command was queued; the device reports
// actual execution through its telemetry frames.
func (s *Server) handleFireTrigger(w http.ResponseWriter, r *http.Request) {
	trigger, err := s.store.GetTrigger(r.Context(), r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, "trigger not found")
		return
	}
	if err != nil {
		s.logger.Error("getting trigger", "error", err)
		s.respondError(w, http.StatusInternalServerError, "failed to fire trigger")
		return
	}

	if err := s.hub.FireTrigger(trigger.DeviceID, trigger.ID); err != nil {
		if errors.Is(err, hub.ErrNotConnected) && !s.hub.Registry().IsConnected(trigger.DeviceID) {
			s.respondError(w, http.StatusServiceUnavailable, "device not connected")
			return
		}
		s.logger.Error("dispatching trigger", "trigger_id", trigger.ID, "error", err)
		s.respondError(w, http.StatusInternalServerError, "failed to send command to device")
		return
	}

	s.hub.RecordManualFire(r.Context(), trigger)

	s.respondJSON(w, http.StatusOK, fireTriggerResponse{
		Status:  "fired",
		Trigger: trigger,
		Sent:    true,
	})
}
