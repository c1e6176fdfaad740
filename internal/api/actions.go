// ABOUTME: Action CRUD handlers plus transactional reordering
// ABOUTME: Actions belong to a trigger and execute in positional order

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/relaydeck/relaydeck/internal/store"
)

var validActionTypes = map[string]bool{
	store.ActionTypeGPIOOutput:  true,
	store.ActionTypeHTTPRequest: true,
	store.ActionTypeDelay:       true,
}

// createActionRequest is the JSON request body for POST /api/actions.
type createActionRequest struct {
	TriggerID string          `json:"triggerId"`
	Name      string          `json:"name"`
	Type      string          `json:"type"`
	Config    json.RawMessage `json:"config"`
	Order     int             `json:"order"`
}

// updateActionRequest is the JSON request body for PUT /api/actions/{id}.
type updateActionRequest struct {
	Name   *string         `json:"name"`
	Type   *string         `json:"type"`
	Config json.RawMessage `json:"config"`
	Order  *int            `json:"order"`
}

func (s *Server) handleListActions(w http.ResponseWriter, r *http.Request) {
	actions, err := s.store.ListActions(r.Context())
	if err != nil {
		s.logger.Error("listing actions", "error", err)
		s.respondError(w, http.StatusInternalServerError, "failed to list actions")
		return
	}
	s.respondJSON(w, http.StatusOK, actions)
}

func (s *Server) handleListActionsByTrigger(w http.ResponseWriter, r *http.Request) {
	actions, err := s.store.ListActionsByTrigger(r.Context(), r.PathValue("triggerId"))
	if err != nil {
		s.logger.Error("listing actions by trigger", "error", err)
		s.respondError(w, http.StatusInternalServerError, "failed to list actions")
		return
	}
	s.respondJSON(w, http.StatusOK, actions)
}

func (s *Server) handleCreateAction(w http.ResponseWriter, r *http.Request) {
	var req createActionRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if req.Name == "" {
		s.respondError(w, http.StatusBadRequest, "name is required")
		return
	}
	if !validActionTypes[req.Type] {
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid action type: %s", req.Type))
		return
	}

	trigger, err := s.store.GetTrigger(r.Context(), req.TriggerID)
	if errors.Is(err, store.ErrNotFound) {
		s.respondError(w, http.StatusBadRequest, "trigger not found")
		return
	}
	if err != nil {
		s.logger.Error("checking action trigger", "error", err)
		s.respondError(w, http.StatusInternalServerError, "failed to create action")
		return
	}

	config := "{}"
	if len(req.Config) > 0 {
		config = string(req.Config)
	}

	now := time.Now().UTC()
	action := &store.Action{
		ID:        uuid.New().String(),
		TriggerID: req.TriggerID,
		Name:      req.Name,
		Type:      req.Type,
		Config:    config,
		Order:     req.Order,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.store.CreateAction(r.Context(), action); err != nil {
		s.logger.Error("creating action", "error", err)
		s.respondError(w, http.StatusInternalServerError, "failed to create action")
		return
	}

	s.pushConfig(r, trigger.DeviceID)
	s.respondJSON(w, http.StatusCreated, action)
}

func (s *Server) handleGetAction(w http.ResponseWriter, r *http.Request) {
	action, err := s.store.GetAction(r.Context(), r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, "action not found")
		return
	}
	if err != nil {
		s.logger.Error("getting action", "error", err)
		s.respondError(w, http.StatusInternalServerError, "failed to get action")
		return
	}
	s.respondJSON(w, http.StatusOK, action)
}

func (s *Server) handleUpdateAction(w http.ResponseWriter, r *http.Request) {
	action, err := s.store.GetAction(r.Context(), r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, "action not found")
		return
	}
	if err != nil {
		s.logger.Error("getting action", "error", err)
		s.respondError(w, http.StatusInternalServerError, "failed to update action")
		return
	}

	var req updateActionRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	if req.Name != nil {
		if *req.Name == "" {
			s.respondError(w, http.StatusBadRequest, "name cannot be empty")
			return
		}
		action.Name = *req.Name
	}
	if req.Type != nil {
		if !validActionTypes[*req.Type] {
			s.respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid action type: %s", *req.Type))
			return
		}
		action.Type = *req.Type
	}
	if len(req.Config) > 0 {
		action.Config = string(req.Config)
	}
	if req.Order != nil {
		action.Order = *req.Order
	}
	action.UpdatedAt = time.Now().UTC()

	if err := s.store.UpdateAction(r.Context(), action); err != nil {
		s.logger.Error("updating action", "error", err)
		s.respondError(w, http.StatusInternalServerError, "failed to update action")
		return
	}

	s.pushConfigForTrigger(r, action.TriggerID)
	s.respondJSON(w, http.StatusOK, action)
}

func (s *Server) handleDeleteAction(w http.ResponseWriter, r *http.Request) {
	action, err := s.store.GetAction(r.Context(), r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, "action not found")
		return
	}
	if err != nil {
		s.logger.Error("getting action", "error", err)
		s.respondError(w, http.StatusInternalServerError, "failed to delete action")
		return
	}

	if err := s.store.DeleteAction(r.Context(), action.ID); err != nil {
		s.logger.Error("deleting action", "error", err)
		s.respondError(w, http.StatusInternalServerError, "failed to delete action")
		return
	}

	s.pushConfigForTrigger(r, action.TriggerID)
	s.respondJSON(w, http.StatusNoContent, nil)
}

// reorderActionsRequest is the JSON request body for
// PUT /api/actions/trigger/{triggerId}/reorder. The list position of
// each id becomes its new order.
type reorderActionsRequest struct {
	ActionIDs []string `json:"actionIds"`
}

func (s *Server) handleReorderActions(w http.ResponseWriter, r *http.Request) {
	triggerID := r.PathValue("triggerId")

	var req reorderActionsRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if len(req.ActionIDs) == 0 {
		s.respondError(w, http.StatusBadRequest, "actionIds is required")
		return
	}

	err := s.store.ReorderActions(r.Context(), triggerID, req.ActionIDs)
	if errors.Is(err, store.ErrNotFound) {
		s.respondError(w, http.StatusBadRequest, "action does not belong to trigger")
		return
	}
	if err != nil {
		s.logger.Error("reordering actions", "trigger_id", triggerID, "error", err)
		s.respondError(w, http.StatusInternalServerError, "failed to reorder actions")
		return
	}

	actions, err := s.store.ListActionsByTrigger(r.Context(), triggerID)
	if err != nil {
		s.logger.Error("listing actions after reorder", "error", err)
		s.respondError(w, http.StatusInternalServerError, "failed to reorder actions")
		return
	}

	s.pushConfigForTrigger(r, triggerID)
	s.respondJSON(w, http.StatusOK, actions)
}

// pushConfigForTrigger resolves a trigger to its device and pushes the
// updated config there.
func (s *Server) pushConfigForTrigger(r *http.Request, triggerID string) {
	trigger, err := s.store.GetTrigger(r.Context(), triggerID)
	if err != nil {
		s.logger.Error("resolving trigger for config push", "trigger_id", triggerID, "error", err)
		return
	}
	s.pushConfig(r, trigger.DeviceID)
}
