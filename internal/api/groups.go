// ABOUTME: Group CRUD handlers for organizing devices
// ABOUTME: Deleting a group detaches its devices instead of deleting them

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/relaydeck/relaydeck/internal/store"
)

// createGroupRequest is the JSON request body for POST /api/groups.
type createGroupRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Color       string `json:"color"`
}

// updateGroupRequest is the JSON request body for PUT /api/groups/{id}.
type updateGroupRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Color       *string `json:"color"`
}

func (s *Server) handleListGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := s.store.ListGroups(r.Context())
	if err != nil {
		s.logger.Error("listing groups", "error", err)
		s.respondError(w, http.StatusInternalServerError, "failed to list groups")
		return
	}
	s.respondJSON(w, http.StatusOK, groups)
}

func (s *Server) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	var req createGroupRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if req.Name == "" {
		s.respondError(w, http.StatusBadRequest, "name is required")
		return
	}

	now := time.Now().UTC()
	group := &store.Group{
		ID:          uuid.New().String(),
		Name:        req.Name,
		Description: req.Description,
		Color:       req.Color,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.store.CreateGroup(r.Context(), group); err != nil {
		s.logger.Error("creating group", "error", err)
		s.respondError(w, http.StatusInternalServerError, "failed to create group")
		return
	}
	s.respondJSON(w, http.StatusCreated, group)
}

func (s *Server) handleGetGroup(w http.ResponseWriter, r *http.Request) {
	group, err := s.store.GetGroup(r.Context(), r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, "group not found")
		return
	}
	if err != nil {
		s.logger.Error("getting group", "error", err)
		s.respondError(w, http.StatusInternalServerError, "failed to get group")
		return
	}
	s.respondJSON(w, http.StatusOK, group)
}

func (s *Server) handleUpdateGroup(w http.ResponseWriter, r *http.Request) {
	group, err := s.store.GetGroup(r.Context(), r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, "group not found")
		return
	}
	if err != nil {
		s.logger.Error("getting group", "error", err)
		s.respondError(w, http.StatusInternalServerError, "failed to get group")
		return
	}

	var req updateGroupRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	if req.Name != nil {
		if *req.Name == "" {
			s.respondError(w, http.StatusBadRequest, "name cannot be empty")
			return
		}
		group.Name = *req.Name
	}
	if req.Description != nil {
		group.Description = *req.Description
	}
	if req.Color != nil {
		group.Color = *req.Color
	}
	group.UpdatedAt = time.Now().UTC()

	if err := s.store.UpdateGroup(r.Context(), group); err != nil {
		s.logger.Error("updating group", "error", err)
		s.respondError(w, http.StatusInternalServerError, "failed to update group")
		return
	}
	s.respondJSON(w, http.StatusOK, group)
}

func (s *Server) handleDeleteGroup(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	// Devices keep existing, they just lose their group membership.
	if err := s.store.DetachGroupDevices(r.Context(), id); err != nil {
		s.logger.Error("detaching group devices", "group_id", id, "error", err)
		s.respondError(w, http.StatusInternalServerError, "failed to delete group")
		return
	}

	err := s.store.DeleteGroup(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, "group not found")
		return
	}
	if err != nil {
		s.logger.Error("deleting group", "error", err)
		s.respondError(w, http.StatusInternalServerError, "failed to delete group")
		return
	}
	s.respondJSON(w, http.StatusNoContent, nil)
}
