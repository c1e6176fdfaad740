// ABOUTME: Device CRUD handlers plus config snapshot and HTTP heartbeat
// ABOUTME: Devices are the registered hardware agents the hub talks to

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/relaydeck/relaydeck/internal/store"
)

// createDeviceRequest is the JSON request body for POST /api/devices.
type createDeviceRequest struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Hostname    string  `json:"hostname"`
	IPAddress   string  `json:"ipAddress"`
	GroupID     *string `json:"groupId"`
}

// updateDeviceRequest is the JSON request body for PUT /api/devices/{id}.
// Absent fields keep their current value.
type updateDeviceRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Hostname    *string `json:"hostname"`
	IPAddress   *string `json:"ipAddress"`
	GroupID     *string `json:"groupId"`
}

func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := s.store.ListDevices(r.Context())
	if err != nil {
		s.logger.Error("listing devices", "error", err)
		s.respondError(w, http.StatusInternalServerError, "failed to list devices")
		return
	}
	s.respondJSON(w, http.StatusOK, devices)
}

func (s *Server) handleCreateDevice(w http.ResponseWriter, r *http.Request) {
	var req createDeviceRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if req.Name == "" {
		s.respondError(w, http.StatusBadRequest, "name is required")
		return
	}

	now := time.Now().UTC()
	device := &store.Device{
		ID:          uuid.New().String(),
		Name:        req.Name,
		Description: req.Description,
		Hostname:    req.Hostname,
		IPAddress:   req.IPAddress,
		GroupID:     req.GroupID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.store.CreateDevice(r.Context(), device); err != nil {
		s.logger.Error("creating device", "error", err)
		s.respondError(w, http.StatusInternalServerError, "failed to create device")
		return
	}

	s.logger.Info("device created", "device_id", device.ID, "name", device.Name)
	s.respondJSON(w, http.StatusCreated, device)
}

func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	device, err := s.store.GetDevice(r.Context(), r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, "device not found")
		return
	}
	if err != nil {
		s.logger.Error("getting device", "error", err)
		s.respondError(w, http.StatusInternalServerError, "failed to get device")
		return
	}
	s.respondJSON(w, http.StatusOK, device)
}

func (s *Server) handleUpdateDevice(w http.ResponseWriter, r *http.Request) {
	device, err := s.store.GetDevice(r.Context(), r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, "device not found")
		return
	}
	if err != nil {
		s.logger.Error("getting device", "error", err)
		s.respondError(w, http.StatusInternalServerError, "failed to get device")
		return
	}

	var req updateDeviceRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	if req.Name != nil {
		if *req.Name == "" {
			s.respondError(w, http.StatusBadRequest, "name cannot be empty")
			return
		}
		device.Name = *req.Name
	}
	if req.Description != nil {
		device.Description = *req.Description
	}
	if req.Hostname != nil {
		device.Hostname = *req.Hostname
	}
	if req.IPAddress != nil {
		device.IPAddress = *req.IPAddress
	}
	if req.GroupID != nil {
		if *req.GroupID == "" {
			device.GroupID = nil
		} else {
			device.GroupID = req.GroupID
		}
	}
	device.UpdatedAt = time.Now().UTC()

	if err := s.store.UpdateDevice(r.Context(), device); err != nil {
		s.logger.Error("updating device", "error", err)
		s.respondError(w, http.StatusInternalServerError, "failed to update device")
		return
	}
	s.respondJSON(w, http.StatusOK, device)
}

func (s *Server) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	err := s.store.DeleteDevice(r.Context(), r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, "device not found")
		return
	}
	if err != nil {
		s.logger.Error("deleting device", "error", err)
		s.respondError(w, http.StatusInternalServerError, "failed to delete device")
		return
	}
	s.respondJSON(w, http.StatusNoContent, nil)
}

// handleDeviceConfig serves the same snapshot a device receives over
// the websocket, for agents that poll over plain HTTP.
func (s *Server) handleDeviceConfig(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.hub.BuildSnapshot(r.Context(), r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, "device not found")
		return
	}
	if err != nil {
		s.logger.Error("building device config", "error", err)
		s.respondError(w, http.StatusInternalServerError, "failed to build device config")
		return
	}
	s.respondJSON(w, http.StatusOK, snapshot)
}

// heartbeatRequest is the JSON request body for POST /api/devices/{id}/heartbeat.
type heartbeatRequest struct {
	Hostname  string `json:"hostname"`
	IPAddress string `json:"ipAddress"`
}

// heartbeatResponse is the JSON response for a successful heartbeat.
type heartbeatResponse struct {
	Status string        `json:"status"`
	Device *store.Device `json:"device"`
}

// handleDeviceHeartbeat lets an agent report liveness over HTTP when it
// has no websocket connection.
func (s *Server) handleDeviceHeartbeat(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req heartbeatRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	err := s.store.SetDeviceOnline(r.Context(), id, req.Hostname, req.IPAddress)
	if errors.Is(err, store.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, "device not found")
		return
	}
	if err != nil {
		s.logger.Error("recording heartbeat", "device_id", id, "error", err)
		s.respondError(w, http.StatusInternalServerError, "failed to record heartbeat")
		return
	}

	device, err := s.store.GetDevice(r.Context(), id)
	if err != nil {
		s.logger.Error("getting device after heartbeat", "device_id", id, "error", err)
		s.respondError(w, http.StatusInternalServerError, "failed to record heartbeat")
		return
	}
	s.respondJSON(w, http.StatusOK, heartbeatResponse{Status: "ok", Device: device})
}
