// ABOUTME: Websocket hub handling device registration, heartbeats, and telemetry
// ABOUTME: Owns the upgrade handler, per-connection read loop, and frame dispatch

package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/relaydeck/relaydeck/internal/store"
)

// frame is the superset of every inbound message. Devices send small
// JSON text frames; unknown fields are ignored.
type frame struct {
	Type        string          `json:"type"`
	DeviceID    string          `json:"deviceId"`
	Hostname    string          `json:"hostname"`
	IPAddress   string          `json:"ipAddress"`
	TriggerID   string          `json:"triggerId"`
	TriggerName string          `json:"triggerName"`
	ActionID    string          `json:"actionId"`
	ActionName  string          `json:"actionName"`
	Success     *bool           `json:"success"`
	Error       string          `json:"error"`
	Context     json.RawMessage `json:"context"`
}

// errorFrame is the outbound error reply.
type errorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Hub accepts device websocket connections and processes their frames.
// Each connection gets one read loop goroutine and one write pump; all
// shared state lives in the Registry and the store.
type Hub struct {
	store    store.Store
	registry *Registry
	recorder *Recorder
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// New creates a Hub.
func New(s store.Store, logger *slog.Logger) *Hub {
	return &Hub{
		store:    s,
		registry: NewRegistry(logger),
		recorder: NewRecorder(s, logger),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Devices are headless agents, not browsers.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger: logger,
	}
}

// Registry exposes the connection registry, mainly for the API layer's
// connectivity checks.
func (h *Hub) Registry() *Registry {
	return h.registry
}

// HandleWS upgrades an HTTP request and runs the connection until it
// drops.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("upgrading websocket", "error", err, "remote", r.RemoteAddr)
		return
	}

	h.logger.Info("websocket connection opened", "remote", r.RemoteAddr)

	link := newWSLink(conn, h.logger.With("remote", r.RemoteAddr))
	go link.writePump()

	h.readLoop(conn, link)
}

// readLoop processes frames sequentially until the socket closes, then
// reconciles whatever device the link was registered for.
func (h *Hub) readLoop(conn *websocket.Conn, link *wsLink) {
	defer func() {
		link.Close()
		h.handleClose(link)
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Debug("websocket read failed", "error", err)
			}
			return
		}
		h.handleFrame(link, data)
	}
}

// handleFrame parses and dispatches one inbound frame. Protocol errors
// are answered on the link; only register failures close the
// connection.
func (h *Hub) handleFrame(link Link, data []byte) {
	ctx := context.Background()

	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		h.logger.Warn("received malformed frame", "error", err)
		link.Enqueue(errorFrame{Type: "error", Message: "Invalid JSON"})
		return
	}

	switch f.Type {
	case "register":
		h.handleRegister(ctx, link, &f)
	case "ping":
		h.handlePing(link, &f)
	case "trigger_fired":
		h.handleTriggerFired(ctx, &f, data)
	case "action_executed":
		h.handleActionExecuted(ctx, &f, data)
	case "error":
		h.handleDeviceError(ctx, &f)
	default:
		link.Enqueue(errorFrame{Type: "error", Message: fmt.Sprintf("Unknown message type: %s", f.Type)})
	}
}

// handleRegister binds the link to a known device and sends its config.
func (h *Hub) handleRegister(ctx context.Context, link Link, f *frame) {
	device, err := h.store.GetDevice(ctx, f.DeviceID)
	if errors.Is(err, store.ErrNotFound) {
		h.logger.Warn("register for unknown device", "device_id", f.DeviceID)
		link.Enqueue(errorFrame{Type: "error", Message: "Device not found"})
		link.Close()
		return
	}
	if err != nil {
		h.logger.Error("loading device for register", "device_id", f.DeviceID, "error", err)
		link.Enqueue(errorFrame{Type: "error", Message: "Internal error"})
		link.Close()
		return
	}

	if displaced := h.registry.Put(f.DeviceID, link); displaced != nil {
		displaced.Close()
	}

	if err := h.store.SetDeviceOnline(ctx, f.DeviceID, f.Hostname, f.IPAddress); err != nil {
		h.logger.Error("marking device online", "device_id", f.DeviceID, "error", err)
	}

	h.recorder.Record(ctx, f.DeviceID, store.EventDeviceConnected,
		fmt.Sprintf("Device %q connected", device.Name),
		RecordOpts{Metadata: map[string]string{
			"hostname":  f.Hostname,
			"ipAddress": f.IPAddress,
		}},
	)

	snapshot, err := h.BuildSnapshot(ctx, f.DeviceID)
	if err != nil {
		h.logger.Error("building config snapshot", "device_id", f.DeviceID, "error", err)
		return
	}
	link.Enqueue(configFrame{Type: "config", Config: snapshot})

	h.logger.Info("device registered",
		"device_id", f.DeviceID,
		"name", device.Name,
		"hostname", f.Hostname,
		"connected", h.registry.Len(),
	)
}

// handlePing refreshes the heartbeat and answers with the server time.
// A pong is sent even when the device never registered, matching the
// behavior agents in the field depend on.
func (h *Hub) handlePing(link Link, f *frame) {
	h.registry.Touch(f.DeviceID)
	link.Enqueue(struct {
		Type      string `json:"type"`
		Timestamp string `json:"timestamp"`
	}{
		Type:      "pong",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *Hub) handleTriggerFired(ctx context.Context, f *frame, raw []byte) {
	h.recorder.Record(ctx, f.DeviceID, store.EventTriggerFired,
		fmt.Sprintf("Trigger %q fired", f.TriggerName),
		RecordOpts{TriggerID: f.TriggerID, Metadata: json.RawMessage(raw)},
	)
	h.logger.Info("trigger fired", "device_id", f.DeviceID, "trigger", f.TriggerName)
}

func (h *Hub) handleActionExecuted(ctx context.Context, f *frame, raw []byte) {
	outcome := "executed"
	if f.Success != nil && !*f.Success {
		outcome = "failed"
	}
	h.recorder.Record(ctx, f.DeviceID, store.EventActionExecuted,
		fmt.Sprintf("Action %q %s", f.ActionName, outcome),
		RecordOpts{TriggerID: f.TriggerID, ActionID: f.ActionID, Metadata: json.RawMessage(raw)},
	)
	h.logger.Info("action reported",
		"device_id", f.DeviceID,
		"action", f.ActionName,
		"outcome", outcome,
	)
}

func (h *Hub) handleDeviceError(ctx context.Context, f *frame) {
	metadata := map[string]any{"error": f.Error}
	if len(f.Context) > 0 {
		metadata["context"] = json.RawMessage(f.Context)
	}
	h.recorder.Record(ctx, f.DeviceID, store.EventDeviceError,
		fmt.Sprintf("Error: %s", f.Error),
		RecordOpts{Metadata: metadata},
	)
	h.logger.Warn("device reported error", "device_id", f.DeviceID, "error", f.Error)
}

// handleClose removes the link from the registry. Nothing to do when
// the link was never registered or was already displaced by a
// reconnect.
func (h *Hub) handleClose(link Link) {
	deviceID, removed := h.registry.RemoveLink(link)
	if !removed {
		return
	}
	h.reconcileDisconnect(context.Background(), deviceID)
}

// reconcileDisconnect persists the offline flag and records the
// disconnect event.
func (h *Hub) reconcileDisconnect(ctx context.Context, deviceID string) {
	name := deviceID
	if device, err := h.store.GetDevice(ctx, deviceID); err == nil {
		name = device.Name
	}

	if err := h.store.SetDeviceOffline(ctx, deviceID); err != nil {
		h.logger.Error("marking device offline", "device_id", deviceID, "error", err)
	}

	h.recorder.Record(ctx, deviceID, store.EventDeviceDisconnected,
		fmt.Sprintf("Device %q disconnected", name), RecordOpts{})

	h.logger.Info("device disconnected",
		"device_id", deviceID,
		"connected", h.registry.Len(),
	)
}
