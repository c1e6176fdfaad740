// ABOUTME: Config snapshot builder for device trigger/action configuration
// ABOUTME: Always reads fresh from the store; pushes updates to connected devices

package hub

import (
	"context"
	"encoding/json"
	"fmt"
)

// Snapshot is the full configuration a device needs to operate: its
// enabled triggers and their ordered actions, with configs decoded back
// into JSON objects.
type Snapshot struct {
	DeviceID   string            `json:"deviceId"`
	DeviceName string            `json:"deviceName"`
	Triggers   []SnapshotTrigger `json:"triggers"`
}

// SnapshotTrigger is one enabled trigger within a snapshot.
type SnapshotTrigger struct {
	ID      string           `json:"id"`
	Name    string           `json:"name"`
	Type    string           `json:"type"`
	Config  json.RawMessage  `json:"config"`
	Actions []SnapshotAction `json:"actions"`
}

// SnapshotAction is one action step within a snapshot trigger.
type SnapshotAction struct {
	ID     string          `json:"id"`
	Name   string          `json:"name"`
	Type   string          `json:"type"`
	Config json.RawMessage `json:"config"`
	Order  int             `json:"order"`
}

// configFrame wraps a snapshot for the initial post-register push.
type configFrame struct {
	Type   string    `json:"type"`
	Config *Snapshot `json:"config"`
}

// BuildSnapshot assembles the current configuration for a device. The
// result is built fresh on every call so a device always receives what
// the store holds right now.
func (h *Hub) BuildSnapshot(ctx context.Context, deviceID string) (*Snapshot, error) {
	device, err := h.store.GetDevice(ctx, deviceID)
	if err != nil {
		return nil, fmt.Errorf("loading device: %w", err)
	}

	triggers, err := h.store.ListEnabledTriggers(ctx, deviceID)
	if err != nil {
		return nil, fmt.Errorf("listing triggers: %w", err)
	}

	snapshot := &Snapshot{
		DeviceID:   device.ID,
		DeviceName: device.Name,
		Triggers:   make([]SnapshotTrigger, 0, len(triggers)),
	}

	for _, trigger := range triggers {
		actions, err := h.store.ListActionsByTrigger(ctx, trigger.ID)
		if err != nil {
			return nil, fmt.Errorf("listing actions for trigger %s: %w", trigger.ID, err)
		}

		st := SnapshotTrigger{
			ID:      trigger.ID,
			Name:    trigger.Name,
			Type:    trigger.Type,
			Config:  rawConfig(trigger.Config),
			Actions: make([]SnapshotAction, 0, len(actions)),
		}
		for _, action := range actions {
			st.Actions = append(st.Actions, SnapshotAction{
				ID:     action.ID,
				Name:   action.Name,
				Type:   action.Type,
				Config: rawConfig(action.Config),
				Order:  action.Order,
			})
		}
		snapshot.Triggers = append(snapshot.Triggers, st)
	}

	return snapshot, nil
}

// rawConfig passes a stored config string through as raw JSON. A value
// that is not valid JSON is quoted so the snapshot still marshals.
func rawConfig(config string) json.RawMessage {
	if json.Valid([]byte(config)) {
		return json.RawMessage(config)
	}
	quoted, _ := json.Marshal(config)
	return quoted
}

// SendConfigUpdate pushes the current snapshot to a connected device.
// Devices that are offline get the fresh config on their next register,
// so a missing connection is not an error.
func (h *Hub) SendConfigUpdate(ctx context.Context, deviceID string) error {
	link, ok := h.registry.Get(deviceID)
	if !ok {
		return nil
	}

	snapshot, err := h.BuildSnapshot(ctx, deviceID)
	if err != nil {
		return fmt.Errorf("building snapshot: %w", err)
	}

	link.Enqueue(configFrame{Type: "config_update", Config: snapshot})
	h.logger.Info("config update pushed", "device_id", deviceID)
	return nil
}

// Broadcast enqueues a message on every connected device.
func (h *Hub) Broadcast(v any) {
	for _, e := range h.registry.Snapshot() {
		e.Link.Enqueue(v)
	}
}
