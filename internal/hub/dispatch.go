// ABOUTME: Remote trigger dispatch to connected devices
// ABOUTME: Fire-and-forget enqueue; success means queued, not executed

package hub

import (
	"context"
	"errors"
	"fmt"

	"github.com/relaydeck/relaydeck/internal/store"
)

// ErrNotConnected means the target device has no live connection.
var ErrNotConnected = errors.New("device not connected")

// fireFrame tells a device to run one of its triggers as if the
// trigger's own condition had fired.
type fireFrame struct {
	Type      string `json:"type"`
	TriggerID string `json:"triggerId"`
}

// FireTrigger asks a connected device to execute a trigger. The device
// reports back through the normal telemetry frames; there is no
// synchronous result.
func (h *Hub) FireTrigger(deviceID, triggerID string) error {
	link, ok := h.registry.Get(deviceID)
	if !ok {
		return ErrNotConnected
	}

	if !link.Enqueue(fireFrame{Type: "fire_trigger", TriggerID: triggerID}) {
		return fmt.Errorf("enqueueing fire_trigger for device %s: %w", deviceID, ErrNotConnected)
	}

	h.logger.Info("trigger dispatched", "device_id", deviceID, "trigger_id", triggerID)
	return nil
}

// RecordManualFire writes the audit entry for an operator-initiated
// dispatch. Called by the API only after FireTrigger succeeded.
func (h *Hub) RecordManualFire(ctx context.Context, trigger *store.Trigger) {
	h.recorder.Record(ctx, trigger.DeviceID, store.EventTriggerFired,
		fmt.Sprintf("Trigger %q fired manually", trigger.Name),
		RecordOpts{TriggerID: trigger.ID, Metadata: map[string]bool{"manual": true}},
	)
}
