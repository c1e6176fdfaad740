// ABOUTME: Event recorder that appends audit entries to the store
// ABOUTME: Store failures are logged and swallowed so telemetry never kills a connection

package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/relaydeck/relaydeck/internal/store"
)

// Recorder writes event log entries. It deliberately never returns an
// error: a failed audit write must not disturb the connection that
// produced it.
type Recorder struct {
	store  store.Store
	logger *slog.Logger
}

// NewRecorder creates a Recorder backed by the given store.
func NewRecorder(s store.Store, logger *slog.Logger) *Recorder {
	return &Recorder{store: s, logger: logger}
}

// RecordOpts carries the optional fields of an event log entry.
type RecordOpts struct {
	TriggerID string
	ActionID  string
	// Metadata is marshaled to JSON and stored alongside the entry.
	Metadata any
}

// Record appends one event log entry.
func (r *Recorder) Record(ctx context.Context, deviceID string, eventType store.EventType, message string, opts RecordOpts) {
	event := &store.EventLog{
		ID:        uuid.New().String(),
		DeviceID:  deviceID,
		Type:      eventType,
		Message:   message,
		CreatedAt: time.Now().UTC(),
	}
	if opts.TriggerID != "" {
		event.TriggerID = &opts.TriggerID
	}
	if opts.ActionID != "" {
		event.ActionID = &opts.ActionID
	}
	if opts.Metadata != nil {
		data, err := json.Marshal(opts.Metadata)
		if err != nil {
			r.logger.Error("marshaling event metadata",
				"device_id", deviceID,
				"type", eventType,
				"error", err,
			)
		} else {
			metadata := string(data)
			event.Metadata = &metadata
		}
	}

	if err := r.store.SaveEvent(ctx, event); err != nil {
		r.logger.Error("saving event",
			"device_id", deviceID,
			"type", eventType,
			"error", err,
		)
	}
}
