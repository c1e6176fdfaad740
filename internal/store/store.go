// ABOUTME: Store interface and data types for relaydeck persistence
// ABOUTME: Defines Device, Group, Trigger, Action, EventLog structs and the Store interface

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// Trigger type constants
const (
	TriggerTypeGPIOInput = "gpio_input"
	TriggerTypeSchedule  = "schedule"
	TriggerTypeAPICall   = "api_call"
)

// Action type constants
const (
	ActionTypeGPIOOutput  = "gpio_output"
	ActionTypeHTTPRequest = "http_request"
	ActionTypeDelay       = "delay"
)

// EventType categorizes an event log entry
type EventType string

const (
	EventDeviceConnected    EventType = "device_connected"
	EventDeviceDisconnected EventType = "device_disconnected"
	EventTriggerFired       EventType = "trigger_fired"
	EventActionExecuted     EventType = "action_executed"
	EventDeviceError        EventType = "device_error"
)

// Device represents a registered hardware agent (embedded controller)
type Device struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Hostname    string     `json:"hostname,omitempty"`
	IPAddress   string     `json:"ipAddress,omitempty"`
	GroupID     *string    `json:"groupId"`
	IsOnline    bool       `json:"isOnline"`
	LastSeen    *time.Time `json:"lastSeen"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// Group represents a named collection of devices
type Group struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Color       string    `json:"color,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Trigger represents a named condition configured on a device.
// Config holds the trigger's configuration as a serialized JSON object.
type Trigger struct {
	ID          string    `json:"id"`
	DeviceID    string    `json:"deviceId"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Type        string    `json:"type"`
	Config      string    `json:"config"`
	IsEnabled   bool      `json:"isEnabled"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Action represents one step run when its trigger fires.
// Actions execute in ascending Order within a trigger.
type Action struct {
	ID        string    `json:"id"`
	TriggerID string    `json:"triggerId"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	Config    string    `json:"config"`
	Order     int       `json:"order"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// EventLog is an immutable audit record of device activity.
// Entries are append-only; the gateway never mutates or deletes them
// outside of bulk retention cleanup.
type EventLog struct {
	ID        string    `json:"id"`
	DeviceID  string    `json:"deviceId"`
	TriggerID *string   `json:"triggerId"`
	ActionID  *string   `json:"actionId"`
	Type      EventType `json:"type"`
	Message   string    `json:"message"`
	Metadata  *string   `json:"metadata"`
	CreatedAt time.Time `json:"createdAt"`
}

// EventFilter specifies the parameters for listing event log entries.
type EventFilter struct {
	DeviceID string    // Optional: only events for this device
	Type     EventType // Optional: only events of this kind
	Page     int       // 1-based, defaults to 1
	Limit    int       // Defaults to 50, capped at 500
}

// EventPage contains one page of event log entries plus pagination info.
type EventPage struct {
	Events     []*EventLog
	Page       int
	Limit      int
	Total      int
	TotalPages int
}

// Store defines the interface for device/trigger/action/event persistence
type Store interface {
	// Devices
	CreateDevice(ctx context.Context, device *Device) error
	GetDevice(ctx context.Context, id string) (*Device, error)
	ListDevices(ctx context.Context) ([]*Device, error)
	UpdateDevice(ctx context.Context, device *Device) error
	DeleteDevice(ctx context.Context, id string) error

	// Online-status reconciliation. Both writes are idempotent: the
	// connection registry, not this flag, is the source of truth for
	// "connected right now".
	SetDeviceOnline(ctx context.Context, id, hostname, ipAddress string) error
	SetDeviceOffline(ctx context.Context, id string) error

	// Groups
	CreateGroup(ctx context.Context, group *Group) error
	GetGroup(ctx context.Context, id string) (*Group, error)
	ListGroups(ctx context.Context) ([]*Group, error)
	UpdateGroup(ctx context.Context, group *Group) error
	DeleteGroup(ctx context.Context, id string) error
	DetachGroupDevices(ctx context.Context, groupID string) error

	// Triggers
	CreateTrigger(ctx context.Context, trigger *Trigger) error
	GetTrigger(ctx context.Context, id string) (*Trigger, error)
	ListTriggers(ctx context.Context) ([]*Trigger, error)
	ListTriggersByDevice(ctx context.Context, deviceID string) ([]*Trigger, error)
	ListEnabledTriggers(ctx context.Context, deviceID string) ([]*Trigger, error)
	UpdateTrigger(ctx context.Context, trigger *Trigger) error
	DeleteTrigger(ctx context.Context, id string) error

	// Actions
	CreateAction(ctx context.Context, action *Action) error
	GetAction(ctx context.Context, id string) (*Action, error)
	ListActions(ctx context.Context) ([]*Action, error)
	ListActionsByTrigger(ctx context.Context, triggerID string) ([]*Action, error)
	UpdateAction(ctx context.Context, action *Action) error
	DeleteAction(ctx context.Context, id string) error
	ReorderActions(ctx context.Context, triggerID string, actionIDs []string) error

	// Event log (append-only)
	SaveEvent(ctx context.Context, event *EventLog) error
	ListEvents(ctx context.Context, filter EventFilter) (*EventPage, error)
	ListEventsByDevice(ctx context.Context, deviceID string, limit int) ([]*EventLog, error)
	DeleteEventsBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// Close releases any resources held by the store
	Close() error
}
