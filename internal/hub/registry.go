// ABOUTME: Connection registry mapping device IDs to live websocket links
// ABOUTME: Single source of truth for "connected right now" plus heartbeat timestamps

package hub

import (
	"log/slog"
	"sync"
	"time"
)

// Entry is a point-in-time view of one registered connection.
type Entry struct {
	DeviceID string
	Link     Link
	LastSeen time.Time
}

type entry struct {
	link     Link
	lastSeen time.Time
}

// Registry tracks which devices are currently connected. All maps are
// guarded by a single mutex so the forward (device -> link) and reverse
// (link -> device) views never disagree.
type Registry struct {
	mu      sync.Mutex
	byID    map[string]*entry
	byLink  map[Link]string
	logger  *slog.Logger
	nowFunc func() time.Time
}

// NewRegistry creates an empty connection registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		byID:    make(map[string]*entry),
		byLink:  make(map[Link]string),
		logger:  logger,
		nowFunc: time.Now,
	}
}

// Put registers a link for a device, replacing any existing registration.
// If the device already had a different link, the displaced link is
// returned so the caller can close it; the registry itself never closes
// connections.
func (r *Registry) Put(deviceID string, link Link) Link {
	r.mu.Lock()
	defer r.mu.Unlock()

	var displaced Link
	if old, exists := r.byID[deviceID]; exists && old.link != link {
		displaced = old.link
		delete(r.byLink, old.link)
		r.logger.Info("device reconnected, displacing previous connection",
			"device_id", deviceID,
		)
	}

	r.byID[deviceID] = &entry{link: link, lastSeen: r.nowFunc()}
	r.byLink[link] = deviceID
	return displaced
}

// Touch refreshes a device's heartbeat timestamp. Returns false when the
// device is not registered.
func (r *Registry) Touch(deviceID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, exists := r.byID[deviceID]
	if !exists {
		return false
	}
	e.lastSeen = r.nowFunc()
	return true
}

// Get returns the live link for a device, if any.
func (r *Registry) Get(deviceID string) (Link, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, exists := r.byID[deviceID]
	if !exists {
		return nil, false
	}
	return e.link, true
}

// IsConnected reports whether the device has a registered link.
func (r *Registry) IsConnected(deviceID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, exists := r.byID[deviceID]
	return exists
}

// RemoveLink unregisters whatever device the given link is registered
// for. Returns the device ID and true when a registration was removed.
// A link that was already displaced by a reconnect finds nothing here,
// which is what prevents a stale close from marking the new connection
// offline.
func (r *Registry) RemoveLink(link Link) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	deviceID, exists := r.byLink[link]
	if !exists {
		return "", false
	}
	delete(r.byLink, link)
	delete(r.byID, deviceID)
	return deviceID, true
}

// RemoveIfLink unregisters a device only if it is still registered with
// the given link. Used by the liveness sweeper so that a device that
// reconnected between snapshot and removal is left alone.
func (r *Registry) RemoveIfLink(deviceID string, link Link) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, exists := r.byID[deviceID]
	if !exists || e.link != link {
		return false
	}
	delete(r.byID, deviceID)
	delete(r.byLink, link)
	return true
}

// Snapshot returns a copy of every current registration.
func (r *Registry) Snapshot() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries := make([]Entry, 0, len(r.byID))
	for id, e := range r.byID {
		entries = append(entries, Entry{
			DeviceID: id,
			Link:     e.link,
			LastSeen: e.lastSeen,
		})
	}
	return entries
}

// Len returns the number of connected devices.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}
