// ABOUTME: Tests for the connection registry
// ABOUTME: Validates registration, displacement, heartbeat touch, and link-fenced removal

package hub

import (
	"log/slog"
	"sync"
	"testing"
	"time"
)

// fakeLink records enqueued frames for assertions.
type fakeLink struct {
	mu     sync.Mutex
	frames []any
	closed bool
	reject bool
}

func (l *fakeLink) Enqueue(v any) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed || l.reject {
		return false
	}
	l.frames = append(l.frames, v)
	return true
}

func (l *fakeLink) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
}

func (l *fakeLink) isClosed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

func (l *fakeLink) sent() []any {
	l.mu.Lock()
	defer l.mu.Unlock()
	result := make([]any, len(l.frames))
	copy(result, l.frames)
	return result
}

func newTestRegistry() *Registry {
	return NewRegistry(slog.Default())
}

func TestRegistryPut(t *testing.T) {
	t.Run("registers a new device", func(t *testing.T) {
		r := newTestRegistry()
		link := &fakeLink{}

		displaced := r.Put("dev-1", link)
		if displaced != nil {
			t.Fatal("expected no displaced link for first registration")
		}
		if !r.IsConnected("dev-1") {
			t.Error("device should be connected after Put")
		}
		if r.Len() != 1 {
			t.Errorf("expected 1 connection, got %d", r.Len())
		}
	})

	t.Run("reconnect displaces the old link", func(t *testing.T) {
		r := newTestRegistry()
		oldLink := &fakeLink{}
		newLink := &fakeLink{}

		r.Put("dev-1", oldLink)
		displaced := r.Put("dev-1", newLink)

		if displaced != oldLink {
			t.Fatal("expected the old link to be displaced")
		}
		if r.Len() != 1 {
			t.Errorf("expected 1 connection after reconnect, got %d", r.Len())
		}
		got, ok := r.Get("dev-1")
		if !ok || got != newLink {
			t.Error("device should resolve to the new link")
		}
	})

	t.Run("displaced link no longer removable", func(t *testing.T) {
		r := newTestRegistry()
		oldLink := &fakeLink{}
		newLink := &fakeLink{}

		r.Put("dev-1", oldLink)
		r.Put("dev-1", newLink)

		// Stale transport close of the old link must not unregister
		// the new connection.
		if _, removed := r.RemoveLink(oldLink); removed {
			t.Error("displaced link should find nothing to remove")
		}
		if !r.IsConnected("dev-1") {
			t.Error("device should remain connected")
		}
	})
}

func TestRegistryTouch(t *testing.T) {
	r := newTestRegistry()
	base := time.Now()
	r.nowFunc = func() time.Time { return base }

	r.Put("dev-1", &fakeLink{})

	r.nowFunc = func() time.Time { return base.Add(45 * time.Second) }
	if !r.Touch("dev-1") {
		t.Fatal("touch should succeed for a registered device")
	}

	entries := r.Snapshot()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if !entries[0].LastSeen.Equal(base.Add(45 * time.Second)) {
		t.Errorf("lastSeen not refreshed: %v", entries[0].LastSeen)
	}

	if r.Touch("unknown") {
		t.Error("touch for unknown device should return false")
	}
}

func TestRegistryRemoveLink(t *testing.T) {
	r := newTestRegistry()
	link := &fakeLink{}
	r.Put("dev-1", link)

	deviceID, removed := r.RemoveLink(link)
	if !removed || deviceID != "dev-1" {
		t.Fatalf("expected removal of dev-1, got (%q, %v)", deviceID, removed)
	}
	if r.IsConnected("dev-1") {
		t.Error("device should be gone after RemoveLink")
	}

	if _, removed := r.RemoveLink(link); removed {
		t.Error("second removal should find nothing")
	}
}

func TestRegistryRemoveIfLink(t *testing.T) {
	t.Run("removes matching link", func(t *testing.T) {
		r := newTestRegistry()
		link := &fakeLink{}
		r.Put("dev-1", link)

		if !r.RemoveIfLink("dev-1", link) {
			t.Fatal("expected removal with matching link")
		}
		if r.IsConnected("dev-1") {
			t.Error("device should be gone")
		}
	})

	t.Run("leaves a newer link alone", func(t *testing.T) {
		r := newTestRegistry()
		staleLink := &fakeLink{}
		r.Put("dev-1", staleLink)
		r.Put("dev-1", &fakeLink{})

		if r.RemoveIfLink("dev-1", staleLink) {
			t.Fatal("stale link must not remove the new registration")
		}
		if !r.IsConnected("dev-1") {
			t.Error("device should remain connected")
		}
	})
}

func TestRegistrySnapshot(t *testing.T) {
	r := newTestRegistry()
	r.Put("dev-1", &fakeLink{})
	r.Put("dev-2", &fakeLink{})

	entries := r.Snapshot()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}

	seen := map[string]bool{}
	for _, e := range entries {
		seen[e.DeviceID] = true
		if e.Link == nil {
			t.Errorf("entry %s has nil link", e.DeviceID)
		}
	}
	if !seen["dev-1"] || !seen["dev-2"] {
		t.Errorf("snapshot missing devices: %v", seen)
	}
}
