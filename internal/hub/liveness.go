// ABOUTME: Liveness sweeper that disconnects devices with stale heartbeats
// ABOUTME: Removal is fenced on link identity so a reconnect is never clobbered

package hub

import (
	"context"
	"time"
)

// RunLiveness sweeps the registry at the given interval, disconnecting
// any device whose last heartbeat is older than timeout. Blocks until
// ctx is cancelled.
func (h *Hub) RunLiveness(ctx context.Context, interval, timeout time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	h.logger.Info("liveness sweeper started",
		"interval", interval,
		"timeout", timeout,
	)

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("liveness sweeper stopped")
			return
		case <-ticker.C:
			h.sweep(ctx, timeout)
		}
	}
}

// sweep closes and reconciles every connection whose heartbeat expired.
func (h *Hub) sweep(ctx context.Context, timeout time.Duration) {
	now := time.Now()
	for _, e := range h.registry.Snapshot() {
		stale := now.Sub(e.LastSeen)
		if stale <= timeout {
			continue
		}

		// Only reconcile if this exact link is still the registered
		// one; a device that reconnected since the snapshot keeps its
		// fresh connection.
		if !h.registry.RemoveIfLink(e.DeviceID, e.Link) {
			continue
		}

		h.logger.Warn("device heartbeat timeout",
			"device_id", e.DeviceID,
			"last_seen", e.LastSeen,
			"stale", stale,
		)

		e.Link.Close()
		h.reconcileDisconnect(ctx, e.DeviceID)
	}
}
