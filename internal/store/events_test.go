// ABOUTME: Tests for event log persistence
// ABOUTME: Covers append, filtered pagination, per-device listing, and retention cleanup

package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedEventDevice(t *testing.T, store *SQLiteStore, id string) {
	t.Helper()
	require.NoError(t, store.CreateDevice(context.Background(), testDevice(id, "Device "+id)))
}

func testEvent(id, deviceID string, eventType EventType, at time.Time) *EventLog {
	return &EventLog{
		ID:        id,
		DeviceID:  deviceID,
		Type:      eventType,
		Message:   "test event",
		CreatedAt: at,
	}
}

func TestStore_SaveEvent(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	seedEventDevice(t, store, "dev-1")

	metadata := `{"hostname":"garage-pi","ipAddress":"10.0.0.5"}`
	event := testEvent("evt-1", "dev-1", EventDeviceConnected, time.Now().UTC())
	event.Metadata = &metadata
	require.NoError(t, store.SaveEvent(ctx, event))

	events, err := store.ListEventsByDevice(ctx, "dev-1", 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, EventDeviceConnected, events[0].Type)
	require.NotNil(t, events[0].Metadata)
	assert.JSONEq(t, metadata, *events[0].Metadata)
	assert.Nil(t, events[0].TriggerID)
	assert.Nil(t, events[0].ActionID)
}

func TestStore_ListEvents_NewestFirst(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	seedEventDevice(t, store, "dev-1")

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		event := testEvent(fmt.Sprintf("evt-%d", i), "dev-1", EventTriggerFired, base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, store.SaveEvent(ctx, event))
	}

	page, err := store.ListEvents(ctx, EventFilter{})
	require.NoError(t, err)
	require.Len(t, page.Events, 3)
	assert.Equal(t, "evt-2", page.Events[0].ID)
	assert.Equal(t, "evt-0", page.Events[2].ID)
}

func TestStore_ListEvents_Filters(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	seedEventDevice(t, store, "dev-1")
	seedEventDevice(t, store, "dev-2")

	now := time.Now().UTC()
	require.NoError(t, store.SaveEvent(ctx, testEvent("evt-1", "dev-1", EventDeviceConnected, now)))
	require.NoError(t, store.SaveEvent(ctx, testEvent("evt-2", "dev-1", EventTriggerFired, now)))
	require.NoError(t, store.SaveEvent(ctx, testEvent("evt-3", "dev-2", EventTriggerFired, now)))

	byDevice, err := store.ListEvents(ctx, EventFilter{DeviceID: "dev-1"})
	require.NoError(t, err)
	assert.Equal(t, 2, byDevice.Total)

	byType, err := store.ListEvents(ctx, EventFilter{Type: EventTriggerFired})
	require.NoError(t, err)
	assert.Equal(t, 2, byType.Total)

	both, err := store.ListEvents(ctx, EventFilter{DeviceID: "dev-1", Type: EventTriggerFired})
	require.NoError(t, err)
	require.Equal(t, 1, both.Total)
	assert.Equal(t, "evt-2", both.Events[0].ID)
}

func TestStore_ListEvents_Pagination(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	seedEventDevice(t, store, "dev-1")

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 25; i++ {
		event := testEvent(fmt.Sprintf("evt-%02d", i), "dev-1", EventTriggerFired, base.Add(time.Duration(i)*time.Second))
		require.NoError(t, store.SaveEvent(ctx, event))
	}

	first, err := store.ListEvents(ctx, EventFilter{Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, first.Events, 10)
	assert.Equal(t, 25, first.Total)
	assert.Equal(t, 3, first.TotalPages)
	assert.Equal(t, "evt-24", first.Events[0].ID)

	last, err := store.ListEvents(ctx, EventFilter{Page: 3, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, last.Events, 5)
	assert.Equal(t, "evt-00", last.Events[4].ID)

	past, err := store.ListEvents(ctx, EventFilter{Page: 4, Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, past.Events)
}

func TestStore_ListEvents_DefaultsAndCaps(t *testing.T) {
	store := setupTestStore(t)

	page, err := store.ListEvents(context.Background(), EventFilter{Page: -1, Limit: 0})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 50, page.Limit)

	capped, err := store.ListEvents(context.Background(), EventFilter{Limit: 10000})
	require.NoError(t, err)
	assert.Equal(t, 500, capped.Limit)
}

func TestStore_ListEventsByDevice_RespectsLimit(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	seedEventDevice(t, store, "dev-1")

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		event := testEvent(fmt.Sprintf("evt-%d", i), "dev-1", EventActionExecuted, base.Add(time.Duration(i)*time.Second))
		require.NoError(t, store.SaveEvent(ctx, event))
	}

	events, err := store.ListEventsByDevice(ctx, "dev-1", 2)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "evt-4", events[0].ID)
}

func TestStore_DeleteEventsBefore(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	seedEventDevice(t, store, "dev-1")

	now := time.Now().UTC()
	require.NoError(t, store.SaveEvent(ctx, testEvent("evt-old", "dev-1", EventTriggerFired, now.Add(-48*time.Hour))))
	require.NoError(t, store.SaveEvent(ctx, testEvent("evt-new", "dev-1", EventTriggerFired, now)))

	deleted, err := store.DeleteEventsBefore(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	events, err := store.ListEventsByDevice(ctx, "dev-1", 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "evt-new", events[0].ID)
}

func TestStore_DeleteDevice_KeepsAuditTrail(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	seedEventDevice(t, store, "dev-1")

	require.NoError(t, store.SaveEvent(ctx, testEvent("evt-1", "dev-1", EventDeviceConnected, time.Now().UTC())))
	require.NoError(t, store.DeleteDevice(ctx, "dev-1"))

	// Event logs are not tied to the devices table; history outlives the device.
	events, err := store.ListEventsByDevice(ctx, "dev-1", 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
}
