// ABOUTME: HTTP tests for the management API
// ABOUTME: Runs handlers against a real SQLite store and hub via httptest

package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaydeck/relaydeck/internal/hub"
	"github.com/relaydeck/relaydeck/internal/store"
)

// fakeLink is a hub.Link capturing enqueued frames.
type fakeLink struct {
	mu     sync.Mutex
	frames []any
	closed bool
}

func (l *fakeLink) Enqueue(v any) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
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

func (l *fakeLink) sent() []any {
	l.mu.Lock()
	defer l.mu.Unlock()
	result := make([]any, len(l.frames))
	copy(result, l.frames)
	return result
}

type testEnv struct {
	mux   *http.ServeMux
	store *store.SQLiteStore
	hub   *hub.Hub
}

func setupTestServer(t *testing.T) *testEnv {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := store.NewSQLiteStore(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() {
		s.Close()
	})

	h := hub.New(s, slog.Default())
	server := NewServer(s, h, slog.Default())
	mux := http.NewServeMux()
	server.RegisterRoutes(mux)

	return &testEnv{mux: mux, store: s, hub: h}
}

// do runs one request through the mux and decodes the JSON response
// into out when it is non-nil.
func (e *testEnv) do(t *testing.T, method, path, body string, out any) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	rec := httptest.NewRecorder()
	e.mux.ServeHTTP(rec, req)

	if out != nil && rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
	}
	return rec
}

func (e *testEnv) createDevice(t *testing.T, name string) *store.Device {
	t.Helper()
	var device store.Device
	rec := e.do(t, http.MethodPost, "/api/devices", `{"name":"`+name+`"}`, &device)
	require.Equal(t, http.StatusCreated, rec.Code)
	return &device
}

func (e *testEnv) createTrigger(t *testing.T, deviceID string) *store.Trigger {
	t.Helper()
	var trigger store.Trigger
	body := `{"deviceId":"` + deviceID + `","name":"Door opened","type":"gpio_input","config":{"pin":17}}`
	rec := e.do(t, http.MethodPost, "/api/triggers", body, &trigger)
	require.Equal(t, http.StatusCreated, rec.Code)
	return &trigger
}

func TestAPI_Health(t *testing.T) {
	env := setupTestServer(t)

	var resp map[string]any
	rec := env.do(t, http.MethodGet, "/api/health", "", &resp)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", resp["status"])
	assert.Equal(t, float64(0), resp["connectedDevices"])
}

func TestAPI_DeviceLifecycle(t *testing.T) {
	env := setupTestServer(t)

	device := env.createDevice(t, "Garage Door")
	assert.NotEmpty(t, device.ID)
	assert.False(t, device.IsOnline)

	var fetched store.Device
	rec := env.do(t, http.MethodGet, "/api/devices/"+device.ID, "", &fetched)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Garage Door", fetched.Name)

	var updated store.Device
	rec = env.do(t, http.MethodPut, "/api/devices/"+device.ID, `{"name":"Garage Door v2","hostname":"garage-pi"}`, &updated)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Garage Door v2", updated.Name)
	assert.Equal(t, "garage-pi", updated.Hostname)

	var devices []store.Device
	rec = env.do(t, http.MethodGet, "/api/devices", "", &devices)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, devices, 1)

	rec = env.do(t, http.MethodDelete, "/api/devices/"+device.ID, "", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/devices/"+device.ID, "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_CreateDevice_RequiresName(t *testing.T) {
	env := setupTestServer(t)

	rec := env.do(t, http.MethodPost, "/api/devices", `{"description":"no name"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_DeviceHeartbeat(t *testing.T) {
	env := setupTestServer(t)
	device := env.createDevice(t, "Sensor")

	var resp struct {
		Status string        `json:"status"`
		Device *store.Device `json:"device"`
	}
	rec := env.do(t, http.MethodPost, "/api/devices/"+device.ID+"/heartbeat", `{"hostname":"pi","ipAddress":"10.0.0.9"}`, &resp)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Device.IsOnline)
	assert.Equal(t, "pi", resp.Device.Hostname)

	rec = env.do(t, http.MethodPost, "/api/devices/ghost/heartbeat", `{}`, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_DeviceConfig(t *testing.T) {
	env := setupTestServer(t)
	device := env.createDevice(t, "Controller")
	env.createTrigger(t, device.ID)

	var config map[string]any
	rec := env.do(t, http.MethodGet, "/api/devices/"+device.ID+"/config", "", &config)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, device.ID, config["deviceId"])
	assert.Equal(t, "Controller", config["deviceName"])
	assert.Len(t, config["triggers"], 1)
}

func TestAPI_GroupDeleteDetachesDevices(t *testing.T) {
	env := setupTestServer(t)

	var group store.Group
	rec := env.do(t, http.MethodPost, "/api/groups", `{"name":"Greenhouse","color":"#22c55e"}`, &group)
	require.Equal(t, http.StatusCreated, rec.Code)

	var device store.Device
	rec = env.do(t, http.MethodPost, "/api/devices", `{"name":"Fan","groupId":"`+group.ID+`"}`, &device)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, device.GroupID)

	rec = env.do(t, http.MethodDelete, "/api/groups/"+group.ID, "", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	var fetched store.Device
	rec = env.do(t, http.MethodGet, "/api/devices/"+device.ID, "", &fetched)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, fetched.GroupID)
}

func TestAPI_CreateTrigger_Validation(t *testing.T) {
	env := setupTestServer(t)
	device := env.createDevice(t, "Sensor")

	rec := env.do(t, http.MethodPost, "/api/triggers", `{"deviceId":"`+device.ID+`","name":"Bad","type":"telepathy"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/triggers", `{"deviceId":"ghost","name":"Orphan","type":"gpio_input"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_FireTrigger_NotFound(t *testing.T) {
	env := setupTestServer(t)

	rec := env.do(t, http.MethodPost, "/api/triggers/ghost/fire", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_FireTrigger_DeviceNotConnected(t *testing.T) {
	env := setupTestServer(t)
	device := env.createDevice(t, "Sensor")
	trigger := env.createTrigger(t, device.ID)

	rec := env.do(t, http.MethodPost, "/api/triggers/"+trigger.ID+"/fire", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	// No audit event without a successful dispatch
	page, err := env.store.ListEvents(context.Background(), store.EventFilter{Type: store.EventTriggerFired})
	require.NoError(t, err)
	assert.Empty(t, page.Events)
}

func TestAPI_FireTrigger_Connected(t *testing.T) {
	env := setupTestServer(t)
	device := env.createDevice(t, "Sensor")
	trigger := env.createTrigger(t, device.ID)

	link := &fakeLink{}
	env.hub.Registry().Put(device.ID, link)

	var resp map[string]any
	rec := env.do(t, http.MethodPost, "/api/triggers/"+trigger.ID+"/fire", "", &resp)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "fired", resp["status"])
	assert.Equal(t, true, resp["sent"])

	// The device received the command
	frames := link.sent()
	require.NotEmpty(t, frames)
	data, err := json.Marshal(frames[len(frames)-1])
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"fire_trigger","triggerId":"`+trigger.ID+`"}`, string(data))

	// The manual dispatch is audited
	page, err := env.store.ListEvents(context.Background(), store.EventFilter{Type: store.EventTriggerFired})
	require.NoError(t, err)
	require.Len(t, page.Events, 1)
	assert.Contains(t, page.Events[0].Message, "manually")
	require.NotNil(t, page.Events[0].Metadata)
	assert.JSONEq(t, `{"manual":true}`, *page.Events[0].Metadata)
}

func TestAPI_TriggerMutationPushesConfig(t *testing.T) {
	env := setupTestServer(t)
	device := env.createDevice(t, "Sensor")

	link := &fakeLink{}
	env.hub.Registry().Put(device.ID, link)

	env.createTrigger(t, device.ID)

	frames := link.sent()
	require.Len(t, frames, 1)
	data, err := json.Marshal(frames[0])
	require.NoError(t, err)

	var frame map[string]any
	require.NoError(t, json.Unmarshal(data, &frame))
	assert.Equal(t, "config_update", frame["type"])
}

func TestAPI_ReorderActions(t *testing.T) {
	env := setupTestServer(t)
	device := env.createDevice(t, "Sensor")
	trigger := env.createTrigger(t, device.ID)

	var first, second store.Action
	rec := env.do(t, http.MethodPost, "/api/actions", `{"triggerId":"`+trigger.ID+`","name":"Light","type":"gpio_output","config":{"pin":22,"state":"high"},"order":0}`, &first)
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = env.do(t, http.MethodPost, "/api/actions", `{"triggerId":"`+trigger.ID+`","name":"Wait","type":"delay","config":{"duration":500},"order":1}`, &second)
	require.Equal(t, http.StatusCreated, rec.Code)

	var actions []store.Action
	rec = env.do(t, http.MethodPut, "/api/actions/trigger/"+trigger.ID+"/reorder",
		`{"actionIds":["`+second.ID+`","`+first.ID+`"]}`, &actions)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, actions, 2)
	assert.Equal(t, second.ID, actions[0].ID)
	assert.Equal(t, 0, actions[0].Order)
	assert.Equal(t, first.ID, actions[1].ID)
}

func TestAPI_Events(t *testing.T) {
	env := setupTestServer(t)
	device := env.createDevice(t, "Sensor")

	var event store.EventLog
	body := `{"deviceId":"` + device.ID + `","type":"device_error","message":"GPIO read failed","metadata":{"pin":17}}`
	rec := env.do(t, http.MethodPost, "/api/events", body, &event)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, store.EventDeviceError, event.Type)

	var listed struct {
		Events     []*store.EventLog `json:"events"`
		Pagination paginationInfo    `json:"pagination"`
	}
	rec = env.do(t, http.MethodGet, "/api/events?deviceId="+device.ID, "", &listed)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, listed.Events, 1)
	assert.Equal(t, 1, listed.Pagination.Total)
	assert.Equal(t, 1, listed.Pagination.Page)

	var deviceEvents []*store.EventLog
	rec = env.do(t, http.MethodGet, "/api/events/device/"+device.ID, "", &deviceEvents)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, deviceEvents, 1)

	rec = env.do(t, http.MethodPost, "/api/events", `{"deviceId":"`+device.ID+`","type":"mystery","message":"?"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_EventCleanup(t *testing.T) {
	env := setupTestServer(t)
	device := env.createDevice(t, "Sensor")

	old := &store.EventLog{
		ID:        "evt-old",
		DeviceID:  device.ID,
		Type:      store.EventTriggerFired,
		Message:   "ancient history",
		CreatedAt: time.Now().UTC().AddDate(0, 0, -60),
	}
	require.NoError(t, env.store.SaveEvent(context.Background(), old))

	var resp cleanupResponse
	rec := env.do(t, http.MethodDelete, "/api/events/cleanup?days=30", "", &resp)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(1), resp.Deleted)
}
