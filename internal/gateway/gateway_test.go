// ABOUTME: Tests for gateway startup and shutdown
// ABOUTME: Exercises Run lifecycle against an ephemeral port and temp database

package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaydeck/relaydeck/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Server: config.ServerConfig{
			HTTPAddr: "127.0.0.1:0",
		},
		Database: config.DatabaseConfig{
			Path: filepath.Join(t.TempDir(), "test.db"),
		},
		Devices: config.DevicesConfig{
			SweepInterval:    30 * time.Second,
			HeartbeatTimeout: 60 * time.Second,
		},
	}
}

func TestNew(t *testing.T) {
	gw, err := New(testConfig(t), slog.Default())
	require.NoError(t, err)
	require.NotNil(t, gw.Hub())

	require.NoError(t, gw.store.Close())
}

func TestRun_StopsOnCancel(t *testing.T) {
	gw, err := New(testConfig(t), slog.Default())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- gw.Run(ctx)
	}()

	// Give the server a moment to start before cancelling
	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("gateway did not shut down after cancellation")
	}
}

func TestRun_ServesHealthEndpoint(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.HTTPAddr = "127.0.0.1:18472"

	gw, err := New(cfg, slog.Default())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- gw.Run(ctx)
	}()

	url := fmt.Sprintf("http://%s/api/health", cfg.Server.HTTPAddr)
	var resp *http.Response
	for i := 0; i < 50; i++ {
		resp, err = http.Get(url)
		if err == nil {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}
	require.NoError(t, err, "health endpoint never came up")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("gateway did not shut down")
	}
}
