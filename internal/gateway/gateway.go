// ABOUTME: Gateway orchestrator wiring the store, hub, and HTTP server together
// ABOUTME: Manages startup, the liveness sweeper, and graceful shutdown

package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/relaydeck/relaydeck/internal/api"
	"github.com/relaydeck/relaydeck/internal/config"
	"github.com/relaydeck/relaydeck/internal/hub"
	"github.com/relaydeck/relaydeck/internal/store"
)

// Gateway orchestrates the relaydeck server components: the SQLite
// store, the device websocket hub, and the management HTTP API.
type Gateway struct {
	config     *config.Config
	store      store.Store
	hub        *hub.Hub
	httpServer *http.Server
	logger     *slog.Logger
}

// initStore creates the store from config, honoring the
// RELAYDECK_DB_PATH override.
func initStore(cfg *config.Config) (store.Store, error) {
	dbPath := cfg.Database.Path
	if envPath := os.Getenv("RELAYDECK_DB_PATH"); envPath != "" {
		dbPath = envPath
	}

	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}
	return s, nil
}

// New creates a Gateway from configuration.
func New(cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	s, err := initStore(cfg)
	if err != nil {
		return nil, err
	}

	h := hub.New(s, logger)

	mux := http.NewServeMux()
	apiServer := api.NewServer(s, h, logger)
	apiServer.RegisterRoutes(mux)

	return &Gateway{
		config: cfg,
		store:  s,
		hub:    h,
		httpServer: &http.Server{
			Addr:              cfg.Server.HTTPAddr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger,
	}, nil
}

// Hub exposes the websocket hub, mainly for the health subcommand and
// tests.
func (g *Gateway) Hub() *hub.Hub {
	return g.hub
}

// Run starts the HTTP server and the liveness sweeper, then blocks
// until ctx is cancelled or the server fails.
func (g *Gateway) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", g.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", g.httpServer.Addr, err)
	}

	sweepCtx, stopSweeper := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		g.hub.RunLiveness(sweepCtx, g.config.Devices.SweepInterval, g.config.Devices.HeartbeatTimeout)
	}()

	errCh := make(chan error, 1)
	go func() {
		g.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := g.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	serverErr := g.waitForShutdownSignal(ctx, errCh)

	stopSweeper()
	wg.Wait()

	shutdownErr := g.gracefulShutdown()

	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// waitForShutdownSignal waits for context cancellation or server error.
func (g *Gateway) waitForShutdownSignal(ctx context.Context, errCh chan error) error {
	select {
	case <-ctx.Done():
		g.logger.Info("context canceled, initiating shutdown")
		return nil
	case err := <-errCh:
		g.logger.Error("server error", "error", err)
		return err
	}
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
// Uses context.Background() intentionally since the original context is
// already canceled.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return g.Shutdown(ctx)
}

// Shutdown stops the HTTP server, disconnects every device, and closes
// the store.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway")

	var firstErr error
	if err := g.httpServer.Shutdown(ctx); err != nil {
		g.logger.Error("shutting down HTTP server", "error", err)
		firstErr = err
	}

	for _, e := range g.hub.Registry().Snapshot() {
		e.Link.Close()
	}

	if err := g.store.Close(); err != nil {
		g.logger.Error("closing store", "error", err)
		if firstErr == nil {
			firstErr = err
		}
	}

	g.logger.Info("gateway stopped")
	return firstErr
}
