// ABOUTME: Minimal fake device for E2E testing: connects via websocket, heartbeats, answers fire commands.
// ABOUTME: Usage: fake-device -id DEVICE_ID [-addr localhost:8080] [-hostname fake-pi]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"
)

const pingInterval = 20 * time.Second

type message struct {
	Type        string          `json:"type"`
	DeviceID    string          `json:"deviceId,omitempty"`
	Hostname    string          `json:"hostname,omitempty"`
	IPAddress   string          `json:"ipAddress,omitempty"`
	TriggerID   string          `json:"triggerId,omitempty"`
	TriggerName string          `json:"triggerName,omitempty"`
	ActionID    string          `json:"actionId,omitempty"`
	ActionName  string          `json:"actionName,omitempty"`
	Success     *bool           `json:"success,omitempty"`
	Message     string          `json:"message,omitempty"`
	Config      json.RawMessage `json:"config,omitempty"`
	Timestamp   string          `json:"timestamp,omitempty"`
}

func main() {
	addr := flag.String("addr", "localhost:8080", "gateway address")
	deviceID := flag.String("id", "", "device ID (required, must exist on the gateway)")
	hostname := flag.String("hostname", "fake-pi", "reported hostname")
	ipAddress := flag.String("ip", "127.0.0.1", "reported IP address")
	flag.Parse()

	if *deviceID == "" {
		fmt.Fprintln(os.Stderr, "fake-device: -id is required")
		flag.Usage()
		os.Exit(1)
	}

	if err := run(*addr, *deviceID, *hostname, *ipAddress); err != nil {
		log.Fatal(err)
	}
}

func run(addr, deviceID, hostname, ipAddress string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	u := url.URL{Scheme: "ws", Host: addr, Path: "/ws"}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("dialing %s: %w", u.String(), err)
	}
	defer conn.Close()

	send := func(m message) error {
		return conn.WriteJSON(m)
	}

	if err := send(message{
		Type:      "register",
		DeviceID:  deviceID,
		Hostname:  hostname,
		IPAddress: ipAddress,
	}); err != nil {
		return fmt.Errorf("registering: %w", err)
	}

	// Heartbeat loop
	go func() {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := send(message{Type: "ping", DeviceID: deviceID}); err != nil {
					log.Printf("ping error: %v", err)
					return
				}
			}
		}
	}()

	// Close the socket when interrupted so the read loop unblocks.
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		var msg message
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				return nil // graceful shutdown
			}
			return fmt.Errorf("reading message: %w", err)
		}

		switch msg.Type {
		case "config":
			log.Printf("received config: %s", msg.Config)
		case "config_update":
			log.Printf("received config update: %s", msg.Config)
		case "pong":
			log.Printf("pong at %s", msg.Timestamp)
		case "fire_trigger":
			log.Printf("fire command for trigger %s", msg.TriggerID)
			handleFire(send, deviceID, msg.TriggerID)
		case "error":
			log.Printf("server error: %s", msg.Message)
		default:
			log.Printf("unhandled message type %q", msg.Type)
		}
	}
}

// handleFire pretends to run the trigger: reports it fired, then
// reports one successful action.
func handleFire(send func(message) error, deviceID, triggerID string) {
	if err := send(message{
		Type:        "trigger_fired",
		DeviceID:    deviceID,
		TriggerID:   triggerID,
		TriggerName: "fake trigger",
	}); err != nil {
		log.Printf("reporting trigger_fired: %v", err)
		return
	}

	time.Sleep(100 * time.Millisecond)

	success := true
	if err := send(message{
		Type:       "action_executed",
		DeviceID:   deviceID,
		TriggerID:  triggerID,
		ActionID:   "fake-action",
		ActionName: "fake action",
		Success:    &success,
	}); err != nil {
		log.Printf("reporting action_executed: %v", err)
	}
}
