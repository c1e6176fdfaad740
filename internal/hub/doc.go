// Package hub manages websocket connections from relaydeck devices.
//
// # Overview
//
// The hub is the realtime core of the gateway. It accepts device
// connections, tracks which devices are online, processes protocol
// frames, pushes configuration, dispatches remote trigger commands, and
// records every notable event to the audit log.
//
// # Protocol
//
// Devices speak small JSON text frames over a single websocket:
//
//	-> {"type":"register","deviceId":"...","hostname":"...","ipAddress":"..."}
//	<- {"type":"config","config":{...}}
//
//	-> {"type":"ping","deviceId":"..."}
//	<- {"type":"pong","timestamp":"2026-01-02T15:04:05Z"}
//
//	-> {"type":"trigger_fired","deviceId":"...","triggerId":"...","triggerName":"..."}
//	-> {"type":"action_executed","deviceId":"...","actionId":"...","success":true}
//	-> {"type":"error","deviceId":"...","error":"..."}
//
// The server can push at any time:
//
//	<- {"type":"config_update","config":{...}}
//	<- {"type":"fire_trigger","triggerId":"..."}
//
// Protocol errors are answered with {"type":"error","message":"..."};
// only a register for an unknown device closes the connection.
//
// # Registry
//
// The Registry maps device IDs to live links and is the single source
// of truth for "connected right now". The is_online column in the store
// is a persisted reflection of it, reconciled on register, disconnect,
// and heartbeat timeout. A device that reconnects displaces its
// previous link; the displaced link is closed and its eventual
// transport close finds nothing left to reconcile.
//
// # Liveness
//
// Devices heartbeat with ping frames. A sweeper runs at a configured
// interval and disconnects any device whose last heartbeat is older
// than the configured timeout. Removal is fenced on link identity so a
// sweep never tears down a connection that arrived after its snapshot.
//
// # Writes
//
// Each connection has a buffered outbound queue drained by a dedicated
// write pump. Enqueue never blocks: a full queue drops the frame, and
// enqueue after close is safely reported as not sent.
//
// # Thread Safety
//
// Registry operations are mutex-guarded. Frames on one connection are
// processed sequentially by that connection's read loop; different
// connections are handled concurrently.
package hub
