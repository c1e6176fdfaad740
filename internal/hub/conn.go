// ABOUTME: Websocket link abstraction with a buffered outbound queue
// ABOUTME: Serializes all writes through one goroutine per connection

package hub

import (
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// writeWait is how long a single frame write may block before the
	// connection is considered dead.
	writeWait = 10 * time.Second

	// sendBufferSize is the outbound queue depth per connection. A full
	// queue drops the frame rather than blocking the hub.
	sendBufferSize = 64
)

// Link is one live device connection. Enqueue is non-blocking and safe
// to call concurrently with Close.
type Link interface {
	// Enqueue marshals v and queues it for delivery. Returns false when
	// the link is closed or its outbound queue is full.
	Enqueue(v any) bool

	// Close shuts the link down. Idempotent.
	Close()
}

// wsLink wraps a websocket connection with a buffered send channel so
// that handler goroutines never write to the socket directly.
type wsLink struct {
	conn   *websocket.Conn
	send   chan []byte
	logger *slog.Logger

	closeOnce sync.Once
	closed    atomic.Bool
}

func newWSLink(conn *websocket.Conn, logger *slog.Logger) *wsLink {
	return &wsLink{
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		logger: logger,
	}
}

// Enqueue marshals v and queues it without blocking. There is an
// unavoidable race between the closed check and the channel send, so a
// send on the closed channel is recovered and reported as not sent.
func (l *wsLink) Enqueue(v any) (sent bool) {
	defer func() {
		if r := recover(); r != nil {
			sent = false
		}
	}()

	if l.closed.Load() {
		return false
	}

	data, err := json.Marshal(v)
	if err != nil {
		l.logger.Error("marshaling outbound frame", "error", err)
		return false
	}

	select {
	case l.send <- data:
		return true
	default:
		l.logger.Warn("outbound queue full, dropping frame")
		return false
	}
}

// Close closes the send channel exactly once. The write pump notices
// and closes the underlying socket, which in turn unblocks the read
// loop.
func (l *wsLink) Close() {
	l.closeOnce.Do(func() {
		l.closed.Store(true)
		close(l.send)
	})
}

// writePump drains the send channel onto the socket. It owns the socket
// for writing; nothing else may call WriteMessage.
func (l *wsLink) writePump() {
	defer func() {
		_ = l.conn.Close()
	}()

	for data := range l.send {
		_ = l.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := l.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			l.logger.Debug("writing frame", "error", err)
			return
		}
	}

	// Channel closed: say goodbye before dropping the socket.
	_ = l.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = l.conn.WriteMessage(websocket.CloseMessage, []byte{})
}
