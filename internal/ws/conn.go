package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bidhub/bidhub/internal/event"
)

// connection wraps one websocket client. Writes go through a buffered
// outbox drained by a single writer goroutine, so broadcasts never write
// to the socket concurrently and never block on a slow peer.
type connection struct {
	id           string
	sock         *websocket.Conn
	outbox       chan event.Envelope
	writeTimeout time.Duration

	closeOnce sync.Once
	closed    chan struct{}
}

func newConnection(id string, sock *websocket.Conn, outboxSize int, writeTimeout time.Duration) *connection {
	return &connection{
		id:           id,
		sock:         sock,
		outbox:       make(chan event.Envelope, outboxSize),
		writeTimeout: writeTimeout,
		closed:       make(chan struct{}),
	}
}

func (c *connection) ID() string { return c.id }

// Send enqueues env for the writer goroutine. It reports false when the
// outbox is full or the connection is closed.
func (c *connection) Send(env event.Envelope) bool {
	select {
	case <-c.closed:
		return false
	default:
	}
	select {
	case c.outbox <- env:
		return true
	default:
		return false
	}
}

// Close marks the connection closed and closes the socket, which unblocks
// both the reader and the writer goroutine.
func (c *connection) Close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		_ = c.sock.Close()
	})
}

// writePump drains the outbox onto the socket until the connection
// closes. Runs as the connection's single writer goroutine.
func (c *connection) writePump() {
	for {
		select {
		case <-c.closed:
			return
		case env := <-c.outbox:
			_ = c.sock.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if err := c.sock.WriteJSON(env); err != nil {
				c.Close()
				return
			}
		}
	}
}
