package websocket

import (
	"log/slog"
	"sync"

	"github.com/coder/websocket"
)

const sendBuffer = 64

// Client represents a single connected WebSocket client.
type Client struct {
	ID     string
	UserID string
	conn   *websocket.Conn
	send   chan []byte
	out    <-chan []byte
	mu     sync.RWMutex
}

// NewClient wraps conn for userID.
func NewClient(id, userID string, conn *websocket.Conn) *Client {
	send := make(chan []byte, sendBuffer)
	return &Client{ID: id, UserID: userID, conn: conn, send: send, out: send}
}

// SendMessage queues msg for the client. It reports false when the client
// is closed or its queue is full; the frame is dropped in both cases.
func (c *Client) SendMessage(msg []byte) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.send == nil {
		return false
	}

	select {
	case c.send <- msg:
		return true
	default:
		slog.Warn("Client send channel full, dropping message", "client_id", c.ID)
		return false
	}
}

// Close closes the send queue. The writer drains it and then closes the
// connection.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.send != nil {
		close(c.send)
		c.send = nil
	}
}
