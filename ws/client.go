package ws

import (
	"time"

	"github.com/gorilla/websocket"
)

const (
	// writeWait is the per-message write deadline.
	writeWait = 10 * time.Second
	// pongWait is how long a connection may go without a pong.
	pongWait = 60 * time.Second
	// pingPeriod must be shorter than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// maxMessageSize bounds inbound messages; subscribers send nothing
	// but control frames.
	maxMessageSize = 512
	// sendBuffer is the per-client outbound queue. A full queue marks
	// the client slow.
	sendBuffer = 16
)

// client is one WebSocket subscriber.
type client struct {
	hub    *Hub
	conn   *websocket.Conn
	remote string
	send   chan []byte
}

// readPump discards inbound messages and keeps the pong deadline
// fresh. Exits on any read error, unregistering the client.
func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump drains the send queue onto the connection and keeps the
// ping cadence. A closed send queue sends a close frame and exits.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
