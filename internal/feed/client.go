package feed

import (
	"sync"
	"time"

	"github.com/gadgetini/display-agent/internal/infrastructure/log"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 16
)

// Client is one renderer connection. The hub owns the send channel and is
// the only one allowed to close it.
type Client struct {
	ID      uuid.UUID
	conn    *websocket.Conn
	hub     *Hub
	send    chan []byte
	writeMu sync.Mutex
	logger  *log.Logger
}

func NewClient(id uuid.UUID, conn *websocket.Conn, hub *Hub) *Client {
	return &Client{
		ID:     id,
		conn:   conn,
		hub:    hub,
		send:   make(chan []byte, sendBuffer),
		logger: hub.logger.With(zap.String("client_id", id.String())),
	}
}

// Read drains inbound frames until the peer goes away. Renderers never send
// anything meaningful except a "snapshot" request, which re-sends the latest
// state.
func (c *Client) Read() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("feed client closed unexpectedly", zap.Error(err))
			}
			return
		}
		if string(msg) == requestSnapshot {
			c.hub.resend(c)
		}
	}
}

// Write pumps queued payloads to the socket and keeps the connection alive
// with pings. It returns once the hub closes the send channel.
func (c *Client) Write() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			if !ok {
				_ = c.safeWrite(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.safeWrite(websocket.TextMessage, payload); err != nil {
				c.logger.Debug("feed write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			if err := c.safeWrite(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) safeWrite(messageType int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(messageType, data)
}
