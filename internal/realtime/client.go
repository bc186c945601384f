package realtime

import (
	"time"

	"github.com/gorilla/websocket"

	"github.com/growthpro/messaging/internal/messaging"
	"github.com/growthpro/messaging/internal/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// Client is one websocket connection owned by a viewer. It holds the
// per-connection snapshot that realtime events are merged into.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	viewer   models.Viewer
	snapshot *messaging.Snapshot
}

// NewClient wraps an upgraded connection and registers it with the hub.
func NewClient(hub *Hub, conn *websocket.Conn, viewer models.Viewer, snapshot *messaging.Snapshot) *Client {
	c := &Client{
		hub:      hub,
		conn:     conn,
		send:     make(chan []byte, 256),
		viewer:   viewer,
		snapshot: snapshot,
	}
	hub.register <- c
	return c
}

// Send queues a frame for delivery; used for the initial snapshot push.
func (c *Client) Send(frame []byte) {
	select {
	case c.send <- frame:
	default:
	}
}

// Start runs both pumps. Returns immediately.
func (c *Client) Start() {
	go c.writePump()
	go c.readPump()
}

// readPump drains the connection. Inbound frames are ignored (all
// mutations go through the HTTP API); its job is pong handling and
// unregistering on close.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump pumps frames from the hub to the connection with heartbeat
// pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
