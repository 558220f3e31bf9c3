package gateway

import (
	"time"

	"github.com/gorilla/websocket"

	"tradesim/internal/model"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

// Client represents a single WebSocket peer.
type Client struct {
	conn  *websocket.Conn
	send  chan []byte
	hub   *Hub
	kinds map[model.Kind]bool // empty = all universes
}

func newClient(h *Hub, conn *websocket.Conn, kinds []model.Kind) *Client {
	c := &Client{
		conn:  conn,
		send:  make(chan []byte, clientSendBuffer),
		hub:   h,
		kinds: make(map[model.Kind]bool, len(kinds)),
	}
	for _, k := range kinds {
		c.kinds[k] = true
	}
	return c
}

func (c *Client) wants(kind model.Kind) bool {
	return len(c.kinds) == 0 || c.kinds[kind]
}

// writePump sends queued snapshots and keepalive pings. It owns all
// writes to the connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
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

// readPump discards client messages and detects disconnects.
func (c *Client) readPump() {
	defer func() {
		c.hub.remove(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
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
