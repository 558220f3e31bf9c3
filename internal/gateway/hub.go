package gateway

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"tradesim/internal/model"
)

const clientSendBuffer = 16

// Hub fans market snapshots out to WebSocket clients. Each client has a
// small send buffer; a client that falls behind misses snapshots rather
// than slowing the market down. Since every snapshot is a full universe,
// the next one it receives is complete again.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool
	latest  map[model.Kind][]byte
	lag     *LagTracker

	// OnDrop is called when a message is dropped for a slow client.
	OnDrop func()
	// OnClients is called with the client count after every change.
	OnClients func(n int)
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[*Client]bool),
		latest:  make(map[model.Kind][]byte, 2),
		lag:     NewLagTracker(0),
	}
}

// Run forwards snapshots from every feed until ctx is cancelled or all
// feeds are closed.
func (h *Hub) Run(ctx context.Context, feeds ...<-chan model.Snapshot) {
	var wg sync.WaitGroup
	for _, feed := range feeds {
		wg.Add(1)
		go func(feed <-chan model.Snapshot) {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case snap, ok := <-feed:
					if !ok {
						return
					}
					h.Broadcast(snap)
				}
			}
		}(feed)
	}
	wg.Wait()
}

// Broadcast sends snap to every client subscribed to its universe and
// remembers it as the initial state for new clients.
func (h *Hub) Broadcast(snap model.Snapshot) {
	msg := snap.JSON()

	h.mu.Lock()
	h.latest[snap.Kind] = msg
	h.mu.Unlock()

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if !c.wants(snap.Kind) {
			continue
		}
		select {
		case c.send <- msg:
		default:
			if h.OnDrop != nil {
				h.OnDrop()
			}
		}
	}
	h.lag.Observe(snap.At, time.Now())
}

// Lag summarises the delay between a tick and its broadcast.
func (h *Hub) Lag() LagSummary { return h.lag.Summary() }

// Attach registers a connection and starts its pumps. kinds restricts the
// client to those universes; empty means all.
func (h *Hub) Attach(conn *websocket.Conn, kinds []model.Kind) *Client {
	c := newClient(h, conn, kinds)

	h.mu.Lock()
	h.clients[c] = true
	n := len(h.clients)
	for kind, msg := range h.latest {
		if c.wants(kind) {
			c.send <- msg
		}
	}
	h.mu.Unlock()

	slog.Info("ws client connected", "remote", conn.RemoteAddr().String(), "clients", n)
	if h.OnClients != nil {
		h.OnClients(n)
	}

	go c.writePump()
	go c.readPump()
	return c
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	if !h.clients[c] {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	close(c.send)
	n := len(h.clients)
	h.mu.Unlock()

	slog.Info("ws client disconnected", "clients", n)
	if h.OnClients != nil {
		h.OnClients(n)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()
	for _, c := range clients {
		h.remove(c)
	}
}
