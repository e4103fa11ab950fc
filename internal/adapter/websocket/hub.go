// Package websocket streams surface events to browser map clients. A client
// first receives the replay of the current surface state, then every
// mutation in order.
package websocket

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/couchcryptid/submission-map/internal/observability"
	"github.com/couchcryptid/submission-map/internal/surface"
	"github.com/gorilla/websocket"
)

const (
	sendBuffer     = 64
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// ReplaySource provides the initial state for a new client and guarantees
// that no event is broadcast between the replay and registration.
type ReplaySource interface {
	Sync(fn func(replay []surface.Event))
}

type client struct {
	conn   *websocket.Conn
	remote string
	send   chan []byte
}

// Hub fans surface events out to connected clients. Each client has its own
// buffered queue; a client that cannot keep up is disconnected instead of
// stalling the surface.
type Hub struct {
	mu       sync.Mutex
	clients  map[*client]struct{}
	upgrader websocket.Upgrader
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger, metrics *observability.Metrics) *Hub {
	return &Hub{
		clients: make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger:  logger,
		metrics: metrics,
	}
}

// Broadcast queues e for every client. It never blocks, so it is safe to
// use as a surface.Observer.
func (h *Hub) Broadcast(e surface.Event) {
	payload, err := json.Marshal(e)
	if err != nil {
		h.logger.Error("marshal surface event", "type", e.Type, "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			h.logger.Warn("websocket client too slow, disconnecting", "remote", c.remote)
			h.removeLocked(c)
		}
	}
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		h.removeLocked(c)
	}
}

// Handler upgrades the request and streams events until the client goes away.
func (h *Hub) Handler(src ReplaySource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := h.upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.logger.Warn("websocket upgrade failed", "error", err)
			return
		}

		c := &client{conn: conn, remote: conn.RemoteAddr().String()}
		src.Sync(func(replay []surface.Event) {
			c.send = make(chan []byte, len(replay)+sendBuffer)
			for _, e := range replay {
				payload, err := json.Marshal(e)
				if err != nil {
					continue
				}
				c.send <- payload
			}
			h.add(c)
		})
		h.logger.Info("websocket client connected", "remote", c.remote)

		go h.writePump(c)
		h.readPump(c)
	}
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
	h.metrics.WebsocketClients.Inc()
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

func (h *Hub) removeLocked(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	h.metrics.WebsocketClients.Dec()
}

// readPump discards client messages and detects disconnects.
func (h *Hub) readPump(c *client) {
	defer func() {
		h.remove(c)
		_ = c.conn.Close()
		h.logger.Info("websocket client disconnected", "remote", c.remote)
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

func (h *Hub) writePump(c *client) {
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
