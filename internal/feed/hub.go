// Package feed serves the live display surface: a websocket hub pushing
// reconciled-span, alert, and quality updates, plus JSON snapshot
// endpoints for late joiners. Rendering is the consumer's problem; the
// feed only carries state.
package feed

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"clinical-scribe-service/internal/observability/logging"
)

// Event is one push to connected viewers.
type Event struct {
	Kind      string `json:"kind"` // display, span, alerts, quality
	SessionID string `json:"sessionId"`
	Payload   any    `json:"payload"`
}

// Hub fans events out to connected websocket clients. A slow client that
// fails a write is dropped rather than allowed to stall the broadcast.
type Hub struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan Event
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	mu         sync.Mutex
	logger     zerolog.Logger
}

// NewHub creates a Hub. Call Run before accepting connections.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan Event, 100),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		logger:     logging.WithComponent("feed"),
	}
}

// Run owns the client set until ctx-free shutdown via closed channels;
// it exits when the broadcast channel closes.
func (h *Hub) Run() {
	for {
		select {
		case conn := <-h.register:
			h.mu.Lock()
			h.clients[conn] = true
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug().Int("clients", n).Msg("viewer connected")

		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				conn.Close()
			}
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug().Int("clients", n).Msg("viewer disconnected")

		case event, ok := <-h.broadcast:
			if !ok {
				h.closeAll()
				return
			}
			h.mu.Lock()
			for conn := range h.clients {
				if err := conn.WriteJSON(event); err != nil {
					h.logger.Debug().Err(err).Msg("dropping viewer after write error")
					conn.Close()
					delete(h.clients, conn)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Publish queues an event for broadcast, dropping it when the hub is
// backed up: the feed is a live view, not a durable stream.
func (h *Hub) Publish(e Event) {
	select {
	case h.broadcast <- e:
	default:
		h.logger.Warn().Str("kind", e.Kind).Msg("feed backlog full, dropping event")
	}
}

// Close shuts the hub down and disconnects all viewers.
func (h *Hub) Close() {
	close(h.broadcast)
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		conn.Close()
		delete(h.clients, conn)
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // same-host viewers only; the feed carries no credentials
	},
}

// Handler upgrades a request to a websocket and registers it with the
// hub.
func (h *Hub) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.logger.Warn().Err(err).Msg("websocket upgrade failed")
			return
		}
		h.register <- conn

		go func() {
			defer func() { h.unregister <- conn }()
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
	}
}
