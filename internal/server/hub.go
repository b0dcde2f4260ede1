package server

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/gorilla/websocket"

	"github.com/warraq-app/warraq/internal/pipeline"
)

// Hub fans progress events out to every connected websocket client. A single
// goroutine owns the client set; handlers talk to it through channels.
type Hub struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan []byte
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	done       chan struct{}
	logger     *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run owns the client set until ctx is done; all remaining connections are
// closed on exit.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			// Unblocks handlers trying to register after shutdown.
			close(h.done)
			for conn := range h.clients {
				conn.Close()
			}
			return
		case conn := <-h.register:
			h.clients[conn] = true
			h.logger.Info("ws.client_connected", "clients", len(h.clients))
		case conn := <-h.unregister:
			if h.clients[conn] {
				delete(h.clients, conn)
				conn.Close()
			}
			h.logger.Info("ws.client_disconnected", "clients", len(h.clients))
		case message := <-h.broadcast:
			for conn := range h.clients {
				if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
					h.logger.Warn("ws.write_failed", "error", err)
					conn.Close()
					delete(h.clients, conn)
				}
			}
		}
	}
}

// Publish implements pipeline.Sink: every progress event is broadcast as a
// JSON frame. Events are dropped rather than blocking the job goroutine when
// the hub is saturated.
func (h *Hub) Publish(e pipeline.Event) {
	payload, err := json.Marshal(map[string]any{
		"type":       "progress",
		"file":       e.File,
		"stage":      e.Stage,
		"current":    e.Current,
		"total":      e.Total,
		"percentage": e.Percentage,
	})
	if err != nil {
		h.logger.Warn("ws.marshal_failed", "error", err)
		return
	}
	select {
	case h.broadcast <- payload:
	default:
	}
}

// addClient hands the connection to the hub goroutine; after shutdown the
// connection is refused and closed instead of blocking the handler.
func (h *Hub) addClient(conn *websocket.Conn) {
	select {
	case h.register <- conn:
	case <-h.done:
		conn.Close()
	}
}

func (h *Hub) removeClient(conn *websocket.Conn) {
	select {
	case h.unregister <- conn:
	case <-h.done:
	}
}
