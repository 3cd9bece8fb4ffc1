package network

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/zwlucas/dsn-needs/internal/engine"
	"github.com/zwlucas/dsn-needs/internal/platform/logger"
)

// Hub maintains the set of active clients and broadcasts messages to them.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	mu         sync.Mutex

	registry *engine.Registry
	logger   *logger.Logger
}

// NewHub initializes a new WebSocket Hub bound to the session registry.
func NewHub(registry *engine.Registry, log *logger.Logger) *Hub {
	return &Hub{
		broadcast:  make(chan []byte),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		registry:   registry,
		logger:     log,
	}
}

// Run starts the Hub's main loop to handle client connections and broadcasts.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.logger.Info("WebSocket Hub shutting down.")
			return
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.logger.Info("WebSocket client connected: " + client.citizenID)
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.closeSend()
				h.logger.Info("WebSocket client disconnected: " + client.citizenID)
			}
			h.mu.Unlock()
		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					client.closeSend()
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// BroadcastNotice serializes a server-wide announcement and sends it to all
// connected clients.
func (h *Hub) BroadcastNotice(text string) {
	payload, err := json.Marshal(NoticeMessage{Type: "notice", Text: text})
	if err != nil {
		h.logger.Error("Failed to serialize notice for WebSocket broadcast: " + err.Error())
		return
	}
	h.broadcast <- payload
}

// ServeWS upgrades an accepted connection into a tracked client. The
// caller has already resolved the player's stable citizen id.
func (h *Hub) ServeWS(ctx context.Context, conn *websocket.Conn, citizenID string) error {
	client := NewClient(h, conn, citizenID)

	if _, err := h.registry.Connect(ctx, citizenID, client); err != nil {
		return err
	}

	h.register <- client

	// Allow collection of memory referenced by the caller by doing all work in
	// new goroutines.
	go client.WritePump()
	go client.ReadPump(ctx)
	return nil
}
