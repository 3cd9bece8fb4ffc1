package network

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second
	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// Maximum message size allowed from peer.
	maxMessageSize = 512
)

// Client represents an active WebSocket connection for one player.
// It implements engine.Pusher so the registry can deliver snapshots
// straight to the owning player.
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	citizenID string

	// The registry pushes snapshots from its own goroutines while the hub
	// tears the client down; sendMu and closed keep the send channel safe
	// across that window.
	sendMu sync.Mutex
	closed bool
}

// NewClient creates a new WebSocket client and returns it.
func NewClient(hub *Hub, conn *websocket.Conn, citizenID string) *Client {
	return &Client{
		hub:       hub,
		conn:      conn,
		send:      make(chan []byte, 256),
		citizenID: citizenID,
	}
}

// PushEffects sends a presentation snapshot to this player's client.
func (c *Client) PushEffects(hygiene, sleep int) {
	c.sendJSON(EffectsMessage{Type: "updateEffects", Hygiene: hygiene, Sleep: sleep})
}

func (c *Client) sendJSON(v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		c.hub.logger.Error("Failed to serialize message for " + c.citizenID + ": " + err.Error())
		return
	}
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return
	}
	// Drop the message instead of blocking the registry when the client's
	// send buffer is full; the write pump or hub will clean up.
	select {
	case c.send <- payload:
	default:
	}
}

// closeSend shuts the send channel down exactly once. Only the hub calls
// this; after it returns, sendJSON silently drops messages.
func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// ReadPump pumps messages from the websocket connection to the registry.
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.hub.registry.Disconnect(ctx, c.citizenID, c)
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
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Error("WebSocket read error for " + c.citizenID + ": " + err.Error())
			}
			break
		}

		var msg ClientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			c.hub.logger.Error("Failed to parse client message from " + c.citizenID + ": " + err.Error())
			continue
		}

		c.handleMessage(ctx, msg)
	}
}

func (c *Client) handleMessage(ctx context.Context, msg ClientMessage) {
	switch msg.Type {
	case "useLocation":
		ok := c.hub.registry.UseLocation(ctx, c.citizenID, msg.Need)
		c.sendJSON(UseResultMessage{Type: "useResult", Need: msg.Need, OK: ok})
	default:
		c.hub.logger.Warn("Unknown client message type from " + c.citizenID + ": " + msg.Type)
	}
}

// WritePump pumps messages from the hub to the websocket connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Add queued messages to the current websocket message.
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
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
