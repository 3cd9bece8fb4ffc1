package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/zwlucas/dsn-needs/internal/domain/needs"
	"github.com/zwlucas/dsn-needs/internal/network"
	"github.com/zwlucas/dsn-needs/internal/platform/logger"
)

// ServerLink is the websocket connection to the needs server. It
// implements Requester and dispatches server pushes to a snapshot sink.
// Requests are serialized: one useLocation round-trip is in flight at a
// time, matching the relay's one-interaction-at-a-time flow.
type ServerLink struct {
	conn   *websocket.Conn
	logger *logger.Logger

	mu      sync.Mutex
	pending chan network.UseResultMessage
}

// SnapshotSink receives server-pushed need snapshots.
type SnapshotSink interface {
	HandleSnapshot(hygiene, sleep int)
}

// Dial connects to the needs server as the given citizen.
func Dial(ctx context.Context, serverURL, citizenID string, log *logger.Logger) (*ServerLink, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	q := u.Query()
	q.Set("citizenid", citizenID)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial needs server: %w", err)
	}

	return &ServerLink{conn: conn, logger: log}, nil
}

// Close shuts the connection down.
func (l *ServerLink) Close() error {
	return l.conn.Close()
}

// Listen reads server messages until the connection drops, forwarding
// snapshots to the sink and replies to the waiting request. Run in its
// own goroutine.
func (l *ServerLink) Listen(sink SnapshotSink) {
	for {
		_, raw, err := l.conn.ReadMessage()
		if err != nil {
			l.failPending()
			return
		}

		// The server's write pump may join several queued messages into
		// one frame, separated by newlines.
		for _, part := range bytes.Split(raw, []byte{'\n'}) {
			if len(part) == 0 {
				continue
			}
			l.dispatch(part, sink)
		}
	}
}

func (l *ServerLink) dispatch(raw []byte, sink SnapshotSink) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		l.logger.Warn("Unparseable server message: " + err.Error())
		return
	}

	switch head.Type {
	case "updateEffects":
		var msg network.EffectsMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			return
		}
		sink.HandleSnapshot(msg.Hygiene, msg.Sleep)

	case "useResult":
		var msg network.UseResultMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			return
		}
		l.deliverResult(msg)

	case "notice":
		var msg network.NoticeMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			return
		}
		l.logger.Info("Server notice: " + msg.Text)
	}
}

// UseLocation sends a reset request and waits for the server's verdict.
func (l *ServerLink) UseLocation(ctx context.Context, need needs.Need) (bool, error) {
	l.mu.Lock()
	if l.pending != nil {
		l.mu.Unlock()
		return false, errors.New("a useLocation request is already in flight")
	}
	reply := make(chan network.UseResultMessage, 1)
	l.pending = reply
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		l.pending = nil
		l.mu.Unlock()
	}()

	msg := network.ClientMessage{Type: "useLocation", Need: string(need)}
	if err := l.conn.WriteJSON(msg); err != nil {
		return false, fmt.Errorf("send useLocation: %w", err)
	}

	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case result, ok := <-reply:
		if !ok {
			return false, errors.New("connection lost awaiting useLocation result")
		}
		return result.OK, nil
	}
}

func (l *ServerLink) deliverResult(msg network.UseResultMessage) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.pending == nil {
		// Unsolicited result; nothing is waiting.
		return
	}
	// Never block the read loop: a duplicate result finds the buffer full
	// and is dropped.
	select {
	case l.pending <- msg:
	default:
	}
}

func (l *ServerLink) failPending() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.pending != nil {
		close(l.pending)
		l.pending = nil
	}
}
