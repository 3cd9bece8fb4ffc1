package network

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zwlucas/dsn-needs/internal/config"
	"github.com/zwlucas/dsn-needs/internal/engine"
	"github.com/zwlucas/dsn-needs/internal/infra/storage"
	"github.com/zwlucas/dsn-needs/internal/platform/logger"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// newTestServer wires a registry, hub and HTTP server over an in-memory
// sqlite store. The decay/save loops are not started; tests drive ticks
// directly.
func newTestServer(t *testing.T) (*httptest.Server, *engine.Registry, *storage.SQLNeedsRepository) {
	t.Helper()

	db, err := storage.Open(storage.DialectSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	repo := storage.NewNeedsRepository(db)

	cfg := config.Default()
	log := logger.NewLogger()
	registry := engine.NewRegistry(cfg, repo, log, nil)

	hub := NewHub(registry, log)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		citizenID := r.URL.Query().Get("citizenid")
		if citizenID == "" {
			http.Error(w, "citizenid required", http.StatusBadRequest)
			return
		}
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		if err := hub.ServeWS(ctx, conn, citizenID); err != nil {
			conn.Close()
		}
	}))
	t.Cleanup(srv.Close)

	return srv, registry, repo
}

func dialTest(t *testing.T, srv *httptest.Server, citizenID string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "?citizenid=" + citizenID
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntil reads frames until one matches the wanted type. A single
// websocket frame may carry several newline-separated messages.
func readUntil(t *testing.T, conn *websocket.Conn, wantType string) map[string]interface{} {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	conn.SetReadDeadline(deadline)
	for time.Now().Before(deadline) {
		_, raw, err := conn.ReadMessage()
		require.NoError(t, err)
		for _, part := range strings.Split(string(raw), "\n") {
			if part == "" {
				continue
			}
			var msg map[string]interface{}
			require.NoError(t, json.Unmarshal([]byte(part), &msg))
			if msg["type"] == wantType {
				return msg
			}
		}
	}
	t.Fatalf("No %q message received", wantType)
	return nil
}

func TestConnectPushesInitialSnapshot(t *testing.T) {
	srv, _, _ := newTestServer(t)
	conn := dialTest(t, srv, "CIT100")

	msg := readUntil(t, conn, "updateEffects")
	assert.Equal(t, float64(100), msg["hygiene"])
	assert.Equal(t, float64(100), msg["sleep"])
}

func TestUseLocationRoundTrip(t *testing.T) {
	srv, _, _ := newTestServer(t)
	conn := dialTest(t, srv, "CIT101")
	readUntil(t, conn, "updateEffects")

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "useLocation", Need: "hygiene"}))
	msg := readUntil(t, conn, "useResult")
	assert.Equal(t, "hygiene", msg["need"])
	assert.Equal(t, true, msg["ok"])

	// A second attempt inside the cooldown window must be rejected.
	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "useLocation", Need: "hygiene"}))
	msg = readUntil(t, conn, "useResult")
	assert.Equal(t, false, msg["ok"])
}

func TestUseLocationUnknownNeedRejected(t *testing.T) {
	srv, _, _ := newTestServer(t)
	conn := dialTest(t, srv, "CIT102")
	readUntil(t, conn, "updateEffects")

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "useLocation", Need: "hunger"}))
	msg := readUntil(t, conn, "useResult")
	assert.Equal(t, false, msg["ok"])
}

func TestDecayTickReachesClient(t *testing.T) {
	srv, registry, _ := newTestServer(t)
	conn := dialTest(t, srv, "CIT103")
	readUntil(t, conn, "updateEffects")

	registry.TickDecay()

	cfg := config.Default()
	msg := readUntil(t, conn, "updateEffects")
	assert.Equal(t, float64(100-cfg.Needs["hygiene"].Decrease), msg["hygiene"])
	assert.Equal(t, float64(100-cfg.Needs["sleep"].Decrease), msg["sleep"])
}

func TestPushAfterTeardownIsDropped(t *testing.T) {
	// The registry's decay loop may hold a pusher snapshot while the hub
	// tears the client down; the push must be dropped, never panic.
	hub := NewHub(nil, logger.NewLogger())
	client := NewClient(hub, nil, "CIT900")

	client.closeSend()
	assert.NotPanics(t, func() { client.PushEffects(50, 50) })
}

func TestConcurrentPushAndTeardown(t *testing.T) {
	hub := NewHub(nil, logger.NewLogger())

	for i := 0; i < 200; i++ {
		client := NewClient(hub, nil, "CIT901")
		done := make(chan struct{})
		go func() {
			defer close(done)
			client.PushEffects(50, 50)
		}()
		client.closeSend()
		<-done
	}
}

func TestDisconnectDropsSessionAndPersists(t *testing.T) {
	srv, registry, repo := newTestServer(t)
	conn := dialTest(t, srv, "CIT104")
	readUntil(t, conn, "updateEffects")

	registry.TickDecay()
	conn.Close()

	require.Eventually(t, func() bool {
		return registry.Get("CIT104") == nil
	}, 2*time.Second, 10*time.Millisecond)

	row, err := repo.Get(context.Background(), "CIT104")
	require.NoError(t, err)
	require.NotNil(t, row)
	cfg := config.Default()
	assert.Equal(t, 100-cfg.Needs["hygiene"].Decrease, row.Hygiene)
	assert.Equal(t, 100-cfg.Needs["sleep"].Decrease, row.Sleep)
}
