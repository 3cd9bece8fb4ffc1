// Package main is the entry point for the dsn-needs server.
// It only handles dependency injection and server initialization.
// NO business logic belongs here.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zwlucas/dsn-needs/internal/config"
	"github.com/zwlucas/dsn-needs/internal/engine"
	"github.com/zwlucas/dsn-needs/internal/infra/storage"
	"github.com/zwlucas/dsn-needs/internal/network"
	"github.com/zwlucas/dsn-needs/internal/platform/logger"
	"github.com/zwlucas/dsn-needs/internal/platform/metrics"
)

func main() {
	configPath := flag.String("config", "", "Path to the YAML config file (optional)")
	flag.Parse()

	appLogger := logger.NewLogger()

	cfg, err := config.Load(*configPath)
	if err != nil {
		appLogger.Error("Invalid configuration: " + err.Error())
		os.Exit(1)
	}

	appLogger.Info("Opening " + cfg.DBDialect + " store...")
	dsn := cfg.DBSQLitePath
	if cfg.DBDialect == "postgres" {
		dsn = cfg.DBPostgresDSN
	}
	db, err := storage.Open(storage.Dialect(cfg.DBDialect), dsn)
	if err != nil {
		appLogger.Error("Failed to open database: " + err.Error())
		os.Exit(1)
	}
	defer db.Close()
	repo := storage.NewNeedsRepository(db)

	m := metrics.New()

	appLogger.Info("Bootstrapping needs registry...")
	registry := engine.NewRegistry(cfg, repo, appLogger, m)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry.Start(ctx)

	appLogger.Info("Bootstrapping WebSocket Hub...")
	hub := network.NewHub(registry, appLogger)
	go hub.Run(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		serveWs(ctx, hub, w, r, appLogger)
	})
	mux.Handle("/metrics", metrics.Handler())

	// Debug read of one player's current needs.
	mux.HandleFunc("/api/needs/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		citizenID := strings.TrimPrefix(r.URL.Path, "/api/needs/")
		hygiene, sleep, ok := registry.Snapshot(citizenID)
		if !ok {
			http.Error(w, "No active session", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"citizenid": citizenID,
			"hygiene":   hygiene,
			"sleep":     sleep,
		})
	})

	srv := &http.Server{Addr: cfg.ListenAddr, Handler: mux}
	go func() {
		log.Printf("[NEEDS-SERVER] HTTP API & WS Server listening on %s", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	log.Println("[NEEDS-SERVER] Server running. Press Ctrl+C to exit.")

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("[NEEDS-SERVER] Shutting down...")
	hub.BroadcastNotice("Server shutting down.")

	// Persist all active sessions before dropping them.
	saveCtx, saveCancel := context.WithTimeout(context.Background(), 10*time.Second)
	registry.SaveAll(saveCtx)
	saveCancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	srv.Shutdown(shutdownCtx)
	cancel()
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Game clients connect cross-origin
	},
}

// serveWs handles websocket requests from the peer.
func serveWs(ctx context.Context, hub *network.Hub, w http.ResponseWriter, r *http.Request, log *logger.Logger) {
	citizenID := r.URL.Query().Get("citizenid")
	if citizenID == "" {
		http.Error(w, "citizenid query parameter required", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error("Failed to upgrade websocket connection: " + err.Error())
		return
	}

	if err := hub.ServeWS(ctx, conn, citizenID); err != nil {
		log.Error("Failed to start session for " + citizenID + ": " + err.Error())
		conn.Close()
	}
}
