// Package main - needs-agitator
// Load generator for the needs server: simulates many concurrent players
// holding sessions open and spamming useLocation requests.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// Config for the agitator.
type Config struct {
	ServerURL      string
	NumClients     int
	ActionInterval time.Duration
	TestDuration   time.Duration
}

// Stats tracks load-test counters.
type Stats struct {
	RequestsSent    int64
	ResultsOK       int64
	ResultsRejected int64
	SnapshotsRecv   int64
	Errors          int64
}

var needNames = []string{"hygiene", "sleep"}

func main() {
	serverURL := flag.String("url", "ws://localhost:8080/ws", "WebSocket server URL")
	numClients := flag.Int("clients", 50, "Number of concurrent clients")
	interval := flag.Duration("interval", 500*time.Millisecond, "Request interval per client")
	duration := flag.Duration("duration", 60*time.Second, "Test duration")
	flag.Parse()

	cfg := Config{
		ServerURL:      *serverURL,
		NumClients:     *numClients,
		ActionInterval: *interval,
		TestDuration:   *duration,
	}

	fmt.Println("=========================================")
	fmt.Println("NEEDS AGITATOR - Load Test Tool")
	fmt.Println("=========================================")
	fmt.Printf("Server: %s\n", cfg.ServerURL)
	fmt.Printf("Clients: %d\n", cfg.NumClients)
	fmt.Printf("Interval: %v\n", cfg.ActionInterval)
	fmt.Printf("Duration: %v\n", cfg.TestDuration)
	fmt.Println("=========================================")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.TestDuration)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	go func() {
		<-sigChan
		fmt.Println("\nInterrupt received, stopping...")
		cancel()
	}()

	stats := &Stats{}
	var wg sync.WaitGroup

	fmt.Println("\nStarting clients...")
	for i := 0; i < cfg.NumClients; i++ {
		wg.Add(1)
		go func(clientID int) {
			defer wg.Done()
			runClient(ctx, clientID, cfg, stats)
		}(i)

		// Stagger client starts to avoid thundering herd
		time.Sleep(10 * time.Millisecond)
	}
	fmt.Printf("All %d clients started\n\n", cfg.NumClients)

	progress := time.NewTicker(5 * time.Second)
	defer progress.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-progress.C:
				fmt.Printf("Progress: Sent=%d OK=%d Rejected=%d Snapshots=%d Errors=%d\n",
					atomic.LoadInt64(&stats.RequestsSent),
					atomic.LoadInt64(&stats.ResultsOK),
					atomic.LoadInt64(&stats.ResultsRejected),
					atomic.LoadInt64(&stats.SnapshotsRecv),
					atomic.LoadInt64(&stats.Errors))
			}
		}
	}()

	wg.Wait()

	fmt.Println("\n=========================================")
	fmt.Println("RESULTS")
	fmt.Println("=========================================")
	fmt.Printf("Requests sent:      %d\n", atomic.LoadInt64(&stats.RequestsSent))
	fmt.Printf("Resets granted:     %d\n", atomic.LoadInt64(&stats.ResultsOK))
	fmt.Printf("Cooldown rejects:   %d\n", atomic.LoadInt64(&stats.ResultsRejected))
	fmt.Printf("Snapshots received: %d\n", atomic.LoadInt64(&stats.SnapshotsRecv))
	fmt.Printf("Errors:             %d\n", atomic.LoadInt64(&stats.Errors))
}

func runClient(ctx context.Context, clientID int, cfg Config, stats *Stats) {
	citizenID := fmt.Sprintf("AGITATOR_%03d", clientID)

	u, err := url.Parse(cfg.ServerURL)
	if err != nil {
		log.Printf("Client %d: URL parse error: %v", clientID, err)
		atomic.AddInt64(&stats.Errors, 1)
		return
	}
	q := u.Query()
	q.Set("citizenid", citizenID)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		log.Printf("Client %d: Connection failed: %v", clientID, err)
		atomic.AddInt64(&stats.Errors, 1)
		return
	}
	defer conn.Close()

	// Receiver: count snapshots and use results.
	go func() {
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			// A frame may carry several newline-joined messages.
			for _, part := range strings.Split(string(raw), "\n") {
				if part == "" {
					continue
				}
				var head struct {
					Type string `json:"type"`
					OK   bool   `json:"ok"`
				}
				if err := json.Unmarshal([]byte(part), &head); err != nil {
					continue
				}
				switch head.Type {
				case "updateEffects":
					atomic.AddInt64(&stats.SnapshotsRecv, 1)
				case "useResult":
					if head.OK {
						atomic.AddInt64(&stats.ResultsOK, 1)
					} else {
						atomic.AddInt64(&stats.ResultsRejected, 1)
					}
				}
			}
		}
	}()

	ticker := time.NewTicker(cfg.ActionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			msg := map[string]string{
				"type": "useLocation",
				"need": needNames[rand.Intn(len(needNames))],
			}
			if err := conn.WriteJSON(msg); err != nil {
				atomic.AddInt64(&stats.Errors, 1)
				return
			}
			atomic.AddInt64(&stats.RequestsSent, 1)
		}
	}
}
