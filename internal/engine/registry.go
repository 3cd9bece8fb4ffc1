// Package engine contains the server-side needs loop: session registry,
// decay tick, periodic persistence and location interaction handling.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/zwlucas/dsn-needs/internal/config"
	"github.com/zwlucas/dsn-needs/internal/domain/needs"
	"github.com/zwlucas/dsn-needs/internal/infra/storage"
	"github.com/zwlucas/dsn-needs/internal/platform/logger"
	"github.com/zwlucas/dsn-needs/internal/platform/metrics"
)

// Pusher is the per-player client sink for presentation snapshots.
// The network layer implements this; tests use a fake.
type Pusher interface {
	PushEffects(hygiene, sleep int)
}

// Session binds one active player's record to their client connection.
type Session struct {
	Record *needs.Record
	pusher Pusher
}

// Registry owns the map of active sessions and the two server timers.
// All access to the session map goes through the registry's mutex: network
// callbacks and the tick loops run on separate goroutines.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session

	cfg     config.Config
	repo    storage.NeedsRepository
	logger  *logger.Logger
	metrics *metrics.Metrics

	now func() time.Time
}

// NewRegistry creates the session registry. metrics may be nil in tests.
func NewRegistry(cfg config.Config, repo storage.NeedsRepository, log *logger.Logger, m *metrics.Metrics) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		cfg:      cfg,
		repo:     repo,
		logger:   log,
		metrics:  m,
		now:      time.Now,
	}
}

// SetClock overrides the registry clock. Tests only.
func (rg *Registry) SetClock(now func() time.Time) {
	rg.now = now
}

// Start spawns the decay and save loops. Both stop when ctx is cancelled.
func (rg *Registry) Start(ctx context.Context) {
	go rg.runDecayLoop(ctx)
	go rg.runSaveLoop(ctx)
}

// Connect loads or creates the player's persisted needs and registers an
// active session. Reconnecting replaces the pusher but keeps the record.
func (rg *Registry) Connect(ctx context.Context, citizenID string, pusher Pusher) (*needs.Record, error) {
	rg.mu.Lock()
	if s, ok := rg.sessions[citizenID]; ok {
		s.pusher = pusher
		rec := s.Record
		rg.mu.Unlock()
		rg.logger.Info("Session pusher replaced for " + citizenID)
		return rec, nil
	}
	rg.mu.Unlock()

	row, err := storage.LoadOrCreate(ctx, rg.repo, citizenID)
	if err != nil {
		return nil, fmt.Errorf("load needs for %s: %w", citizenID, err)
	}

	rec := needs.NewRecord(citizenID)
	rec.Hygiene = needs.Clamp(row.Hygiene)
	rec.Sleep = needs.Clamp(row.Sleep)

	rg.mu.Lock()
	rg.sessions[citizenID] = &Session{Record: rec, pusher: pusher}
	count := len(rg.sessions)
	hygiene, sleep := rec.Hygiene, rec.Sleep
	rg.mu.Unlock()

	if rg.metrics != nil {
		rg.metrics.PlayersConnected.Set(float64(count))
	}
	rg.logger.Event("SESSION_START", citizenID, fmt.Sprintf("hygiene=%d sleep=%d", hygiene, sleep))

	// Initial snapshot so the client starts from the stored values.
	pusher.PushEffects(hygiene, sleep)
	return rec, nil
}

// Disconnect persists the player's needs once more and drops the session.
// When the session's pusher is no longer the given one the player has
// already reconnected; the stale connection's teardown must not take the
// live session with it. A nil pusher drops unconditionally.
func (rg *Registry) Disconnect(ctx context.Context, citizenID string, pusher Pusher) {
	rg.mu.Lock()
	s, ok := rg.sessions[citizenID]
	if ok && pusher != nil && s.pusher != pusher {
		rg.mu.Unlock()
		rg.logger.Info("Stale connection closed for " + citizenID + "; session kept")
		return
	}
	var row storage.NeedsRow
	if ok {
		delete(rg.sessions, citizenID)
		row = storage.NeedsRow{CitizenID: citizenID, Hygiene: s.Record.Hygiene, Sleep: s.Record.Sleep}
	}
	count := len(rg.sessions)
	rg.mu.Unlock()

	if !ok {
		return
	}

	rg.persist(ctx, row)
	if rg.metrics != nil {
		rg.metrics.PlayersConnected.Set(float64(count))
	}
	rg.logger.Event("SESSION_END", citizenID, "needs persisted")
}

// Get returns the record of an active session, or nil when the player has
// no session.
func (rg *Registry) Get(citizenID string) *needs.Record {
	rg.mu.Lock()
	defer rg.mu.Unlock()
	if s, ok := rg.sessions[citizenID]; ok {
		return s.Record
	}
	return nil
}

// Snapshot returns the current values of an active session for read-only
// consumers like the debug API.
func (rg *Registry) Snapshot(citizenID string) (hygiene, sleep int, ok bool) {
	rg.mu.Lock()
	defer rg.mu.Unlock()
	s, found := rg.sessions[citizenID]
	if !found {
		return 0, 0, false
	}
	return s.Record.Hygiene, s.Record.Sleep, true
}

// UseLocation attempts a need reset for a player. It returns false when
// the session is missing, the need name is unknown, or the per-need
// cooldown has not elapsed. A successful reset is persisted immediately.
func (rg *Registry) UseLocation(ctx context.Context, citizenID, needName string) bool {
	need, err := needs.ParseNeed(needName)
	if err != nil {
		rg.logger.Warn("useLocation with unknown need from " + citizenID + ": " + needName)
		rg.countUse(needName, "invalid")
		return false
	}

	rg.mu.Lock()
	s, ok := rg.sessions[citizenID]
	if !ok {
		rg.mu.Unlock()
		rg.logger.Warn("useLocation without active session: " + citizenID)
		rg.countUse(string(need), "no_session")
		return false
	}

	now := rg.now()
	if !s.Record.CanUse(need, rg.cfg.Need(need).Cooldown, now) {
		rg.mu.Unlock()
		rg.countUse(string(need), "cooldown")
		return false
	}

	s.Record.Reset(need, now)
	hygiene, sleep := s.Record.Hygiene, s.Record.Sleep
	pusher := s.pusher
	rg.mu.Unlock()

	rg.persist(ctx, storage.NeedsRow{CitizenID: citizenID, Hygiene: hygiene, Sleep: sleep})
	pusher.PushEffects(hygiene, sleep)
	rg.countUse(string(need), "ok")
	rg.logger.Event("NEED_RESET", citizenID, string(need)+" restored to 100")
	return true
}

// SaveAll persists every active session. Used by the save loop and once
// more during shutdown.
func (rg *Registry) SaveAll(ctx context.Context) {
	rg.mu.Lock()
	rows := make([]storage.NeedsRow, 0, len(rg.sessions))
	for id, s := range rg.sessions {
		rows = append(rows, storage.NeedsRow{CitizenID: id, Hygiene: s.Record.Hygiene, Sleep: s.Record.Sleep})
	}
	rg.mu.Unlock()

	for _, row := range rows {
		rg.persist(ctx, row)
	}
}

// runDecayLoop applies the configured per-need decrease on every update
// tick, then pushes the new snapshot to each player's own client.
func (rg *Registry) runDecayLoop(ctx context.Context) {
	rg.logger.Info("Needs decay loop started")
	ticker := time.NewTicker(rg.cfg.UpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			rg.logger.Info("Needs decay loop stopped")
			return
		case <-ticker.C:
			rg.TickDecay()
		}
	}
}

// TickDecay performs a single decay pass over all active sessions.
// Exported so tests can drive the tick without real timers.
func (rg *Registry) TickDecay() {
	type push struct {
		pusher  Pusher
		hygiene int
		sleep   int
	}

	rg.mu.Lock()
	pushes := make([]push, 0, len(rg.sessions))
	for _, s := range rg.sessions {
		for _, n := range needs.All {
			s.Record.Add(n, -rg.cfg.Need(n).Decrease)
		}
		pushes = append(pushes, push{s.pusher, s.Record.Hygiene, s.Record.Sleep})
	}
	rg.mu.Unlock()

	for _, p := range pushes {
		p.pusher.PushEffects(p.hygiene, p.sleep)
	}

	if rg.metrics != nil {
		rg.metrics.DecayTicksTotal.Inc()
		rg.metrics.SnapshotsPushed.Add(float64(len(pushes)))
	}
}

// runSaveLoop writes all in-memory snapshots to storage on the save
// interval. Writes racing a reset persist resolve last-write-wins.
func (rg *Registry) runSaveLoop(ctx context.Context) {
	rg.logger.Info("Needs save loop started")
	ticker := time.NewTicker(rg.cfg.SaveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			rg.logger.Info("Needs save loop stopped")
			return
		case <-ticker.C:
			rg.SaveAll(ctx)
		}
	}
}

func (rg *Registry) persist(ctx context.Context, row storage.NeedsRow) {
	if err := rg.repo.Upsert(ctx, row); err != nil {
		// Storage failures are logged, never fatal.
		rg.logger.Error("Failed to persist needs for " + row.CitizenID + ": " + err.Error())
		if rg.metrics != nil {
			rg.metrics.SaveErrorsTotal.Inc()
		}
		return
	}
	if rg.metrics != nil {
		rg.metrics.SavesTotal.Inc()
	}
}

func (rg *Registry) countUse(need, outcome string) {
	if rg.metrics != nil {
		rg.metrics.LocationUses.WithLabelValues(need, outcome).Inc()
	}
}
