// Package relay contains the client-resident interaction logic: the
// animated location interaction flow and the presentation reactions to
// server-pushed need snapshots (threshold warnings, sleep blackout loop).
//
// Host affordances (movement lock, animations, screen fades, toast
// notifications) sit behind the Presenter interface so the package runs
// and tests without a game host.
package relay

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/zwlucas/dsn-needs/internal/config"
	"github.com/zwlucas/dsn-needs/internal/domain/location"
	"github.com/zwlucas/dsn-needs/internal/domain/needs"
	"github.com/zwlucas/dsn-needs/internal/platform/logger"
)

// State tracks the interaction flow of the relay.
type State int

const (
	StateIdle State = iota
	StateAnimating
	StateAwaitingResult
)

// Presenter is the host-side presentation surface.
type Presenter interface {
	LockMovement()
	UnlockMovement()
	PlayAnimation(scenario, label string, duration time.Duration)
	Notify(text string)
	FadeOut(duration time.Duration)
	FadeIn(duration time.Duration)
}

// Requester performs the round-trip to the server role.
type Requester interface {
	UseLocation(ctx context.Context, need needs.Need) (bool, error)
}

// ErrBusy is returned when an interaction is started while another one is
// still in flight.
var ErrBusy = errors.New("interaction already in progress")

// ErrNoLocation is returned when no configured location is close enough
// to the player's position.
var ErrNoLocation = errors.New("no interaction location in range")

// Relay drives one player's client-side needs presentation.
type Relay struct {
	cfg       config.Config
	presenter Presenter
	requester Requester
	locations *location.Index
	logger    *logger.Logger

	mu    sync.Mutex
	state State
	abort chan struct{}

	warned       map[needs.Need]bool
	blackoutStop chan struct{}
}

// New creates a relay for one player.
func New(cfg config.Config, presenter Presenter, requester Requester, log *logger.Logger) *Relay {
	return &Relay{
		cfg:       cfg,
		presenter: presenter,
		requester: requester,
		locations: cfg.LocationIndex(),
		logger:    log,
		state:     StateIdle,
		warned:    make(map[needs.Need]bool),
	}
}

// StartInteractionAt resolves the configured location nearest to the
// player's position and runs the interaction for its need. Fails with
// ErrNoLocation when the player is not standing at any location.
func (r *Relay) StartInteractionAt(ctx context.Context, pos location.Point) (bool, error) {
	loc, ok := r.locations.WithinRange(pos, r.cfg.InteractRadius)
	if !ok {
		return false, ErrNoLocation
	}
	return r.StartInteraction(ctx, loc.Need)
}

// State returns the current interaction state.
func (r *Relay) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// StartInteraction runs the full interaction flow for one location:
// lock movement, play the configured animation, then ask the server for a
// reset and present the outcome. The animation wait is interruptible via
// Abort or context cancellation; an interrupted interaction makes no
// server request. Blocks until the flow finishes.
func (r *Relay) StartInteraction(ctx context.Context, need needs.Need) (bool, error) {
	nc := r.cfg.Need(need)

	r.mu.Lock()
	if r.state != StateIdle {
		r.mu.Unlock()
		return false, ErrBusy
	}
	r.state = StateAnimating
	r.abort = make(chan struct{})
	abort := r.abort
	r.mu.Unlock()

	r.presenter.LockMovement()
	r.presenter.PlayAnimation(nc.Animation.Scenario, nc.Animation.Label, nc.Animation.Duration)

	timer := time.NewTimer(nc.Animation.Duration)
	defer timer.Stop()

	select {
	case <-abort:
		r.presenter.UnlockMovement()
		r.setState(StateIdle)
		return false, nil
	case <-ctx.Done():
		r.presenter.UnlockMovement()
		r.setState(StateIdle)
		return false, ctx.Err()
	case <-timer.C:
	}

	r.presenter.UnlockMovement()
	r.setState(StateAwaitingResult)
	defer r.setState(StateIdle)

	ok, err := r.requester.UseLocation(ctx, need)
	if err != nil {
		r.logger.Error("useLocation request failed: " + err.Error())
		return false, err
	}

	if ok {
		r.presenter.Notify(r.cfg.SuccessMessage)
	} else {
		r.presenter.Notify(r.cfg.CooldownMessage)
	}
	return ok, nil
}

// Abort interrupts a running animation. No-op outside the animating state.
func (r *Relay) Abort() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == StateAnimating && r.abort != nil {
		close(r.abort)
		r.abort = nil
	}
}

// HandleSnapshot reacts to a server-pushed need snapshot: one-shot
// warnings when a need crosses below its threshold, and the repeating
// blackout loop while sleep stays below its threshold.
func (r *Relay) HandleSnapshot(hygiene, sleep int) {
	values := map[needs.Need]int{
		needs.NeedHygiene: hygiene,
		needs.NeedSleep:   sleep,
	}

	for _, n := range needs.All {
		nc := r.cfg.Need(n)
		v := values[n]

		r.mu.Lock()
		warned := r.warned[n]
		if v < nc.Threshold && !warned {
			r.warned[n] = true
			r.mu.Unlock()
			r.presenter.Notify(nc.Warning)
			continue
		}
		if v >= nc.Threshold && warned {
			// Re-arm once the need recovers.
			r.warned[n] = false
		}
		r.mu.Unlock()
	}

	sleepThreshold := r.cfg.Need(needs.NeedSleep).Threshold
	if sleep < sleepThreshold {
		r.startBlackout()
	} else {
		r.stopBlackout()
	}
}

// BlackoutActive reports whether the sleep deprivation loop is running.
func (r *Relay) BlackoutActive() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.blackoutStop != nil
}

func (r *Relay) startBlackout() {
	r.mu.Lock()
	if r.blackoutStop != nil {
		r.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	r.blackoutStop = stop
	r.mu.Unlock()

	go r.runBlackout(stop)
}

func (r *Relay) stopBlackout() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.blackoutStop != nil {
		close(r.blackoutStop)
		r.blackoutStop = nil
	}
}

// runBlackout repeats the fade-out/fade-in cycle until stopped. The
// screen always fades back in before the loop exits.
func (r *Relay) runBlackout(stop <-chan struct{}) {
	for {
		r.presenter.FadeOut(r.cfg.BlackoutFadeOut)
		select {
		case <-stop:
			r.presenter.FadeIn(r.cfg.BlackoutFadeIn)
			return
		case <-time.After(r.cfg.BlackoutFadeOut + r.cfg.BlackoutHold):
		}

		r.presenter.FadeIn(r.cfg.BlackoutFadeIn)
		select {
		case <-stop:
			return
		case <-time.After(r.cfg.BlackoutFadeIn + r.cfg.BlackoutHold):
		}
	}
}

func (r *Relay) setState(s State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}
