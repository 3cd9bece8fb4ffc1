// Package needs defines the core domain entities for player needs.
// This package is PURE and must NOT import any infrastructure packages (network, store, platform).
package needs

import (
	"fmt"
	"time"
)

// Need identifies one of the tracked player statistics.
type Need string

const (
	NeedHygiene Need = "hygiene"
	NeedSleep   Need = "sleep"
)

// All lists every tracked need in a stable order.
var All = []Need{NeedHygiene, NeedSleep}

// ParseNeed validates a need name coming from the wire or from config.
func ParseNeed(name string) (Need, error) {
	switch Need(name) {
	case NeedHygiene:
		return NeedHygiene, nil
	case NeedSleep:
		return NeedSleep, nil
	}
	return "", fmt.Errorf("unknown need %q", name)
}

// Clamp bounds a need value to the valid [0,100] range.
func Clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// Record represents the in-memory needs state of one player.
// Keyed by the stable citizen id, not the transient connection id.
// LastUsed is in-memory only and is never persisted.
type Record struct {
	CitizenID string             `json:"citizenid"`
	Hygiene   int                `json:"hygiene"` // 0-100 (0 = filthy)
	Sleep     int                `json:"sleep"`   // 0-100 (0 = exhausted)
	LastUsed  map[Need]time.Time `json:"-"`
}

// NewRecord creates a fresh record with full needs.
func NewRecord(citizenID string) *Record {
	return &Record{
		CitizenID: citizenID,
		Hygiene:   100,
		Sleep:     100,
		LastUsed:  make(map[Need]time.Time),
	}
}

// Value returns the current value of a need. Unknown needs read as 0.
func (r *Record) Value(need Need) int {
	switch need {
	case NeedHygiene:
		return r.Hygiene
	case NeedSleep:
		return r.Sleep
	}
	return 0
}

// Set stores a clamped value and reports whether the stored value changed.
func (r *Record) Set(need Need, v int) bool {
	v = Clamp(v)
	switch need {
	case NeedHygiene:
		if r.Hygiene == v {
			return false
		}
		r.Hygiene = v
		return true
	case NeedSleep:
		if r.Sleep == v {
			return false
		}
		r.Sleep = v
		return true
	}
	return false
}

// Add applies a signed delta with clamping.
func (r *Record) Add(need Need, delta int) bool {
	return r.Set(need, r.Value(need)+delta)
}

// Reset restores a need to 100 and stamps its last-used time.
func (r *Record) Reset(need Need, now time.Time) {
	r.Set(need, 100)
	if r.LastUsed == nil {
		r.LastUsed = make(map[Need]time.Time)
	}
	r.LastUsed[need] = now
}

// CanUse reports whether the cooldown for a need has elapsed.
// A need that was never used is always usable.
func (r *Record) CanUse(need Need, cooldown time.Duration, now time.Time) bool {
	last, ok := r.LastUsed[need]
	if !ok {
		return true
	}
	return now.Sub(last) >= cooldown
}
