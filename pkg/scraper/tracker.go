package scraper

import (
	"sync"
)

// Phase is one stage of the collection state machine.
type Phase string

const (
	PhaseIdle              Phase = "idle"
	PhaseAuthenticating    Phase = "authenticating"
	PhaseCollectingLive    Phase = "collecting_live"
	PhaseCollectingOffline Phase = "collecting_offline"
	PhaseEnriching         Phase = "enriching"
	PhaseExporting         Phase = "exporting"
	PhaseComplete          Phase = "complete"
	PhaseFailed            Phase = "failed"
)

// Counters accumulates per-phase progress.
type Counters struct {
	Processed int
	Found     int
	Errored   int
}

// Snapshot is a point-in-time copy of tracker state, safe to retain.
type Snapshot struct {
	Phase    Phase
	Counters map[Phase]Counters
}

// Count returns the counters for a phase, zero-valued when the phase has
// not run.
func (s Snapshot) Count(p Phase) Counters {
	return s.Counters[p]
}

// Errored sums the errored counter across all phases.
func (s Snapshot) Errored() int {
	total := 0
	for _, c := range s.Counters {
		total += c.Errored
	}
	return total
}

// Observer is notified synchronously after every tracker update.
type Observer func(Snapshot)

// Tracker accumulates phase counters. Reads never block the pipeline:
// updates take a write lock only long enough to bump integers, and
// Snapshot copies under a read lock.
type Tracker struct {
	mu       sync.RWMutex
	phase    Phase
	counters map[Phase]*Counters
	observer Observer
}

// NewTracker creates an idle tracker.
func NewTracker(observer Observer) *Tracker {
	return &Tracker{
		phase:    PhaseIdle,
		counters: make(map[Phase]*Counters),
		observer: observer,
	}
}

// Phase returns the current phase.
func (t *Tracker) Phase() Phase {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.phase
}

// SetPhase moves the tracker to a new phase.
func (t *Tracker) SetPhase(p Phase) {
	t.mu.Lock()
	t.phase = p
	t.mu.Unlock()
	t.notify()
}

// Add bumps the counters for a phase.
func (t *Tracker) Add(p Phase, processed, found, errored int) {
	t.mu.Lock()
	c := t.counters[p]
	if c == nil {
		c = &Counters{}
		t.counters[p] = c
	}
	c.Processed += processed
	c.Found += found
	c.Errored += errored
	t.mu.Unlock()
	t.notify()
}

// Snapshot returns a copy of the current state.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	snap := Snapshot{
		Phase:    t.phase,
		Counters: make(map[Phase]Counters, len(t.counters)),
	}
	for p, c := range t.counters {
		snap.Counters[p] = *c
	}
	return snap
}

func (t *Tracker) notify() {
	if t.observer != nil {
		t.observer(t.Snapshot())
	}
}
