// Package ratelimit implements the throttled request gate that bounds
// outbound Helix request rate. Permits are tracked over a sliding window
// rather than a reset-every-minute bucket, so a burst right after a quiet
// period cannot exceed the budget.
package ratelimit

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for gate operations.
var (
	gatePermitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "twitch_gate_permits_total",
		Help: "Total permits granted by the request gate",
	})

	gateWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "twitch_gate_wait_seconds",
		Help:    "Time spent waiting for a gate permit",
		Buckets: []float64{0.01, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
	})

	gateThrottlesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "twitch_gate_throttles_total",
		Help: "Total throttling signals reported to the gate",
	})
)

// DefaultBudget is the Helix app-token budget of 800 requests per minute.
const DefaultBudget = 800

// DefaultWindow is the rolling window over which the budget applies.
const DefaultWindow = time.Minute

// maxThrottleJitter bounds the random offset added to a throttle suspension
// so repeated runs do not retry in lockstep.
const maxThrottleJitter = 500 * time.Millisecond

// Gate bounds outbound request rate to a fixed budget per rolling window.
// It is safe for concurrent acquisition; all callers share one window.
type Gate struct {
	mu             sync.Mutex
	clock          clockwork.Clock
	budget         int
	window         time.Duration
	grants         []time.Time
	suspendedUntil time.Time
	jitter         func() time.Duration
	logger         zerolog.Logger
}

// NewGate creates a gate granting at most budget permits per window.
func NewGate(budget int, window time.Duration, clock clockwork.Clock, logger zerolog.Logger) *Gate {
	if budget <= 0 {
		budget = DefaultBudget
	}
	if window <= 0 {
		window = DefaultWindow
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Gate{
		clock:  clock,
		budget: budget,
		window: window,
		grants: make([]time.Time, 0, budget),
		jitter: func() time.Duration {
			return time.Duration(rand.Int63n(int64(maxThrottleJitter)))
		},
		logger: logger,
	}
}

// Acquire blocks until a permit is available under the budget, then returns.
// The caller performs exactly one request per successful call. The only
// failure mode is context cancellation; the gate itself never fails.
func (g *Gate) Acquire(ctx context.Context) error {
	start := g.clock.Now()
	for {
		wait, ok := g.tryAcquire()
		if ok {
			gatePermitsTotal.Inc()
			gateWaitSeconds.Observe(g.clock.Since(start).Seconds())
			return nil
		}

		g.logger.Debug().
			Dur("wait", wait).
			Int("budget", g.budget).
			Msg("gate saturated, waiting for permit")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-g.clock.After(wait):
		}
	}
}

// tryAcquire grants a permit if one is available, otherwise returns how long
// to wait before the next permit could free up.
func (g *Gate) tryAcquire() (time.Duration, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock.Now()
	g.prune(now)

	if now.Before(g.suspendedUntil) {
		return g.suspendedUntil.Sub(now), false
	}

	if len(g.grants) < g.budget {
		g.grants = append(g.grants, now)
		return 0, true
	}

	// Window is full: the oldest grant leaves it at grants[0]+window.
	return g.grants[0].Add(g.window).Sub(now), false
}

// prune drops grants that have slid out of the window.
func (g *Gate) prune(now time.Time) {
	cutoff := now.Add(-g.window)
	i := 0
	for i < len(g.grants) && !g.grants[i].After(cutoff) {
		i++
	}
	if i > 0 {
		g.grants = append(g.grants[:0], g.grants[i:]...)
	}
}

// Throttled reports an explicit rate-limit signal from downstream. Permits
// are suspended until resetHint elapses, plus a small random jitter.
func (g *Gate) Throttled(resetHint time.Duration) {
	if resetHint < 0 {
		resetHint = 0
	}

	g.mu.Lock()
	until := g.clock.Now().Add(resetHint + g.jitter())
	if until.After(g.suspendedUntil) {
		g.suspendedUntil = until
	}
	suspended := g.suspendedUntil
	g.mu.Unlock()

	gateThrottlesTotal.Inc()
	g.logger.Warn().
		Dur("reset_hint", resetHint).
		Time("suspended_until", suspended).
		Msg("throttling signal received, suspending permits")
}
