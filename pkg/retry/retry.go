// Package retry provides a small reusable backoff policy applied at every
// phase-level network call.
package retry

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for retry operations.
var (
	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "twitch_retries_total",
		Help: "Total retry attempts by action",
	}, []string{"action"})

	retryExhaustedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "twitch_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted",
	})
)

// Action tells the policy how to treat a failed attempt.
type Action int

const (
	// Stop marks a permanent error, aborting immediately.
	Stop Action = iota

	// Retry marks a transient error, retried with normal backoff.
	Retry

	// After marks a rate-limited error, retried with the longer backoff.
	After
)

func (a Action) String() string {
	switch a {
	case Stop:
		return "stop"
	case Retry:
		return "retry"
	case After:
		return "after"
	default:
		return "unknown"
	}
}

// Policy holds the retry configuration.
type Policy struct {
	MaxAttempts      int
	InitialBackoff   time.Duration
	MaxBackoff       time.Duration
	RateLimitBackoff time.Duration
}

// DefaultPolicy returns the policy used at phase boundaries.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:      3,
		InitialBackoff:   time.Second,
		MaxBackoff:       30 * time.Second,
		RateLimitBackoff: 5 * time.Second,
	}
}

// Classify maps an error to the action the policy should take.
type Classify func(err error) Action

// Operation is a retriable operation returning a value.
type Operation[T any] func() (T, error)

// PermanentError wraps an error classified as Stop.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Do executes op under the policy. Backoff doubles per attempt, capped at
// MaxBackoff, with ±20% jitter to avoid synchronized retries. Context
// cancellation interrupts the backoff wait.
func Do[T any](ctx context.Context, p Policy, classify Classify, op Operation[T]) (T, error) {
	var zero T
	var lastErr error
	backoff := p.InitialBackoff

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		val, err := op()
		if err == nil {
			if attempt > 1 {
				log.Info().Int("attempt", attempt).Msg("operation succeeded after retry")
			}
			return val, nil
		}
		lastErr = err

		action := classify(err)
		if action == Stop {
			return zero, &PermanentError{Err: err}
		}

		if attempt == p.MaxAttempts {
			break
		}

		if action == After {
			backoff = p.RateLimitBackoff
		}

		retriesTotal.WithLabelValues(action.String()).Inc()

		jittered := time.Duration(float64(backoff) * (0.8 + rand.Float64()*0.4))
		log.Debug().
			Int("attempt", attempt).
			Dur("backoff", jittered).
			Str("action", action.String()).
			Err(err).
			Msg("retrying after backoff")

		select {
		case <-ctx.Done():
			return zero, fmt.Errorf("context cancelled during retry: %w", ctx.Err())
		case <-time.After(jittered):
		}

		backoff *= 2
		if backoff > p.MaxBackoff {
			backoff = p.MaxBackoff
		}
	}

	retryExhaustedTotal.Inc()
	log.Warn().Int("max_attempts", p.MaxAttempts).Err(lastErr).Msg("retry attempts exhausted")
	return zero, fmt.Errorf("failed after %d attempts: %w", p.MaxAttempts, lastErr)
}
