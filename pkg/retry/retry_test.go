package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTransient = errors.New("transient")

func fastPolicy() Policy {
	return Policy{
		MaxAttempts:      3,
		InitialBackoff:   time.Millisecond,
		MaxBackoff:       5 * time.Millisecond,
		RateLimitBackoff: 2 * time.Millisecond,
	}
}

func alwaysRetry(error) Action { return Retry }

func TestDo_SucceedsFirstAttempt(t *testing.T) {
	calls := 0
	val, err := Do(context.Background(), fastPolicy(), alwaysRetry, func() (int, error) {
		calls++
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, val)
	assert.Equal(t, 1, calls)
}

func TestDo_RetriesTransientThenSucceeds(t *testing.T) {
	calls := 0
	val, err := Do(context.Background(), fastPolicy(), alwaysRetry, func() (string, error) {
		calls++
		if calls < 3 {
			return "", errTransient
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", val)
	assert.Equal(t, 3, calls)
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), fastPolicy(), alwaysRetry, func() (int, error) {
		calls++
		return 0, errTransient
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, errTransient)
	assert.Equal(t, 3, calls)
}

func TestDo_StopsOnPermanentError(t *testing.T) {
	calls := 0
	permanent := errors.New("bad credentials")
	classify := func(err error) Action {
		if errors.Is(err, permanent) {
			return Stop
		}
		return Retry
	}

	_, err := Do(context.Background(), fastPolicy(), classify, func() (int, error) {
		calls++
		return 0, permanent
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)

	var perm *PermanentError
	assert.ErrorAs(t, err, &perm)
	assert.ErrorIs(t, err, permanent)
}

func TestDo_ContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	p := fastPolicy()
	p.InitialBackoff = time.Minute

	calls := 0
	start := time.Now()
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := Do(ctx, p, alwaysRetry, func() (int, error) {
		calls++
		return 0, errTransient
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestDo_RateLimitedUsesLongerBackoff(t *testing.T) {
	throttled := errors.New("throttled")
	classify := func(err error) Action {
		if errors.Is(err, throttled) {
			return After
		}
		return Retry
	}

	p := fastPolicy()
	p.InitialBackoff = time.Millisecond
	p.RateLimitBackoff = 50 * time.Millisecond

	calls := 0
	start := time.Now()
	_, err := Do(context.Background(), p, classify, func() (int, error) {
		calls++
		if calls == 1 {
			return 0, throttled
		}
		return 1, nil
	})
	require.NoError(t, err)
	// 50ms backoff with -20% jitter still waits at least 40ms.
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}
