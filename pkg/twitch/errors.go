package twitch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/streamscout/twitch-scout/pkg/retry"
)

// Sentinel errors for the failure taxonomy.
var (
	// ErrAuthentication indicates the credential exchange rejected the
	// configured secrets, or a token was rejected even after a forced
	// refresh. Not recoverable without new secrets.
	ErrAuthentication = errors.New("authentication failed")

	// ErrMalformedResponse indicates the upstream answered with something
	// the client cannot interpret. Aborts the current phase.
	ErrMalformedResponse = errors.New("malformed response")
)

// ThrottledError signals an explicit rate-limit response. Recoverable:
// the gate is suspended for ResetAfter and the request retried.
type ThrottledError struct {
	ResetAfter time.Duration
}

func (e *ThrottledError) Error() string {
	return fmt.Sprintf("throttled by upstream, reset in %s", e.ResetAfter)
}

// TransientError covers network failures and 5xx responses, recoverable
// up to the retry attempt ceiling.
type TransientError struct {
	StatusCode int
	Err        error
}

func (e *TransientError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transient upstream error (status %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("transient network error: %v", e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// APIError is a non-retriable upstream rejection (4xx other than 401/429).
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("helix error (status %d): %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error { return ErrMalformedResponse }

// ClassifyForRetry maps client errors onto retry actions: throttling waits
// out the reset hint, transient errors use normal backoff, everything else
// aborts immediately.
func ClassifyForRetry(err error) retry.Action {
	var throttled *ThrottledError
	if errors.As(err, &throttled) {
		return retry.After
	}
	var transient *TransientError
	if errors.As(err, &transient) {
		return retry.Retry
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return retry.Retry
	}
	return retry.Stop
}
