package twitch

import (
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/nicklaw5/helix/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// refreshMargin is the remaining lifetime below which a cached credential
// is considered due for refresh.
const refreshMargin = 5 * time.Minute

// Credential is an opaque bearer token with its expiry instant. It is
// replaced wholesale on refresh, never mutated.
type Credential struct {
	Token     string
	ExpiresAt time.Time
}

// Valid reports whether the credential can still be used at the given
// instant, keeping the refresh safety margin.
func (c Credential) Valid(now time.Time) bool {
	return c.Token != "" && now.Add(refreshMargin).Before(c.ExpiresAt)
}

// tokenExchanger performs the client-credentials exchange. *helix.Client
// satisfies it.
type tokenExchanger interface {
	RequestAppAccessToken(scopes []string) (*helix.AppAccessTokenResponse, error)
}

// TokenManager owns the app access credential used by every request.
// Refreshes are deduplicated so concurrent callers observing an expired
// token trigger a single exchange.
type TokenManager struct {
	mu        sync.Mutex
	exchanger tokenExchanger
	clock     clockwork.Clock
	group     singleflight.Group
	cred      Credential
	logger    zerolog.Logger
}

// NewTokenManager creates a token manager around the given exchanger.
func NewTokenManager(exchanger tokenExchanger, clock clockwork.Clock, logger zerolog.Logger) *TokenManager {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &TokenManager{
		exchanger: exchanger,
		clock:     clock,
		logger:    logger,
	}
}

// Token returns a valid credential, performing the exchange if none is
// cached or the cached one is near expiry.
func (tm *TokenManager) Token() (Credential, error) {
	tm.mu.Lock()
	cred := tm.cred
	tm.mu.Unlock()

	if cred.Valid(tm.clock.Now()) {
		return cred, nil
	}

	v, err, _ := tm.group.Do("app-token", func() (interface{}, error) {
		// Another caller may have refreshed while we waited on the group.
		tm.mu.Lock()
		cred := tm.cred
		tm.mu.Unlock()
		if cred.Valid(tm.clock.Now()) {
			return cred, nil
		}
		return tm.exchange()
	})
	if err != nil {
		return Credential{}, err
	}
	return v.(Credential), nil
}

// Invalidate forces the next Token call to perform a fresh exchange.
// Called when a request observes an authorization rejection despite a
// seemingly valid cached token.
func (tm *TokenManager) Invalidate() {
	tm.mu.Lock()
	tm.cred = Credential{}
	tm.mu.Unlock()
	tm.logger.Debug().Msg("cached credential invalidated")
}

func (tm *TokenManager) exchange() (Credential, error) {
	resp, err := tm.exchanger.RequestAppAccessToken(nil)
	if err != nil {
		return Credential{}, &TransientError{Err: fmt.Errorf("token exchange: %w", err)}
	}
	if resp.StatusCode >= 400 {
		return Credential{}, fmt.Errorf("%w: exchange rejected with status %d: %s",
			ErrAuthentication, resp.StatusCode, resp.ErrorMessage)
	}
	if resp.Data.AccessToken == "" {
		return Credential{}, fmt.Errorf("%w: exchange returned empty token", ErrMalformedResponse)
	}

	cred := Credential{
		Token:     resp.Data.AccessToken,
		ExpiresAt: tm.clock.Now().Add(time.Duration(resp.Data.ExpiresIn) * time.Second),
	}

	tm.mu.Lock()
	tm.cred = cred
	tm.mu.Unlock()

	tm.logger.Info().
		Time("expires_at", cred.ExpiresAt).
		Msg("app access token acquired")

	return cred, nil
}
