// Package twitch wraps the Helix API behind a rate-limited, token-managed
// client. Every call acquires a gate permit, carries a valid app access
// token, and classifies upstream failures for the retry policy.
package twitch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/nicklaw5/helix/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/streamscout/twitch-scout/pkg/ratelimit"
	"github.com/streamscout/twitch-scout/pkg/retry"
)

// Prometheus metrics for Helix client operations.
var (
	helixRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "twitch_helix_requests_total",
		Help: "Total Helix requests by endpoint and status",
	}, []string{"endpoint", "status"})

	helixRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "twitch_helix_request_duration_seconds",
		Help:    "Helix request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})
)

// MaxPageSize is the Helix per-page item ceiling.
const MaxPageSize = 100

// helixAPI is the slice of *helix.Client this package uses. Tests swap in
// a fake.
type helixAPI interface {
	RequestAppAccessToken(scopes []string) (*helix.AppAccessTokenResponse, error)
	SetAppAccessToken(token string)
	GetStreams(params *helix.StreamsParams) (*helix.StreamsResponse, error)
	SearchChannels(params *helix.SearchChannelsParams) (*helix.SearchChannelsResponse, error)
	GetUsers(params *helix.UsersParams) (*helix.UsersResponse, error)
	GetGames(params *helix.GamesParams) (*helix.GamesResponse, error)
}

// Config holds the client configuration.
type Config struct {
	ClientID     string
	ClientSecret string

	// UserAgent identifies this tool to the API.
	UserAgent string

	// RateLimit is the permit budget per rolling minute.
	RateLimit int

	// RequestTimeout bounds each HTTP request.
	RequestTimeout time.Duration

	// Retry is the per-call retry policy.
	Retry retry.Policy

	// Clock is injectable for tests.
	Clock clockwork.Clock
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(clientID, clientSecret string) Config {
	return Config{
		ClientID:       clientID,
		ClientSecret:   clientSecret,
		UserAgent:      "twitch-scout/0.1.0",
		RateLimit:      ratelimit.DefaultBudget,
		RequestTimeout: 30 * time.Second,
		Retry:          retry.DefaultPolicy(),
		Clock:          clockwork.NewRealClock(),
	}
}

// Client is the rate-limited Helix API client.
type Client struct {
	mu     sync.Mutex
	api    helixAPI
	tokens *TokenManager
	gate   *ratelimit.Gate
	retry  retry.Policy
	clock  clockwork.Clock
	logger zerolog.Logger
}

// New creates a Helix client from the configuration.
func New(cfg Config, logger zerolog.Logger) (*Client, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("client id and secret are required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = retry.DefaultPolicy()
	}

	hx, err := helix.NewClient(&helix.Options{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		UserAgent:    cfg.UserAgent,
		HTTPClient:   &http.Client{Timeout: cfg.RequestTimeout},
	})
	if err != nil {
		return nil, fmt.Errorf("create helix client: %w", err)
	}

	return &Client{
		api:    hx,
		tokens: NewTokenManager(hx, clock, logger),
		gate:   ratelimit.NewGate(cfg.RateLimit, ratelimit.DefaultWindow, clock, logger),
		retry:  cfg.Retry,
		clock:  clock,
		logger: logger,
	}, nil
}

// newWithAPI builds a client around a fake API (tests only).
func newWithAPI(api helixAPI, gate *ratelimit.Gate, clock clockwork.Clock, logger zerolog.Logger) *Client {
	return &Client{
		api:    api,
		tokens: NewTokenManager(api, clock, logger),
		gate:   gate,
		retry: retry.Policy{
			MaxAttempts:      3,
			InitialBackoff:   time.Millisecond,
			MaxBackoff:       5 * time.Millisecond,
			RateLimitBackoff: time.Millisecond,
		},
		clock:  clock,
		logger: logger,
	}
}

// Authenticate eagerly performs the credential exchange and returns the
// resulting credential. Used by the pipeline's authentication phase and
// the auth CLI command. No gate permit is consumed: a cached credential
// issues no request, and permits belong to the endpoint calls in execute.
func (c *Client) Authenticate(ctx context.Context) (Credential, error) {
	if err := ctx.Err(); err != nil {
		return Credential{}, err
	}
	return c.tokens.Token()
}

// InvalidateToken forces a fresh exchange on the next request.
func (c *Client) InvalidateToken() { c.tokens.Invalidate() }

// StreamsQuery filters the live streams listing.
type StreamsQuery struct {
	GameID   string
	Language string
	First    int
	After    string
}

// StreamPage is one page of live streams with the pagination cursor.
type StreamPage struct {
	Streams []helix.Stream
	Cursor  string
}

// GetStreams fetches one page of live streams matching the query.
func (c *Client) GetStreams(ctx context.Context, q StreamsQuery) (StreamPage, error) {
	params := &helix.StreamsParams{
		First: clampPageSize(q.First),
		After: q.After,
	}
	if q.GameID != "" {
		params.GameIDs = []string{q.GameID}
	}
	if q.Language != "" {
		params.Language = []string{q.Language}
	}

	return do(ctx, c, "streams", func() (StreamPage, *helix.ResponseCommon, error) {
		resp, err := c.api.GetStreams(params)
		if err != nil {
			return StreamPage{}, nil, err
		}
		page := StreamPage{Streams: resp.Data.Streams, Cursor: resp.Data.Pagination.Cursor}
		return page, &resp.ResponseCommon, nil
	})
}

// ChannelsQuery filters the channel search listing.
type ChannelsQuery struct {
	Query    string
	First    int
	After    string
	LiveOnly bool
}

// ChannelPage is one page of channel search results.
type ChannelPage struct {
	Channels []helix.Channel
	Cursor   string
}

// SearchChannels fetches one page of channels matching the query.
func (c *Client) SearchChannels(ctx context.Context, q ChannelsQuery) (ChannelPage, error) {
	params := &helix.SearchChannelsParams{
		Channel:  q.Query,
		First:    clampPageSize(q.First),
		After:    q.After,
		LiveOnly: q.LiveOnly,
	}

	return do(ctx, c, "search/channels", func() (ChannelPage, *helix.ResponseCommon, error) {
		resp, err := c.api.SearchChannels(params)
		if err != nil {
			return ChannelPage{}, nil, err
		}
		page := ChannelPage{Channels: resp.Data.Channels, Cursor: resp.Data.Pagination.Cursor}
		return page, &resp.ResponseCommon, nil
	})
}

// GetUsersByID fetches profile details for up to MaxPageSize user ids.
// Identities the upstream cannot resolve are simply absent from the result.
func (c *Client) GetUsersByID(ctx context.Context, ids []string) ([]helix.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	if len(ids) > MaxPageSize {
		return nil, fmt.Errorf("at most %d ids per lookup, got %d", MaxPageSize, len(ids))
	}
	params := &helix.UsersParams{IDs: ids}

	return do(ctx, c, "users", func() ([]helix.User, *helix.ResponseCommon, error) {
		resp, err := c.api.GetUsers(params)
		if err != nil {
			return nil, nil, err
		}
		return resp.Data.Users, &resp.ResponseCommon, nil
	})
}

// GetGamesByName looks up games by their exact names. Unknown names are
// simply absent from the result.
func (c *Client) GetGamesByName(ctx context.Context, names []string) ([]helix.Game, error) {
	if len(names) == 0 {
		return nil, nil
	}
	params := &helix.GamesParams{Names: names}

	return do(ctx, c, "games", func() ([]helix.Game, *helix.ResponseCommon, error) {
		resp, err := c.api.GetGames(params)
		if err != nil {
			return nil, nil, err
		}
		return resp.Data.Games, &resp.ResponseCommon, nil
	})
}

// ResolveGameID looks up a game id by exact name. Returns an empty string
// when the game is unknown.
func (c *Client) ResolveGameID(ctx context.Context, name string) (string, error) {
	games, err := c.GetGamesByName(ctx, []string{name})
	if err != nil {
		return "", err
	}
	if len(games) == 0 {
		return "", nil
	}
	return games[0].ID, nil
}

func clampPageSize(first int) int {
	if first <= 0 || first > MaxPageSize {
		return MaxPageSize
	}
	return first
}

// do runs one Helix call under the gate, token manager, and retry policy.
func do[T any](ctx context.Context, c *Client, endpoint string, fn func() (T, *helix.ResponseCommon, error)) (T, error) {
	start := c.clock.Now()
	defer func() {
		helixRequestDuration.WithLabelValues(endpoint).Observe(c.clock.Since(start).Seconds())
	}()

	return retry.Do(ctx, c.retry, ClassifyForRetry, func() (T, error) {
		return attempt(ctx, c, endpoint, fn)
	})
}

// attempt issues a single gated, authenticated request. A 401 triggers
// exactly one refresh-and-retry before being treated as an authentication
// failure.
func attempt[T any](ctx context.Context, c *Client, endpoint string, fn func() (T, *helix.ResponseCommon, error)) (T, error) {
	var zero T

	val, rc, err := execute(ctx, c, endpoint, fn)
	if err != nil {
		return zero, err
	}

	if rc.StatusCode == http.StatusUnauthorized {
		c.logger.Warn().Str("endpoint", endpoint).Msg("token rejected, forcing refresh")
		c.tokens.Invalidate()

		val, rc, err = execute(ctx, c, endpoint, fn)
		if err != nil {
			return zero, err
		}
		if rc.StatusCode == http.StatusUnauthorized {
			helixRequestsTotal.WithLabelValues(endpoint, "401").Inc()
			return zero, fmt.Errorf("%w: token rejected after refresh", ErrAuthentication)
		}
	}

	helixRequestsTotal.WithLabelValues(endpoint, fmt.Sprintf("%d", rc.StatusCode)).Inc()

	switch {
	case rc.StatusCode == http.StatusTooManyRequests:
		hint := c.resetHint(rc)
		c.gate.Throttled(hint)
		return zero, &ThrottledError{ResetAfter: hint}
	case rc.StatusCode >= 500:
		return zero, &TransientError{StatusCode: rc.StatusCode, Err: errors.New(rc.ErrorMessage)}
	case rc.StatusCode >= 400:
		return zero, &APIError{StatusCode: rc.StatusCode, Message: rc.ErrorMessage}
	}

	return val, nil
}

// execute acquires a permit, attaches a valid token, and runs one request.
// Gate and token errors pass through already typed; body decode failures
// surface as ErrMalformedResponse, other raw request failures as
// TransientError.
func execute[T any](ctx context.Context, c *Client, endpoint string, fn func() (T, *helix.ResponseCommon, error)) (T, *helix.ResponseCommon, error) {
	var zero T

	if err := c.gate.Acquire(ctx); err != nil {
		return zero, nil, err
	}

	cred, err := c.tokens.Token()
	if err != nil {
		return zero, nil, err
	}

	// The underlying helix client stores the token as mutable state, so
	// setting it and issuing the request must not interleave.
	c.mu.Lock()
	c.api.SetAppAccessToken(cred.Token)
	val, rc, err := fn()
	c.mu.Unlock()
	if err != nil {
		var syntaxErr *json.SyntaxError
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
			helixRequestsTotal.WithLabelValues(endpoint, "decode_error").Inc()
			return zero, nil, fmt.Errorf("%w: decode %s response: %v", ErrMalformedResponse, endpoint, err)
		}
		helixRequestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		return zero, nil, &TransientError{Err: err}
	}
	return val, rc, nil
}

// resetHint converts the Ratelimit-Reset header (unix seconds) into a
// duration from now. Falls back to one second when absent or in the past.
func (c *Client) resetHint(rc *helix.ResponseCommon) time.Duration {
	reset := rc.GetRateLimitReset()
	if reset <= 0 {
		return time.Second
	}
	hint := time.Unix(int64(reset), 0).Sub(c.clock.Now())
	if hint <= 0 {
		return time.Second
	}
	return hint
}
