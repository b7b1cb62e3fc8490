// Package cache provides an optional Redis-backed TTL cache for enriched
// user profiles. The enricher consults it before issuing batch lookups so
// repeated runs do not refetch unchanged profiles. It stores nothing but
// short-lived profile snapshots; collected result sets are never persisted.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Prometheus metrics for profile cache operations.
var (
	cacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "twitch_profile_cache_hits_total",
		Help: "Total profile cache hits",
	})

	cacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "twitch_profile_cache_misses_total",
		Help: "Total profile cache misses",
	})

	cacheErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "twitch_profile_cache_errors_total",
		Help: "Total profile cache operation errors",
	}, []string{"operation"})
)

// ErrCacheMiss indicates the requested profile is not cached.
var ErrCacheMiss = errors.New("cache miss")

// DefaultTTL is how long a cached profile stays fresh. Descriptions and
// broadcaster tiers change rarely; an hour keeps repeat runs cheap without
// serving stale contact info for long.
const DefaultTTL = time.Hour

// Profile is the cached slice of a user's enrichment data.
type Profile struct {
	ID              string    `json:"id"`
	Login           string    `json:"login"`
	DisplayName     string    `json:"display_name"`
	BroadcasterType string    `json:"broadcaster_type"`
	Description     string    `json:"description"`
	CachedAt        time.Time `json:"cached_at"`
}

// ProfileCache caches enrichment profiles in Redis keyed by user id.
type ProfileCache struct {
	redis  *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// NewProfileCache creates a profile cache. TTL <= 0 uses DefaultTTL.
func NewProfileCache(redisClient *redis.Client, ttl time.Duration, logger zerolog.Logger) *ProfileCache {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &ProfileCache{redis: redisClient, ttl: ttl, logger: logger}
}

func profileKey(id string) string {
	return "twitch:user:" + id
}

// Get retrieves one cached profile. Returns ErrCacheMiss when absent.
func (c *ProfileCache) Get(ctx context.Context, id string) (*Profile, error) {
	data, err := c.redis.Get(ctx, profileKey(id)).Bytes()
	if err != nil {
		if err == redis.Nil {
			cacheMisses.Inc()
			return nil, ErrCacheMiss
		}
		cacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var p Profile
	if err := json.Unmarshal(data, &p); err != nil {
		cacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("unmarshal profile: %w", err)
	}

	cacheHits.Inc()
	return &p, nil
}

// GetMany retrieves all cached profiles among ids in one round trip.
// Missing ids are simply absent from the result, never an error.
func (c *ProfileCache) GetMany(ctx context.Context, ids []string) (map[string]Profile, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = profileKey(id)
	}

	values, err := c.redis.MGet(ctx, keys...).Result()
	if err != nil {
		cacheErrors.WithLabelValues("mget").Inc()
		return nil, fmt.Errorf("redis mget: %w", err)
	}

	found := make(map[string]Profile)
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			cacheMisses.Inc()
			continue
		}
		var p Profile
		if err := json.Unmarshal([]byte(s), &p); err != nil {
			c.logger.Warn().Str("id", ids[i]).Err(err).Msg("dropping corrupt cache entry")
			cacheErrors.WithLabelValues("mget").Inc()
			continue
		}
		cacheHits.Inc()
		found[ids[i]] = p
	}
	return found, nil
}

// Set stores one profile under the cache TTL.
func (c *ProfileCache) Set(ctx context.Context, p Profile) error {
	if p.ID == "" {
		return fmt.Errorf("profile id is required")
	}
	if p.CachedAt.IsZero() {
		p.CachedAt = time.Now()
	}

	data, err := json.Marshal(p)
	if err != nil {
		cacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("marshal profile: %w", err)
	}

	if err := c.redis.Set(ctx, profileKey(p.ID), data, c.ttl).Err(); err != nil {
		cacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("redis set: %w", err)
	}

	c.logger.Debug().Str("id", p.ID).Dur("ttl", c.ttl).Msg("profile cached")
	return nil
}

// Delete removes a cached profile.
func (c *ProfileCache) Delete(ctx context.Context, id string) error {
	if err := c.redis.Del(ctx, profileKey(id)).Err(); err != nil {
		cacheErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
