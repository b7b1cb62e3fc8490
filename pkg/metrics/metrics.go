// Package metrics provides the centralized Prometheus metrics registry for
// the scraper. All metrics are defined in their respective packages
// (twitch, ratelimit, retry, cache, scraper) to maintain modularity and
// avoid circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the scraper.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Rate Gate Metrics (pkg/ratelimit):
//   - twitch_gate_permits_total (Counter): Permits granted by the sliding-window gate
//   - twitch_gate_wait_seconds (Histogram): Time spent waiting for a permit
//   - twitch_gate_throttles_total (Counter): Upstream throttle responses that suspended the gate
//
// Request Metrics (pkg/twitch):
//   - twitch_helix_requests_total{endpoint, status} (Counter): Helix calls by endpoint and HTTP status
//   - twitch_helix_request_duration_seconds{endpoint} (Histogram): Helix call duration by endpoint
//
// Retry Metrics (pkg/retry):
//   - twitch_retries_total{action} (Counter): Retry attempts by classification action
//   - twitch_retry_exhausted_total (Counter): Operations that exhausted max attempts
//
// Profile Cache Metrics (pkg/cache):
//   - twitch_profile_cache_hits_total (Counter): Enrichment profiles served from Redis
//   - twitch_profile_cache_misses_total (Counter): Enrichment profiles not in Redis
//   - twitch_profile_cache_errors_total (Counter): Redis operation errors
//
// Pipeline Metrics (pkg/scraper):
//   - twitch_scout_phase_duration_seconds{phase} (Histogram): Duration of each pipeline phase
//   - twitch_scout_runs_total{result} (Counter): Pipeline runs by result (complete, failed)
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(twitch_profile_cache_hits_total[5m])) /
//   (sum(rate(twitch_profile_cache_hits_total[5m])) + sum(rate(twitch_profile_cache_misses_total[5m])))
//
//   # Throttle Rate
//   rate(twitch_gate_throttles_total[5m])
//
//   # P95 Helix Latency
//   histogram_quantile(0.95, rate(twitch_helix_request_duration_seconds_bucket[5m]))
//
//   # Run Failure Ratio
//   rate(twitch_scout_runs_total{result="failed"}[1h]) / rate(twitch_scout_runs_total[1h])
