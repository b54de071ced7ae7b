// Package metrics provides centralized Prometheus metrics reference for the
// MOTD server. All metrics are defined in their respective packages (cache,
// rotation, ratelimit, server, monitor) to maintain modularity and avoid
// circular dependencies.
//
// This package provides documentation and the registry handle used by the
// /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the server. All
// metrics are automatically registered via promauto in their respective
// packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Cache Metrics (pkg/cache):
//   - ultramotd_cache_hits_total{cache} (Counter): Cache hits by cache name
//   - ultramotd_cache_misses_total{cache} (Counter): Cache misses by cache name
//   - ultramotd_cache_evictions_total{cache} (Counter): Evicted entries by cache name
//   - ultramotd_cache_entries{cache} (Gauge): Current entry count by cache name
//
// Rotation Metrics (pkg/rotation):
//   - ultramotd_rotations_total{strategy} (Counter): MOTD rotations by strategy
//
// Rate Limit Metrics (pkg/ratelimit, pkg/monitor):
//   - ultramotd_ratelimit_denied_total (Counter): Pings denied by the limiter
//   - ultramotd_ratelimit_tracked_sources (Gauge): Source addresses currently tracked
//
// Server Metrics (pkg/server):
//   - ultramotd_connections_total{outcome} (Counter): Connections by outcome
//     (served, dropped, fallthrough, rejected, error)
//
// Example Prometheus Queries:
//
//   # Packet Cache Hit Rate
//   sum(rate(ultramotd_cache_hits_total{cache="packet"}[5m])) /
//   (sum(rate(ultramotd_cache_hits_total{cache="packet"}[5m])) +
//    sum(rate(ultramotd_cache_misses_total{cache="packet"}[5m])))
//
//   # Denied Ping Rate
//   rate(ultramotd_ratelimit_denied_total[5m])
//
//   # Served vs Dropped Connections
//   sum by (outcome) (rate(ultramotd_connections_total[5m]))
