// Package metrics exposes the Prometheus registry of the image redirect service.
// All metrics are defined in their respective packages (cache, upstream,
// redirect, session) to maintain modularity and avoid circular dependencies.
//
// This package provides the scrape handler and a reference for all available metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the service.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Handler serves the default gatherer in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{
		Registry: Registry,
	})
}

// Metrics Documentation
//
// Redirect Metrics (pkg/redirect):
//   - image_redirect_responses_total{outcome} (Counter): Responses by outcome
//     (canonical, invalid_id, hit, resolved, upstream_transport, upstream_decode, upstream_logical)
//   - image_redirect_coalesced_total (Counter): Misses answered by another request's upstream call
//
// Cache Metrics (pkg/cache):
//   - image_redirect_cache_hits_total{backend} (Counter): Cache hits by backend
//   - image_redirect_cache_misses_total{backend} (Counter): Cache misses by backend
//   - image_redirect_cache_inserts_total{backend} (Counter): Write-through inserts by backend
//   - image_redirect_cache_entries{backend} (Gauge): Identifiers currently cached
//   - image_redirect_cache_errors_total{backend, operation} (Counter): Backend errors
//
// Upstream Metrics (pkg/upstream):
//   - image_redirect_upstream_requests_total{outcome} (Counter): Upstream calls by outcome
//     (ok, transport, decode, logical)
//   - image_redirect_upstream_request_duration_seconds{outcome} (Histogram): Upstream call duration
//
// Session Metrics (pkg/session):
//   - image_redirect_sessions_minted_total (Counter): Session cookies issued
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(image_redirect_cache_hits_total[5m])) /
//   (sum(rate(image_redirect_cache_hits_total[5m])) + sum(rate(image_redirect_cache_misses_total[5m])))
//
//   # Upstream Failure Rate
//   sum(rate(image_redirect_upstream_requests_total{outcome!="ok"}[5m]))
//
//   # P95 Upstream Latency
//   histogram_quantile(0.95, rate(image_redirect_upstream_request_duration_seconds_bucket[5m]))
