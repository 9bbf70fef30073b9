// Package metrics provides the centralized Prometheus metrics registry for
// the downloader. All metrics are defined in their respective packages
// (client, batch, cache, ratelimit) to maintain modularity and avoid
// circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the downloader.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - kucoin_requests_total{kind, status} (Counter): Total requests by path kind (listing, archive) and HTTP status
//   - kucoin_request_duration_seconds{kind} (Histogram): Request duration by path kind
//   - kucoin_errors_total{class} (Counter): Transport errors by class (client, server, network)
//
// Retry Metrics (pkg/client):
//   - kucoin_retries_total{error_class} (Counter): Retry attempts by error class
//   - kucoin_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - kucoin_retry_exhausted_total{error_class} (Counter): Requests that exhausted max retries
//
// Batch Metrics (pkg/batch):
//   - kucoin_downloads_total{status} (Counter): Archive downloads by outcome (success, failure)
//   - kucoin_batch_duration_seconds (Histogram): Wall time per batch run
//   - kucoin_rows_fetched_total (Counter): Data rows fetched across all archives
//
// Listing Cache Metrics (pkg/cache):
//   - kucoin_listing_cache_hits_total (Counter): Listing cache hits
//   - kucoin_listing_cache_misses_total (Counter): Listing cache misses
//   - kucoin_listing_cache_errors_total{operation} (Counter): Cache operation errors by operation (get, set, delete)
//
// Budget Metrics (pkg/ratelimit):
//   - kucoin_budget_remaining (Gauge): Requests remaining in the current budget window
//   - kucoin_budget_blocks_total (Counter): Requests blocked by an exhausted budget window
//   - kucoin_budget_waits_total (Counter): Waits for a budget window reset
//
// Example Prometheus Queries:
//
//   # Download Failure Rate
//   rate(kucoin_downloads_total{status="failure"}[5m]) /
//   rate(kucoin_downloads_total[5m])
//
//   # Listing Cache Hit Rate
//   rate(kucoin_listing_cache_hits_total[5m]) /
//   (rate(kucoin_listing_cache_hits_total[5m]) + rate(kucoin_listing_cache_misses_total[5m]))
//
//   # P95 Archive Request Latency
//   histogram_quantile(0.95, rate(kucoin_request_duration_seconds_bucket{kind="archive"}[5m]))
//
//   # Budget Pressure
//   kucoin_budget_remaining < 30
