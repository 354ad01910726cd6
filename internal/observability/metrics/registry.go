// Package metrics provides centralized Prometheus metrics for the application.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics track requests served by the ops server
var (
	// HTTPRequestsTotal counts total HTTP requests by method, path, and status
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration measures HTTP request duration in seconds
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

// Business metrics track the poll pipeline
var (
	// RegionsPolledTotal counts region polls by result
	RegionsPolledTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "poll_regions_total",
			Help: "Total number of region polls",
		},
		[]string{"region", "result"}, // result: success, failure
	)

	// AvailabilityFetchDuration measures time to fetch one region's sessions
	AvailabilityFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "poll_fetch_duration_seconds",
			Help:    "Time taken to fetch availability for a region",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		},
		[]string{"region"},
	)

	// SessionsSeenTotal counts sessions returned by the availability API
	SessionsSeenTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "poll_sessions_seen_total",
			Help: "Total number of sessions returned by the availability API",
		},
		[]string{"region"},
	)

	// SessionOutcomesTotal counts what happened to each session
	SessionOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "poll_session_outcomes_total",
			Help: "Total number of sessions by pipeline outcome",
		},
		[]string{"outcome"}, // outcome: ineligible, suppressed, notified, dropped, store_error
	)

	// CycleDuration measures a whole poll cycle
	CycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "poll_cycle_duration_seconds",
			Help:    "Time taken by one poll cycle",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		},
	)
)

// Store metrics track the notification record store
var (
	// DBQueryDuration measures store operation duration
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 10),
		},
		[]string{"operation"},
	)

	// StoreConflictsTotal counts conditional writes rejected for a stale revision
	StoreConflictsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_conflicts_total",
			Help: "Total number of revision conflicts on notification record writes",
		},
		[]string{"resolution"}, // resolution: retried, dropped
	)

	// DBConnectionsActive tracks active database connections
	DBConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_active",
			Help: "Number of active database connections",
		},
	)

	// DBConnectionsIdle tracks idle database connections
	DBConnectionsIdle = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_idle",
			Help: "Number of idle database connections",
		},
	)
)

// Resilience metrics track circuit breakers guarding the API and the store
var (
	// CircuitBreakerState is 0 closed, 1 half-open, 2 open
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0 closed, 1 half-open, 2 open)",
		},
		[]string{"name"},
	)
)

// RecordHTTPRequest records an HTTP request with its metadata
func RecordHTTPRequest(method, path, status string, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}
