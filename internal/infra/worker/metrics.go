package worker

import (
	"vaxslot-notifier/internal/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// WorkerMetrics provides Prometheus metrics for the poll worker.
// It embeds ConfigMetrics for configuration monitoring and adds metrics for
// scheduled poll runs and the keepalive ping.
//
// Embedded metrics (from ConfigMetrics):
//   - worker_config_load_timestamp
//   - worker_config_fallbacks_total
//   - worker_config_fallback_active
//
// Worker metrics:
//   - worker_poll_runs_total{status}: success, failure or skipped
//   - worker_poll_run_duration_seconds
//   - worker_poll_sessions_processed_total
//   - worker_poll_last_success_timestamp
//   - worker_keepalive_total{status}
type WorkerMetrics struct {
	*config.ConfigMetrics

	PollRunsTotal              *prometheus.CounterVec
	PollRunDurationSeconds     prometheus.Histogram
	PollSessionsProcessedTotal prometheus.Counter
	PollLastSuccessTimestamp   prometheus.Gauge
	KeepaliveTotal             *prometheus.CounterVec
}

// NewWorkerMetrics creates and registers the worker metrics.
// Registration uses the default registry, so call it once per process.
func NewWorkerMetrics() *WorkerMetrics {
	return &WorkerMetrics{
		ConfigMetrics: config.NewConfigMetrics("worker"),

		PollRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_poll_runs_total",
			Help: "Total number of scheduled poll runs by status (success/failure/skipped)",
		}, []string{"status"}),

		PollRunDurationSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "worker_poll_run_duration_seconds",
			Help:    "Duration of scheduled poll runs in seconds",
			Buckets: []float64{0.5, 1, 5, 10, 30, 60, 90, 300},
		}),

		PollSessionsProcessedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "worker_poll_sessions_processed_total",
			Help: "Total number of sessions seen across all poll runs",
		}),

		PollLastSuccessTimestamp: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "worker_poll_last_success_timestamp",
			Help: "Unix timestamp of the last successful poll run",
		}),

		KeepaliveTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_keepalive_total",
			Help: "Total number of keepalive pings by status (success/failure)",
		}, []string{"status"}),
	}
}

// RecordJobRun increments the poll run counter for status.
func (m *WorkerMetrics) RecordJobRun(status string) {
	m.PollRunsTotal.WithLabelValues(status).Inc()
}

// RecordJobDuration observes the duration of a poll run in seconds.
func (m *WorkerMetrics) RecordJobDuration(seconds float64) {
	m.PollRunDurationSeconds.Observe(seconds)
}

// RecordSessionsProcessed adds count to the processed session total.
func (m *WorkerMetrics) RecordSessionsProcessed(count int64) {
	m.PollSessionsProcessedTotal.Add(float64(count))
}

// RecordLastSuccess stamps the current time as the last successful run.
func (m *WorkerMetrics) RecordLastSuccess() {
	m.PollLastSuccessTimestamp.SetToCurrentTime()
}

// RecordKeepalive increments the keepalive counter for status.
func (m *WorkerMetrics) RecordKeepalive(status string) {
	m.KeepaliveTotal.WithLabelValues(status).Inc()
}
