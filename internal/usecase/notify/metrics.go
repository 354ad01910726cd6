package notify

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Drop reasons used with the notification_dropped_total counter.
const (
	dropPoolWait    = "pool_wait"
	dropBreakerOpen = "circuit_open"
)

var (
	sendsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notification_sent_total",
		Help: "Telegram sends by channel and result",
	}, []string{"channel", "status"}) // status: success, failure

	sendDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "notification_duration_seconds",
		Help:    "Telegram send duration in seconds, retries included",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 30},
	}, []string{"channel"})

	droppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notification_dropped_total",
		Help: "Sends skipped before reaching Telegram",
	}, []string{"channel", "reason"})

	breakerOpenedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notification_circuit_breaker_open_total",
		Help: "Times a channel breaker opened",
	}, []string{"channel"})

	inflightSends = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "notification_active_goroutines",
		Help: "Sends currently in progress",
	})

	enabledChannels = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "notification_channels_enabled",
		Help: "Configured notification channels",
	})
)

func recordSend(channel string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	sendsTotal.WithLabelValues(channel, status).Inc()
	sendDuration.WithLabelValues(channel).Observe(d.Seconds())
}

func recordDropped(channel, reason string) {
	droppedTotal.WithLabelValues(channel, reason).Inc()
}
