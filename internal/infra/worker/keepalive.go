package worker

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const keepaliveTimeout = 10 * time.Second

// Keepalive pings the service's own public URL so free-tier hosts do not
// idle the process. It is scheduled only in production.
type Keepalive struct {
	url     string
	client  *http.Client
	logger  *slog.Logger
	metrics *WorkerMetrics
}

// NewKeepalive creates a pinger for url.
func NewKeepalive(url string, logger *slog.Logger, metrics *WorkerMetrics) *Keepalive {
	return &Keepalive{
		url:     url,
		client:  &http.Client{Timeout: keepaliveTimeout},
		logger:  logger,
		metrics: metrics,
	}
}

// Ping issues one GET. Failures are logged and counted, never returned to
// the scheduler.
func (k *Keepalive) Ping(ctx context.Context) {
	if err := k.ping(ctx); err != nil {
		k.logger.Error("keepalive ping failed", slog.Any("error", err))
		k.metrics.RecordKeepalive("failure")
		return
	}
	k.logger.Info("keepalive ping done")
	k.metrics.RecordKeepalive("success")
}

func (k *Keepalive) ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, k.url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := k.client.Do(req)
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode >= 400 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}
