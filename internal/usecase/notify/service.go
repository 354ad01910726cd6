package notify

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"vaxslot-notifier/internal/observability/logging"
)

// DefaultSendTimeout bounds a single channel send, retries included.
const DefaultSendTimeout = 30 * time.Second

// Service handles notification dispatching to multiple channels.
type Service interface {
	// Dispatch sends msg to every enabled channel that accepts it, concurrently,
	// and blocks until each send has finished or failed. A send waits for a
	// worker slot for as long as ctx allows; it is dropped only when ctx ends
	// or Shutdown starts first.
	//
	// Errors never escape: each targeted channel yields one DeliveryResult.
	// Accepted but unconfigured channels are reported with ErrChannelDisabled.
	Dispatch(ctx context.Context, msg Message) []DeliveryResult

	// Ready reports whether the primary channel can send. When false, callers
	// should skip dispatch (and bookkeeping) entirely.
	Ready() bool

	// GetChannelHealth returns the health status of all notification channels.
	GetChannelHealth() []ChannelHealthStatus

	// Shutdown cancels in-flight sends and waits for them to return or for
	// ctx to expire.
	Shutdown(ctx context.Context) error
}

// DeliveryResult is the outcome of one send to one channel.
type DeliveryResult struct {
	Channel string
	Err     error
}

// Delivered reports whether the channel accepted the message.
func (r DeliveryResult) Delivered() bool {
	return r.Err == nil
}

// Attempted reports whether the message reached the channel's transport.
// Sends dropped locally (no worker slot, open breaker, unconfigured or
// missing channel) were never attempted.
func (r DeliveryResult) Attempted() bool {
	switch {
	case errors.Is(r.Err, ErrNotificationDropped),
		errors.Is(r.Err, ErrCircuitBreakerOpen),
		errors.Is(r.Err, ErrChannelDisabled),
		errors.Is(r.Err, ErrConfigMissing):
		return false
	}
	return true
}

// AnyAttempted reports whether at least one result reached a transport.
func AnyAttempted(results []DeliveryResult) bool {
	for _, r := range results {
		if r.Attempted() {
			return true
		}
	}
	return false
}

// ChannelHealthStatus represents the health status of a notification channel.
type ChannelHealthStatus struct {
	Name               string     `json:"name"`
	Enabled            bool       `json:"enabled"`
	CircuitBreakerOpen bool       `json:"circuit_breaker_open"`
	DisabledUntil      *time.Time `json:"disabled_until,omitempty"`
}

// Config tunes the dispatcher.
type Config struct {
	MaxConcurrent int           // worker pool size (recommended: 10-20)
	SendTimeout   time.Duration // per-send timeout; DefaultSendTimeout when zero
}

type service struct {
	channels      []Channel
	breakers      map[string]*channelBreaker
	pool          *semaphore.Weighted
	maxConcurrent int
	sendTimeout   time.Duration
	now           func() time.Time

	inflight sync.WaitGroup
	stopCtx  context.Context
	stop     context.CancelFunc
}

// NewService builds the dispatcher over channels. MaxConcurrent defaults to
// 10 and SendTimeout to DefaultSendTimeout.
func NewService(channels []Channel, cfg Config) Service {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 10
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = DefaultSendTimeout
	}

	stopCtx, stop := context.WithCancel(context.Background())
	svc := &service{
		channels:      channels,
		breakers:      make(map[string]*channelBreaker, len(channels)),
		pool:          semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		maxConcurrent: cfg.MaxConcurrent,
		sendTimeout:   cfg.SendTimeout,
		now:           time.Now,
		stopCtx:       stopCtx,
		stop:          stop,
	}

	enabled := 0
	for _, ch := range channels {
		svc.breakers[ch.Name()] = &channelBreaker{}
		if ch.IsEnabled() {
			enabled++
		}
	}
	enabledChannels.Set(float64(enabled))

	return svc
}

func (s *service) Ready() bool {
	for _, ch := range s.channels {
		if ch.Name() == PrimaryChannel {
			return ch.IsEnabled()
		}
	}
	return false
}

func (s *service) Dispatch(ctx context.Context, msg Message) []DeliveryResult {
	if !s.Ready() {
		return []DeliveryResult{{Channel: PrimaryChannel, Err: ErrConfigMissing}}
	}

	logger := logging.FromContext(ctx)
	var (
		results []DeliveryResult
		targets []Channel
	)
	for _, ch := range s.channels {
		switch {
		case !ch.Accepts(msg):
			// not addressed to this audience
		case !ch.IsEnabled():
			logger.Warn(ch.Name()+" audience channel not configured",
				"channel", ch.Name(), "item_id", msg.ItemID, "pincode", msg.Pincode)
			results = append(results, DeliveryResult{Channel: ch.Name(), Err: ErrChannelDisabled})
		default:
			targets = append(targets, ch)
		}
	}

	sent := make([]DeliveryResult, len(targets))
	var wg sync.WaitGroup
	for i, ch := range targets {
		wg.Add(1)
		s.inflight.Add(1)
		go func() {
			defer wg.Done()
			defer s.inflight.Done()
			sent[i] = DeliveryResult{Channel: ch.Name(), Err: s.send(ctx, ch, msg)}
		}()
	}
	wg.Wait()

	return append(results, sent...)
}

// send delivers msg on one channel behind the worker pool, the channel's
// breaker and the send timeout. Panics in the channel become errors.
func (s *service) send(ctx context.Context, ch Channel, msg Message) (err error) {
	name := ch.Name()
	logger := logging.FromContext(ctx).With("channel", name, "item_id", msg.ItemID)

	inflightSends.Inc()
	defer inflightSends.Dec()
	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic in notification channel", "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("%w: panic: %v", ErrDispatchFailed, r)
		}
	}()

	// Queue behind the pool until a slot frees up, the caller gives up, or
	// Shutdown begins.
	waitCtx, cancelWait := context.WithCancel(ctx)
	stopWait := context.AfterFunc(s.stopCtx, cancelWait)
	err = s.pool.Acquire(waitCtx, 1)
	stopWait()
	cancelWait()
	if err != nil {
		cause := ctx.Err()
		if cause == nil {
			cause = errShuttingDown
		}
		logger.Warn("notification dropped while waiting for a worker slot", "error", cause)
		recordDropped(name, dropPoolWait)
		return fmt.Errorf("%w: %w", ErrNotificationDropped, cause)
	}
	defer s.pool.Release(1)

	breaker := s.breakers[name]
	if until, open := breaker.openAt(s.now()); open {
		logger.Warn("channel breaker open, skipping send", "disabled_until", until)
		recordDropped(name, dropBreakerOpen)
		return ErrCircuitBreakerOpen
	}

	sendCtx, cancel := context.WithTimeout(ctx, s.sendTimeout)
	defer cancel()
	defer context.AfterFunc(s.stopCtx, cancel)()

	start := time.Now()
	sendErr := ch.Send(sendCtx, msg)
	elapsed := time.Since(start)
	recordSend(name, sendErr, elapsed)

	if breaker.record(sendErr, s.now()) {
		logger.Error("channel breaker opened", "consecutive_failures", breakerThreshold)
		breakerOpenedTotal.WithLabelValues(name).Inc()
	}
	if sendErr != nil {
		logger.Warn("channel notification failed", "send_duration", elapsed, "error", sendErr)
		return fmt.Errorf("%w: %s: %w", ErrDispatchFailed, name, sendErr)
	}

	logger.Info("channel notification sent", "send_duration", elapsed)
	return nil
}

func (s *service) GetChannelHealth() []ChannelHealthStatus {
	now := s.now()
	statuses := make([]ChannelHealthStatus, 0, len(s.channels))
	for _, ch := range s.channels {
		status := ChannelHealthStatus{Name: ch.Name(), Enabled: ch.IsEnabled()}
		if until, open := s.breakers[ch.Name()].openAt(now); open {
			status.CircuitBreakerOpen = true
			status.DisabledUntil = &until
		}
		statuses = append(statuses, status)
	}
	return statuses
}

func (s *service) Shutdown(ctx context.Context) error {
	logger := logging.FromContext(ctx)
	logger.Info("shutting down notification service")
	s.stop()

	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("notification service stopped")
		return nil
	case <-ctx.Done():
		logger.Warn("notification service shutdown timed out")
		return ctx.Err()
	}
}
