// Package circuitbreaker stops calling a dependency that keeps failing.
// Breakers are built on sony/gobreaker; every state change is logged and
// exported as the circuit_breaker_state gauge.
package circuitbreaker

import (
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"vaxslot-notifier/internal/observability/metrics"
)

// Config describes when a breaker opens and how it recovers.
type Config struct {
	Name        string
	MaxRequests uint32        // probes let through while half-open
	Interval    time.Duration // closed-state window after which counts reset
	Timeout     time.Duration // time spent open before probing

	// The breaker opens once at least MinRequests calls were seen in the
	// window and the failure ratio reaches FailureThreshold.
	FailureThreshold float64
	MinRequests      uint32
}

// AvailabilityAPIConfig guards calendar fetches. The API throttles hard, so a
// high failure ratio is tolerated and the open state lasts one poll interval.
func AvailabilityAPIConfig() Config {
	return Config{
		Name:             "availability-api",
		MaxRequests:      3,
		Interval:         time.Minute,
		Timeout:          2 * time.Minute,
		FailureThreshold: 0.7,
		MinRequests:      5,
	}
}

// RecordStoreConfig guards the SQL notification record store. It opens only
// when every call in the window failed.
func RecordStoreConfig() Config {
	return Config{
		Name:             "record-store",
		MaxRequests:      3,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 1.0,
		MinRequests:      5,
	}
}

type CircuitBreaker struct {
	breaker *gobreaker.CircuitBreaker
}

func New(cfg Config) *CircuitBreaker {
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			if c.Requests < cfg.MinRequests {
				return false
			}
			return float64(c.TotalFailures)/float64(c.Requests) >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("circuit breaker state changed",
				slog.String("circuit", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
			metrics.RecordCircuitState(name, int(to))
		},
	}

	metrics.RecordCircuitState(cfg.Name, int(gobreaker.StateClosed))
	return &CircuitBreaker{breaker: gobreaker.NewCircuitBreaker(settings)}
}

// Do runs fn through cb and returns its typed result. While the breaker is
// open fn is not called and the error satisfies IsRejected.
func Do[T any](cb *CircuitBreaker, fn func() (T, error)) (T, error) {
	var zero T
	result, err := cb.breaker.Execute(func() (interface{}, error) {
		return fn()
	})
	if err != nil {
		return zero, err
	}
	return result.(T), nil
}

func (cb *CircuitBreaker) Name() string           { return cb.breaker.Name() }
func (cb *CircuitBreaker) State() gobreaker.State { return cb.breaker.State() }
func (cb *CircuitBreaker) IsOpen() bool           { return cb.breaker.State() == gobreaker.StateOpen }

// IsRejected reports whether err came from the breaker itself rather than
// from the guarded call.
func IsRejected(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
