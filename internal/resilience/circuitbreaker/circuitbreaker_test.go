package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vaxslot-notifier/internal/observability/metrics"
)

var errUpstream = errors.New("upstream 503")

func testConfig(name string) Config {
	return Config{
		Name:             name,
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          50 * time.Millisecond,
		FailureThreshold: 0.6,
		MinRequests:      5,
	}
}

func fail(cb *CircuitBreaker, n int) {
	for i := 0; i < n; i++ {
		_, _ = Do(cb, func() (int, error) { return 0, errUpstream })
	}
}

/* ───────── Do ───────── */

func TestDo_ReturnsTypedResult(t *testing.T) {
	cb := New(testConfig("do-typed"))

	body, err := Do(cb, func() ([]byte, error) { return []byte(`{"centers":[]}`), nil })

	require.NoError(t, err)
	assert.Equal(t, `{"centers":[]}`, string(body))
	assert.Equal(t, gobreaker.StateClosed, cb.State())
}

func TestDo_PassesErrorThrough(t *testing.T) {
	cb := New(testConfig("do-error"))

	got, err := Do(cb, func() (string, error) { return "ignored", errUpstream })

	assert.ErrorIs(t, err, errUpstream)
	assert.Empty(t, got, "zero value on error")
	assert.False(t, IsRejected(err))
}

/* ───────── tripping ───────── */

func TestCircuitBreaker_StaysClosedBelowMinRequests(t *testing.T) {
	cb := New(testConfig("below-min"))

	fail(cb, 4)

	assert.Equal(t, gobreaker.StateClosed, cb.State())
}

func TestCircuitBreaker_OpensAndRejects(t *testing.T) {
	cb := New(testConfig("opens"))

	fail(cb, 5)
	require.True(t, cb.IsOpen())

	called := false
	_, err := Do(cb, func() (int, error) {
		called = true
		return 1, nil
	})

	assert.False(t, called, "guarded call must not run while open")
	assert.True(t, IsRejected(err))
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, float64(gobreaker.StateOpen), testutil.ToFloat64(metrics.CircuitBreakerState.WithLabelValues("opens")))
}

func TestCircuitBreaker_RatioBelowThreshold(t *testing.T) {
	cb := New(testConfig("ratio"))

	// 2 failures out of 5 is 40%
	fail(cb, 2)
	for i := 0; i < 3; i++ {
		_, _ = Do(cb, func() (int, error) { return 1, nil })
	}

	assert.Equal(t, gobreaker.StateClosed, cb.State())
}

func TestCircuitBreaker_RecoversAfterTimeout(t *testing.T) {
	cb := New(testConfig("recovers"))
	fail(cb, 5)
	require.True(t, cb.IsOpen())

	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, gobreaker.StateHalfOpen, cb.State())

	_, err := Do(cb, func() (int, error) { return 1, nil })

	require.NoError(t, err)
	assert.Equal(t, gobreaker.StateClosed, cb.State())
	assert.Equal(t, float64(gobreaker.StateClosed), testutil.ToFloat64(metrics.CircuitBreakerState.WithLabelValues("recovers")))
}

/* ───────── presets ───────── */

func TestPresetConfigs(t *testing.T) {
	api := AvailabilityAPIConfig()
	assert.Equal(t, "availability-api", api.Name)
	assert.Equal(t, 2*time.Minute, api.Timeout)
	assert.Equal(t, 0.7, api.FailureThreshold)

	store := RecordStoreConfig()
	assert.Equal(t, "record-store", store.Name)
	assert.Equal(t, 1.0, store.FailureThreshold)
	assert.Equal(t, uint32(5), store.MinRequests)
}

func TestNew_NameAndInitialGauge(t *testing.T) {
	cb := New(testConfig("named"))

	assert.Equal(t, "named", cb.Name())
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.CircuitBreakerState.WithLabelValues("named")))
}
