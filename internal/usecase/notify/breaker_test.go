package notify

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTelegramDown = errors.New("telegram 502")

// flakyChannel fails every send while failing is set.
type flakyChannel struct {
	*mockChannel
	failing atomic.Bool
}

func newFlakyChannel(name string) *flakyChannel {
	return &flakyChannel{mockChannel: &mockChannel{name: name, enabled: true}}
}

func (f *flakyChannel) Send(ctx context.Context, msg Message) error {
	if f.failing.Load() {
		f.mu.Lock()
		f.sendCalled++
		f.mu.Unlock()
		return errTelegramDown
	}
	return f.mockChannel.Send(ctx, msg)
}

func testMessage() Message {
	return Message{ItemID: "session-1", Text: "slots open", Pincode: "600095"}
}

/* ───────── channelBreaker ───────── */

func TestChannelBreaker(t *testing.T) {
	now := time.Date(2021, 5, 10, 9, 0, 0, 0, time.UTC)

	t.Run("TC-1: opens on the threshold failure", func(t *testing.T) {
		var b channelBreaker
		for i := 1; i < breakerThreshold; i++ {
			assert.False(t, b.record(errTelegramDown, now), "failure %d", i)
		}
		assert.True(t, b.record(errTelegramDown, now))

		until, open := b.openAt(now)
		assert.True(t, open)
		assert.Equal(t, now.Add(breakerCooldown), until)
	})

	t.Run("TC-2: success resets the count", func(t *testing.T) {
		var b channelBreaker
		for i := 1; i < breakerThreshold; i++ {
			b.record(errTelegramDown, now)
		}
		b.record(nil, now)

		assert.False(t, b.record(errTelegramDown, now))
		_, open := b.openAt(now)
		assert.False(t, open)
	})

	t.Run("TC-3: closes after the cooldown", func(t *testing.T) {
		var b channelBreaker
		for i := 0; i < breakerThreshold; i++ {
			b.record(errTelegramDown, now)
		}

		_, open := b.openAt(now.Add(breakerCooldown))
		assert.False(t, open)
	})

	t.Run("TC-4: next failure after cooldown reopens", func(t *testing.T) {
		var b channelBreaker
		for i := 0; i < breakerThreshold; i++ {
			b.record(errTelegramDown, now)
		}
		later := now.Add(breakerCooldown + time.Second)

		assert.True(t, b.record(errTelegramDown, later))
		_, open := b.openAt(later)
		assert.True(t, open)
	})
}

/* ───────── breaker inside Dispatch ───────── */

// TestDispatch_BreakerOpensAfterRepeatedFailures verifies the primary chat is short-circuited after five failed sends
func TestDispatch_BreakerOpensAfterRepeatedFailures(t *testing.T) {
	// Arrange
	primary := newFlakyChannel(PrimaryChannel)
	primary.failing.Store(true)
	svc := NewService([]Channel{primary}, Config{MaxConcurrent: 10})
	openedBefore := testutil.ToFloat64(breakerOpenedTotal.WithLabelValues(PrimaryChannel))

	// Act
	for i := 0; i < breakerThreshold; i++ {
		results := svc.Dispatch(context.Background(), testMessage())
		require.ErrorIs(t, results[0].Err, ErrDispatchFailed)
		require.ErrorIs(t, results[0].Err, errTelegramDown)
	}
	results := svc.Dispatch(context.Background(), testMessage())

	// Assert
	assert.ErrorIs(t, results[0].Err, ErrCircuitBreakerOpen)
	assert.Equal(t, breakerThreshold, primary.getSendCalledCount())
	assert.Equal(t, openedBefore+1, testutil.ToFloat64(breakerOpenedTotal.WithLabelValues(PrimaryChannel)))

	health := svc.GetChannelHealth()
	require.Len(t, health, 1)
	assert.True(t, health[0].CircuitBreakerOpen)
	require.NotNil(t, health[0].DisabledUntil)
}

// TestDispatch_BreakerRecoversAfterCooldown verifies sends resume once the cooldown has passed
func TestDispatch_BreakerRecoversAfterCooldown(t *testing.T) {
	// Arrange
	primary := newFlakyChannel(PrimaryChannel)
	svc := NewService([]Channel{primary}, Config{MaxConcurrent: 10}).(*service)
	clock := time.Date(2021, 5, 10, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return clock }

	primary.failing.Store(true)
	for i := 0; i < breakerThreshold; i++ {
		svc.Dispatch(context.Background(), testMessage())
	}
	primary.failing.Store(false)

	// Act
	clock = clock.Add(breakerCooldown)
	results := svc.Dispatch(context.Background(), testMessage())

	// Assert
	assert.True(t, results[0].Delivered())
	assert.Equal(t, breakerThreshold+1, primary.getSendCalledCount())
}

// TestDispatch_BreakersArePerChannel verifies a failing special chat doesn't affect the primary chat
func TestDispatch_BreakersArePerChannel(t *testing.T) {
	// Arrange
	primary := newFlakyChannel(PrimaryChannel)
	special := newFlakyChannel(SpecialChannel)
	special.failing.Store(true)
	svc := NewService([]Channel{primary, special}, Config{MaxConcurrent: 10})

	// Act
	for i := 0; i < breakerThreshold; i++ {
		svc.Dispatch(context.Background(), testMessage())
	}
	results := svc.Dispatch(context.Background(), testMessage())

	// Assert
	p, ok := resultFor(results, PrimaryChannel)
	require.True(t, ok)
	assert.True(t, p.Delivered())
	s, ok := resultFor(results, SpecialChannel)
	require.True(t, ok)
	assert.ErrorIs(t, s.Err, ErrCircuitBreakerOpen)

	assert.Equal(t, breakerThreshold+1, primary.getSendCalledCount())
	assert.Equal(t, breakerThreshold, special.getSendCalledCount())
}
