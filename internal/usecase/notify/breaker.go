package notify

import (
	"sync"
	"time"
)

const (
	breakerThreshold = 5 // consecutive failures that open a channel breaker
	breakerCooldown  = 5 * time.Minute
)

// channelBreaker short-circuits a channel after breakerThreshold consecutive
// failed sends. It stays open for breakerCooldown, then lets sends through
// again; the next failure reopens it immediately.
type channelBreaker struct {
	mu        sync.Mutex
	failures  int
	openUntil time.Time
}

// openAt returns the reopen time when the breaker is open at now.
func (b *channelBreaker) openAt(now time.Time) (time.Time, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if now.Before(b.openUntil) {
		return b.openUntil, true
	}
	return time.Time{}, false
}

// record folds one send outcome into the breaker and reports whether it just
// opened.
func (b *channelBreaker) record(err error, now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		b.failures = 0
		return false
	}
	b.failures++
	if b.failures < breakerThreshold {
		return false
	}
	b.openUntil = now.Add(breakerCooldown)
	return true
}
