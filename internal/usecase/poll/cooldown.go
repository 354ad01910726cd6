package poll

import (
	"time"

	"vaxslot-notifier/internal/domain/entity"
)

// DefaultCooldown is the minimum gap between two notifications for one session.
const DefaultCooldown = 30 * time.Minute

// CooldownGate suppresses repeat notifications for a session until Window
// has elapsed since the last attempt.
type CooldownGate struct {
	Window time.Duration
	Now    func() time.Time
}

// NewCooldownGate returns a gate using the wall clock.
func NewCooldownGate(window time.Duration) CooldownGate {
	if window <= 0 {
		window = DefaultCooldown
	}
	return CooldownGate{Window: window, Now: time.Now}
}

// IsDue reports whether a notification may be sent for the session that rec
// belongs to. A session never notified before is always due.
func (g CooldownGate) IsDue(rec *entity.NotificationRecord) bool {
	if rec == nil || rec.LastNotifiedAt == nil {
		return true
	}
	return g.now().Sub(*rec.LastNotifiedAt) >= g.Window
}

func (g CooldownGate) now() time.Time {
	if g.Now == nil {
		return time.Now()
	}
	return g.Now()
}
