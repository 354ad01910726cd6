// Package notify dispatches rendered slot alerts to Telegram chats.
// Every message goes to the primary channel; the special audience channel
// receives it as well when the session's pincode is on its allow-list.
// Channels get a per-channel circuit breaker, a bounded worker pool and
// Prometheus metrics.
package notify

import "context"

// Channel names used in logs, metrics labels and /health/channels.
const (
	PrimaryChannel = "primary"
	SpecialChannel = "special"
)

// Message is one rendered notification for one session.
type Message struct {
	ItemID  string // session id, for logging
	Text    string // MarkdownV2 body
	Pincode string // used for audience targeting
}

// Channel represents a notification destination.
//
// Thread Safety:
//   - All methods must be safe for concurrent use by multiple goroutines
type Channel interface {
	// Name returns the channel identifier used in logs and metrics.
	Name() string

	// IsEnabled returns true if this channel is configured.
	IsEnabled() bool

	// Accepts reports whether msg targets this channel.
	Accepts(msg Message) bool

	// Send delivers msg. Implementations must respect context cancellation
	// and must not include credentials in returned errors.
	//
	// Returns:
	//   - ErrChannelDisabled: If Send() called on disabled channel
	//   - ErrInvalidMessage: If msg.Text is empty
	//   - Transport errors otherwise
	Send(ctx context.Context, msg Message) error
}
