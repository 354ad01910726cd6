// Package notifier delivers rendered slot alerts. TelegramNotifier talks to
// the Bot API; NoOpNotifier stands in for it on dry runs.
package notifier

import "context"

// Notifier sends one pre-rendered message to one chat.
type Notifier interface {
	// Send delivers text, already escaped for the transport's markup, to
	// chatID. A non-nil error means the message was not accepted after the
	// implementation's own retries.
	Send(ctx context.Context, chatID, text string) error
}
