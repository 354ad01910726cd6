package notifier

import (
	"context"
	"log/slog"

	"vaxslot-notifier/internal/observability/logging"
)

// NoOpNotifier accepts every message without sending it. `worker poll
// --dry-run` uses it so a full cycle can run against real data.
type NoOpNotifier struct{}

func NewNoOpNotifier() *NoOpNotifier {
	return &NoOpNotifier{}
}

// Send logs what would have been sent and returns nil.
func (n *NoOpNotifier) Send(ctx context.Context, chatID, text string) error {
	logging.FromContext(ctx).Debug("dry run, message not sent",
		slog.String("chat_id", chatID),
		slog.Int("text_len", len(text)))
	return nil
}
