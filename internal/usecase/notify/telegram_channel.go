package notify

import (
	"context"

	"vaxslot-notifier/internal/infra/notifier"
)

// TelegramChannel implements Channel for one Telegram chat. Several channels
// can share the same notifier (one bot, many chats).
type TelegramChannel struct {
	name     string
	chatID   string
	notifier notifier.Notifier
	enabled  bool
	audience map[string]struct{}
}

// NewTelegramChannel creates a channel bound to chatID.
//
// If pincodes is nil the channel accepts every message; otherwise only
// messages whose pincode is listed. The channel is disabled when chatID is
// empty or botConfigured is false.
func NewTelegramChannel(name string, n notifier.Notifier, chatID string, botConfigured bool, pincodes []string) *TelegramChannel {
	var audience map[string]struct{}
	if pincodes != nil {
		audience = make(map[string]struct{}, len(pincodes))
		for _, p := range pincodes {
			audience[p] = struct{}{}
		}
	}

	if n == nil {
		n = notifier.NewNoOpNotifier()
	}

	return &TelegramChannel{
		name:     name,
		chatID:   chatID,
		notifier: n,
		enabled:  botConfigured && chatID != "",
		audience: audience,
	}
}

// Name returns the channel identifier.
func (c *TelegramChannel) Name() string {
	return c.name
}

// IsEnabled returns whether both the bot token and the chat id are configured.
func (c *TelegramChannel) IsEnabled() bool {
	return c.enabled
}

// Accepts reports whether msg.Pincode is in the channel's audience.
func (c *TelegramChannel) Accepts(msg Message) bool {
	if c.audience == nil {
		return true
	}
	_, ok := c.audience[msg.Pincode]
	return ok
}

// Send delivers msg.Text to the bound chat.
func (c *TelegramChannel) Send(ctx context.Context, msg Message) error {
	if !c.enabled {
		return ErrChannelDisabled
	}
	if msg.Text == "" {
		return ErrInvalidMessage
	}
	return c.notifier.Send(ctx, c.chatID, msg.Text)
}
