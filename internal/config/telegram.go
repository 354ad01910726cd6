package config

import (
	"time"

	"vaxslot-notifier/internal/infra/notifier"
)

// DefaultSpecialPincodes is the allow-list of the special audience chat.
var DefaultSpecialPincodes = []string{
	"600095", "600053", "600037", "600101", "600049",
	"600050", "600071", "600057", "600054", "600077",
}

// TelegramConfig holds bot credentials and chat routing.
//
// Every field is optional: a missing token or primary chat makes the
// notifier not ready, a missing special chat only disables that audience.
type TelegramConfig struct {
	BotToken      string `env:"TELEGRAM_BOT_TOKEN"`
	ChatID        string `env:"TELEGRAM_CHAT_ID"`
	SpecialChatID string `env:"SP_TELEGRAM_CHAT_ID"`
	APIBaseURL    string `env:"TELEGRAM_API_BASE_URL" envDefault:"https://api.telegram.org"`

	// SpecialPincodes routes a session to the special chat as well.
	SpecialPincodes []string `env:"SPECIAL_ALERT_PINCODES" envSeparator:","`

	// SendTimeout bounds one channel send, retries included.
	SendTimeout time.Duration `env:"NOTIFY_SEND_TIMEOUT" envDefault:"30s"`

	// RequestTimeout bounds a single Bot API HTTP request.
	RequestTimeout time.Duration `env:"TELEGRAM_TIMEOUT" envDefault:"10s"`
}

// LoadTelegram parses the Telegram settings.
func LoadTelegram() (TelegramConfig, error) {
	var cfg TelegramConfig
	if err := ParseEnv(&cfg); err != nil {
		return TelegramConfig{}, err
	}
	if len(cfg.SpecialPincodes) == 0 {
		cfg.SpecialPincodes = append([]string(nil), DefaultSpecialPincodes...)
	}
	return cfg, nil
}

// BotConfigured reports whether a bot token is present.
func (c TelegramConfig) BotConfigured() bool {
	return c.BotToken != ""
}

// Notifier returns the Bot API client configuration.
func (c TelegramConfig) Notifier() notifier.TelegramConfig {
	return notifier.TelegramConfig{
		BotToken: c.BotToken,
		BaseURL:  c.APIBaseURL,
		Timeout:  c.RequestTimeout,
	}
}
