package cowin

import (
	"fmt"
	"time"
)

// DefaultBaseURL is the public CDN host of the appointment API.
const DefaultBaseURL = "https://cdn-api.co-vin.in"

// Config holds the configuration for the availability API client.
type Config struct {
	// BaseURL is the scheme and host of the API, without a trailing path.
	// Default: https://cdn-api.co-vin.in
	BaseURL string `env:"COWIN_BASE_URL" envDefault:"https://cdn-api.co-vin.in"`

	// Timeout bounds a single HTTP request, retries excluded.
	// Default: 15s
	Timeout time.Duration `env:"COWIN_TIMEOUT" envDefault:"15s"`

	// RateLimit is the sustained request rate (requests/second) across all
	// regions. The public API throttles per source IP.
	// Default: 1
	RateLimit float64 `env:"COWIN_RATE_LIMIT" envDefault:"1"`

	// MaxBodySize caps the response body. Calendars for a large district are
	// a few hundred KB.
	// Default: 5MB
	MaxBodySize int64 `env:"COWIN_MAX_BODY_SIZE" envDefault:"5242880"`

	// UserAgent identifies the poller to the API.
	UserAgent string `env:"COWIN_USER_AGENT" envDefault:"VaxSlotNotifier/1.0"`
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() Config {
	return Config{
		BaseURL:     DefaultBaseURL,
		Timeout:     15 * time.Second,
		RateLimit:   1,
		MaxBodySize: 5 * 1024 * 1024,
		UserAgent:   "VaxSlotNotifier/1.0",
	}
}

// Validate checks if the configuration values are usable.
//
// Validation rules:
//   - BaseURL: non-empty
//   - Timeout: > 0
//   - RateLimit: > 0
//   - MaxBodySize: 1KB-100MB
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base url must not be empty")
	}

	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %v", c.Timeout)
	}

	if c.RateLimit <= 0 {
		return fmt.Errorf("rate limit must be positive, got %v", c.RateLimit)
	}

	minBodySize := int64(1024)              // 1KB
	maxBodySize := int64(100 * 1024 * 1024) // 100MB
	if c.MaxBodySize < minBodySize || c.MaxBodySize > maxBodySize {
		return fmt.Errorf("max body size must be between %d and %d bytes, got %d", minBodySize, maxBodySize, c.MaxBodySize)
	}

	return nil
}
