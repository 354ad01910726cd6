package notifier

import (
	"fmt"
	"net/http"
	"time"
)

// APIError is a non-2xx sendMessage response. Description has the bot token
// stripped.
type APIError struct {
	StatusCode  int
	Description string
	// RetryAfter is set on 429 responses.
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	if e.StatusCode == http.StatusTooManyRequests {
		return fmt.Sprintf("telegram %d: %s (retry after %v)", e.StatusCode, e.Description, e.RetryAfter)
	}
	return fmt.Sprintf("telegram %d: %s", e.StatusCode, e.Description)
}

// Throttled reports a 429.
func (e *APIError) Throttled() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// Temporary reports a 5xx, which is worth one more attempt. Other 4xx
// responses (bad markup, unknown chat, bot kicked) will not change on retry.
func (e *APIError) Temporary() bool {
	return e.StatusCode >= http.StatusInternalServerError
}
