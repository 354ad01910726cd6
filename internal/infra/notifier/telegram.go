package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"vaxslot-notifier/internal/observability/logging"
)

// DefaultTelegramBaseURL is the public Bot API endpoint.
const DefaultTelegramBaseURL = "https://api.telegram.org"

// ParseModeMarkdownV2 is the only parse mode this client sends.
const ParseModeMarkdownV2 = "MarkdownV2"

const (
	sendAttempts      = 2
	defaultRetryAfter = 5 * time.Second
	maxErrorBody      = 4 << 10
)

// TelegramConfig contains configuration for the Telegram Bot API client.
type TelegramConfig struct {
	// BotToken authenticates the bot. It is part of the request path and is
	// never written to logs or returned in error messages.
	BotToken string

	// BaseURL overrides the Bot API host (tests, self-hosted Bot API servers)
	BaseURL string

	// Timeout is the HTTP request timeout for Bot API calls
	Timeout time.Duration
}

// TelegramNotifier sends MarkdownV2 messages through the Bot API sendMessage
// method. One limiter is shared by every chat of the bot: Telegram asks bots
// to stay near one message per second.
type TelegramNotifier struct {
	config     TelegramConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	retryDelay time.Duration // wait before retrying a 5xx or transport error
}

func NewTelegramNotifier(config TelegramConfig) *TelegramNotifier {
	if config.BaseURL == "" {
		config.BaseURL = DefaultTelegramBaseURL
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")

	return &TelegramNotifier{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(1), 3),
		retryDelay: 5 * time.Second,
	}
}

// sendMessageRequest is the JSON body of a sendMessage call.
type sendMessageRequest struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

// apiResponse is the envelope every Bot API method returns.
type apiResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
	Parameters  struct {
		RetryAfter int `json:"retry_after"` // seconds
	} `json:"parameters"`
}

// Send delivers text to chatID, waiting for the shared limiter first.
//
// A 429 is retried once after the advertised retry_after. A 5xx or transport
// error is retried once after retryDelay. Any other 4xx fails immediately
// with *APIError.
func (t *TelegramNotifier) Send(ctx context.Context, chatID, text string) error {
	if t.config.BotToken == "" {
		return errors.New("telegram bot token is not configured")
	}
	if chatID == "" {
		return errors.New("telegram chat id is empty")
	}

	logger := logging.FromContext(ctx).With(
		slog.String("request_id", uuid.NewString()),
		slog.String("chat_id", chatID))

	if err := t.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	var err error
	for attempt := 1; attempt <= sendAttempts; attempt++ {
		if err = t.post(ctx, chatID, text); err == nil {
			logger.Info("telegram message delivered", slog.Int("attempt", attempt))
			return nil
		}

		wait, retry := t.backoff(err)
		if !retry {
			logger.Error("telegram message rejected", slog.Any("error", err))
			return err
		}
		if attempt == sendAttempts {
			break
		}

		logger.Warn("telegram send failed, retrying",
			slog.Int("attempt", attempt),
			slog.Duration("delay", wait),
			slog.Any("error", err))
		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("telegram retry aborted: %w", ctx.Err())
		}
	}

	logger.Error("telegram message failed", slog.Int("attempts", sendAttempts), slog.Any("error", err))
	return fmt.Errorf("telegram sendMessage failed after %d attempts: %w", sendAttempts, err)
}

// backoff decides whether err is worth another attempt and how long to wait.
func (t *TelegramNotifier) backoff(err error) (time.Duration, bool) {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return t.retryDelay, true
	}
	switch {
	case apiErr.Throttled():
		return apiErr.RetryAfter, true
	case apiErr.Temporary():
		return t.retryDelay, true
	default:
		return 0, false
	}
}

// post performs one sendMessage call.
func (t *TelegramNotifier) post(ctx context.Context, chatID, text string) error {
	payload, err := json.Marshal(sendMessageRequest{
		ChatID:                chatID,
		Text:                  text,
		ParseMode:             ParseModeMarkdownV2,
		DisableWebPagePreview: true,
	})
	if err != nil {
		return fmt.Errorf("marshal sendMessage payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint(), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create http request: %s", t.redact(err.Error()))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		// *url.Error carries the full request URL, token included.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			urlErr.URL = t.redact(urlErr.URL)
		}
		return fmt.Errorf("execute http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var envelope apiResponse
	_ = json.Unmarshal(body, &envelope)

	description := envelope.Description
	if description == "" {
		description = strings.TrimSpace(string(body))
	}
	if description == "" {
		description = http.StatusText(resp.StatusCode)
	}

	apiErr := &APIError{StatusCode: resp.StatusCode, Description: t.redact(description)}
	if apiErr.Throttled() {
		apiErr.RetryAfter = retryAfter(resp.Header, envelope)
	}
	return apiErr
}

// retryAfter prefers parameters.retry_after from the body, then the
// Retry-After header, then defaultRetryAfter.
func retryAfter(h http.Header, envelope apiResponse) time.Duration {
	if envelope.Parameters.RetryAfter > 0 {
		return time.Duration(envelope.Parameters.RetryAfter) * time.Second
	}
	if seconds, err := strconv.Atoi(h.Get("Retry-After")); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return defaultRetryAfter
}

func (t *TelegramNotifier) endpoint() string {
	return t.config.BaseURL + "/bot" + t.config.BotToken + "/sendMessage"
}

// redact removes the bot token from s.
func (t *TelegramNotifier) redact(s string) string {
	if t.config.BotToken == "" {
		return s
	}
	return strings.ReplaceAll(s, t.config.BotToken, "[REDACTED]")
}
