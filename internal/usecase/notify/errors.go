package notify

import "errors"

var (
	// ErrChannelDisabled is reported for an addressed channel whose chat id
	// is not configured.
	ErrChannelDisabled = errors.New("channel is disabled")

	// ErrInvalidMessage rejects a message with no text.
	ErrInvalidMessage = errors.New("invalid message")

	// ErrConfigMissing means the bot token or primary chat id is unset, so
	// nothing is dispatched.
	ErrConfigMissing = errors.New("notification config missing")

	// ErrDispatchFailed wraps the transport error of a failed delivery.
	ErrDispatchFailed = errors.New("dispatch failed")

	// ErrNotificationDropped means the send gave up waiting for a worker
	// slot. The channel was never called.
	ErrNotificationDropped = errors.New("notification dropped before sending")

	errShuttingDown = errors.New("notification service shutting down")

	// ErrCircuitBreakerOpen means the channel failed repeatedly and is
	// skipped until its cooldown ends.
	ErrCircuitBreakerOpen = errors.New("channel circuit breaker open")
)
