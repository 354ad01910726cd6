// Package poll implements the availability poll cycle: fetch sessions per
// region, keep the eligible ones, apply the per-session cooldown, render and
// dispatch alerts, and persist the notification record.
package poll

import "errors"

// Sentinel errors for poll use case operations.
var (
	// ErrFetchFailed indicates that the availability API could not be reached
	// or answered with a non-success status for a region.
	ErrFetchFailed = errors.New("failed to fetch availability")

	// ErrInvalidPayload indicates that the availability API answered 2xx but
	// the body was not the expected calendar document.
	ErrInvalidPayload = errors.New("invalid availability payload")
)
