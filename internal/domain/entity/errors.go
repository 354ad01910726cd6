package entity

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by a record store that has no record for an item.
	ErrNotFound = errors.New("entity not found")

	// ErrConflict means a conditional write lost to a concurrent writer. The
	// caller holds a stale revision and must re-read before retrying.
	ErrConflict = errors.New("revision conflict")

	// ErrInvalidRecord is matched by every *ValidationError.
	ErrInvalidRecord = errors.New("invalid record")
)

// ValidationError names the record field that failed validation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidRecord }
