package circuitbreaker

import (
	"context"
	"database/sql"
)

// DB guards the writes and multi-row reads of a *sql.DB.
//
// QueryRowContext is passed through: *sql.Row defers its error to Scan, so
// the breaker never sees the outcome.
type DB struct {
	cb *CircuitBreaker
	db *sql.DB
}

// NewDBCircuitBreaker wraps db with a RecordStoreConfig breaker.
func NewDBCircuitBreaker(db *sql.DB) *DB {
	return &DB{cb: New(RecordStoreConfig()), db: db}
}

func (d *DB) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return Do(d.cb, func() (sql.Result, error) {
		return d.db.ExecContext(ctx, query, args...)
	})
}

func (d *DB) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return Do(d.cb, func() (*sql.Rows, error) {
		return d.db.QueryContext(ctx, query, args...)
	})
}

func (d *DB) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return d.db.QueryRowContext(ctx, query, args...)
}

// Breaker exposes the underlying breaker for state checks.
func (d *DB) Breaker() *CircuitBreaker { return d.cb }
