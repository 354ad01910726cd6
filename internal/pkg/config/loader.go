// Package config loads operational settings that must never keep the worker
// from starting. A malformed value is replaced by its default and reported as
// a Fallback; callers log it and count it in ConfigMetrics.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Fallback describes an environment value that was rejected.
type Fallback struct {
	Key     string
	Raw     string
	Default string
	Err     error
}

func (f *Fallback) String() string {
	return fmt.Sprintf("Invalid %s='%s': %v, falling back to default '%s'", f.Key, f.Raw, f.Err, f.Default)
}

// Result is the outcome of loading one value. Fallback is nil when the
// environment value was used or the variable was unset.
type Result[T any] struct {
	Value    T
	Fallback *Fallback
}

// FallbackApplied reports whether Value is the default because the
// environment value was rejected.
func (r Result[T]) FallbackApplied() bool {
	return r.Fallback != nil
}

// Load reads key, parses it and validates the parsed value. An unset or empty
// variable yields def silently; a parse or validation failure yields def with
// a Fallback. validate may be nil.
func Load[T any](key string, def T, parse func(string) (T, error), validate func(T) error) Result[T] {
	raw := os.Getenv(key)
	if raw == "" {
		return Result[T]{Value: def}
	}

	reject := func(err error) Result[T] {
		return Result[T]{
			Value:    def,
			Fallback: &Fallback{Key: key, Raw: raw, Default: fmt.Sprint(def), Err: err},
		}
	}

	v, err := parse(raw)
	if err != nil {
		return reject(err)
	}
	if validate != nil {
		if err := validate(v); err != nil {
			return reject(err)
		}
	}
	return Result[T]{Value: v}
}

// LoadEnvString returns the value of key, or def when it is unset or empty.
func LoadEnvString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// LoadEnvWithFallback loads a string checked by validate.
func LoadEnvWithFallback(key, def string, validate func(string) error) Result[string] {
	return Load(key, def, func(s string) (string, error) { return s, nil }, validate)
}

// LoadEnvDuration loads a Go duration string such as "90s" or "2m".
func LoadEnvDuration(key string, def time.Duration, validate func(time.Duration) error) Result[time.Duration] {
	return Load(key, def, time.ParseDuration, validate)
}

// LoadEnvInt loads a base 10 integer.
func LoadEnvInt(key string, def int, validate func(int) error) Result[int] {
	return Load(key, def, func(s string) (int, error) {
		n, err := strconv.Atoi(s)
		if err != nil {
			return 0, fmt.Errorf("invalid integer format")
		}
		return n, nil
	}, validate)
}
