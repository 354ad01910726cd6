package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Options configures New.
type Options struct {
	Level slog.Level
	// Text selects the human readable handler instead of JSON.
	Text bool
}

// NewLogger creates the process logger on stdout.
//
// LOG_LEVEL selects debug, info (default), warn or error.
// LOG_FORMAT=text switches to the text handler for local runs.
func NewLogger() *slog.Logger {
	return New(os.Stdout, Options{
		Level: levelFromEnv(),
		Text:  strings.EqualFold(os.Getenv("LOG_FORMAT"), "text"),
	})
}

// New creates a logger writing to w. Source locations are attached when the
// level is warn or lower.
func New(w io.Writer, opts Options) *slog.Logger {
	handlerOpts := &slog.HandlerOptions{
		Level:     opts.Level,
		AddSource: opts.Level <= slog.LevelWarn,
	}
	if opts.Text {
		return slog.New(slog.NewTextHandler(w, handlerOpts))
	}
	return slog.New(slog.NewJSONHandler(w, handlerOpts))
}

// WithCycleID returns logger annotated with the poll cycle ID carried by ctx.
func WithCycleID(ctx context.Context, logger *slog.Logger) *slog.Logger {
	cycleID := CycleIDFromContext(ctx)
	if cycleID == "" {
		return logger
	}
	return logger.With("cycle_id", cycleID)
}

// ContextWithCycleID stores the poll cycle ID in the context.
func ContextWithCycleID(ctx context.Context, cycleID string) context.Context {
	return context.WithValue(ctx, cycleIDContextKey, cycleID)
}

// CycleIDFromContext returns the poll cycle ID, or "" when none is set.
func CycleIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(cycleIDContextKey).(string)
	return id
}

// FromContext returns the logger stored in ctx, or slog.Default().
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerContextKey).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}

// WithLogger adds a logger to the context.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerContextKey, logger)
}

type contextKey string

const (
	loggerContextKey  contextKey = "logger"
	cycleIDContextKey contextKey = "cycle_id"
)

func levelFromEnv() slog.Level {
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
