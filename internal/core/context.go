package core

import (
	"context"
	"log/slog"
)

type cycleIDKey struct{}
type loggerKey struct{}

func WithCycleID(ctx context.Context, cycleID string) context.Context {
	if ctx == nil || cycleID == "" {
		return ctx
	}
	return context.WithValue(ctx, cycleIDKey{}, cycleID)
}

func CycleIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(cycleIDKey{}).(string); ok {
		return v
	}
	return ""
}

// WithLogger attaches a slog logger to the context.
// Callers should attach correlation fields (cycle_id, site) before storing it.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	if ctx == nil || logger == nil {
		return ctx
	}
	return context.WithValue(ctx, loggerKey{}, logger)
}

// LoggerFromContext returns the logger attached to the context, or slog.Default() if absent.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	if ctx == nil {
		return slog.Default()
	}
	if logger, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok && logger != nil {
		return logger
	}
	return slog.Default()
}
