package observability

import (
	"context"

	"go.uber.org/zap"
)

type contextKey string

// Request-scoped context keys set by the HTTP correlation middleware.
const (
	CorrelationIDKey contextKey = "correlation_id"
	LoggerKey        contextKey = "logger"
)

// WithLogger returns ctx carrying logger.
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// LoggerFromContext returns the request logger, or nil when none is attached.
func LoggerFromContext(ctx context.Context) *zap.Logger {
	if v := ctx.Value(LoggerKey); v != nil {
		if l, ok := v.(*zap.Logger); ok && l != nil {
			return l
		}
	}
	return nil
}

// CorrelationID returns the request correlation ID, or "".
func CorrelationID(ctx context.Context) string {
	if v, ok := ctx.Value(CorrelationIDKey).(string); ok {
		return v
	}
	return ""
}
