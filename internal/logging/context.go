package logging

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type contextKey string

const correlationIDKey contextKey = "correlation_id"

// NewCorrelationID returns a short random id for tying log lines together.
func NewCorrelationID() string {
	return uuid.New().String()[:8]
}

// WithCorrelationID stores id in ctx.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey, id)
}

// EnsureCorrelationID returns ctx unchanged if it already carries an id,
// otherwise a child context with a fresh one.
func EnsureCorrelationID(ctx context.Context) context.Context {
	if CorrelationID(ctx) != "" {
		return ctx
	}
	return WithCorrelationID(ctx, NewCorrelationID())
}

func CorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(correlationIDKey).(string); ok {
		return id
	}
	return ""
}

// Ctx returns the global logger with the context's correlation id attached.
func Ctx(ctx context.Context) *zerolog.Logger {
	l := Logger()
	if id := CorrelationID(ctx); id != "" {
		l = l.With().Str("correlation_id", id).Logger()
	}
	return &l
}
