package log

import (
	"context"

	"github.com/rs/zerolog"
)

type ctxKey struct{}

// WithLogger stores a logger in the context.
func WithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// WithConnection derives a child logger carrying the connection id and
// its authenticated user, and stores it in the context. Event handlers
// down the call chain pick it up via Ctx.
func WithConnection(ctx context.Context, connID string, userID int64) context.Context {
	child := Ctx(ctx).With().
		Str(FieldConnID, connID).
		Int64(FieldUserID, userID).
		Logger()
	return WithLogger(ctx, child)
}

// Ctx retrieves the logger from the context.
// If no logger is found, the global logger is returned.
func Ctx(ctx context.Context) zerolog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(zerolog.Logger); ok {
		return l
	}
	return L()
}
