package logging

import (
	"context"
	"io"
	"log/slog"
)

type loggerContextKey struct{}

// WithLogger stores a request-scoped logger in the context. The request
// middleware uses it to attach the request id to everything a handler logs.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, loggerContextKey{}, orDiscard(logger))
}

// FromContext returns the context logger, the fallback, or a discard logger,
// in that order. Callers never get nil back.
func FromContext(ctx context.Context, fallback *slog.Logger) *slog.Logger {
	if ctx != nil {
		if logger, ok := ctx.Value(loggerContextKey{}).(*slog.Logger); ok && logger != nil {
			return logger
		}
	}
	return orDiscard(fallback)
}

func orDiscard(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
