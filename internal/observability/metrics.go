package observability

import (
	"context"

	"github.com/getsentry/sentry-go"
)

type meterContextKey struct{}

// WithMeter stores a request-scoped meter in the context so order and
// catalog code can record counters against the current trace.
func WithMeter(ctx context.Context, meter sentry.Meter) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if meter == nil {
		meter = sentry.NewMeter(ctx)
	}
	return context.WithValue(ctx, meterContextKey{}, meter.WithCtx(ctx))
}

// MeterFromContext returns the context meter rebound to ctx, or a fresh one
// when the request middleware did not run (worker goroutines, tests).
func MeterFromContext(ctx context.Context) sentry.Meter {
	if ctx == nil {
		ctx = context.Background()
	}
	if meter, ok := ctx.Value(meterContextKey{}).(sentry.Meter); ok && meter != nil {
		return meter.WithCtx(ctx)
	}
	return sentry.NewMeter(ctx).WithCtx(ctx)
}
