package logging

import (
	"context"
	"errors"
	"io"
	"log/slog"
)

// MultiHandler fans a record out to every given handler. Nil handlers are
// skipped so callers can pass optional sinks unconditionally.
func MultiHandler(handlers ...slog.Handler) slog.Handler {
	active := make([]slog.Handler, 0, len(handlers))
	for _, h := range handlers {
		if h != nil {
			active = append(active, h)
		}
	}
	if len(active) == 0 {
		return slog.NewTextHandler(io.Discard, nil)
	}
	return fanoutHandler(active)
}

type fanoutHandler []slog.Handler

func (f fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle delivers the record to every handler that wants it. One sink
// failing does not stop delivery to the rest.
func (f fanoutHandler) Handle(ctx context.Context, record slog.Record) error {
	var errs error
	for _, h := range f {
		if !h.Enabled(ctx, record.Level) {
			continue
		}
		errs = errors.Join(errs, h.Handle(ctx, record.Clone()))
	}
	return errs
}

func (f fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make(fanoutHandler, len(f))
	for i, h := range f {
		next[i] = h.WithAttrs(attrs)
	}
	return next
}

func (f fanoutHandler) WithGroup(name string) slog.Handler {
	next := make(fanoutHandler, len(f))
	for i, h := range f {
		next[i] = h.WithGroup(name)
	}
	return next
}
