package logging

import (
	"context"
	"log/slog"
	"testing"
)

type recordingHandler struct {
	level    slog.Level
	messages []string
	attrs    []slog.Attr
}

func (r *recordingHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= r.level
}

func (r *recordingHandler) Handle(_ context.Context, record slog.Record) error {
	r.messages = append(r.messages, record.Message)
	return nil
}

func (r *recordingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	r.attrs = append(r.attrs, attrs...)
	return r
}

func (r *recordingHandler) WithGroup(string) slog.Handler { return r }

func TestMultiHandlerFansOut(t *testing.T) {
	t.Parallel()

	first := &recordingHandler{level: slog.LevelInfo}
	second := &recordingHandler{level: slog.LevelInfo}
	logger := slog.New(MultiHandler(first, second))

	logger.Info("hello")

	if len(first.messages) != 1 || first.messages[0] != "hello" {
		t.Fatalf("first.messages = %v, want [hello]", first.messages)
	}
	if len(second.messages) != 1 {
		t.Fatalf("second.messages = %v, want one record", second.messages)
	}
}

func TestMultiHandlerRespectsPerSinkLevel(t *testing.T) {
	t.Parallel()

	verbose := &recordingHandler{level: slog.LevelDebug}
	quiet := &recordingHandler{level: slog.LevelError}
	logger := slog.New(MultiHandler(verbose, quiet))

	logger.Info("routine")
	logger.Error("broken")

	if len(verbose.messages) != 2 {
		t.Fatalf("verbose.messages = %v, want both records", verbose.messages)
	}
	if len(quiet.messages) != 1 || quiet.messages[0] != "broken" {
		t.Fatalf("quiet.messages = %v, want [broken]", quiet.messages)
	}
}

func TestMultiHandlerSkipsNilHandlers(t *testing.T) {
	t.Parallel()

	sink := &recordingHandler{level: slog.LevelInfo}
	logger := slog.New(MultiHandler(nil, sink, nil))

	logger.Info("one")

	if len(sink.messages) != 1 {
		t.Fatalf("sink.messages = %v, want one record", sink.messages)
	}
}

func TestMultiHandlerWithNoHandlersDiscards(t *testing.T) {
	t.Parallel()

	handler := MultiHandler()
	if handler.Enabled(context.Background(), slog.LevelError) {
		t.Fatalf("empty multi handler should be disabled")
	}
}
