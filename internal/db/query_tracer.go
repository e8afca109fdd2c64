package db

import (
	"context"
	"strings"

	"github.com/getsentry/sentry-go"
	"github.com/jackc/pgx/v5"
)

type storeSpanKey struct{}

// storeTracer emits a Sentry span per store query. Spans are only created
// inside an existing trace, so worker ticks without sampling stay free.
type storeTracer struct{}

func newQueryTracer() *storeTracer {
	return &storeTracer{}
}

func (t *storeTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	if sentry.SpanFromContext(ctx) == nil {
		return ctx
	}

	query := compactSQL(data.SQL)
	span := sentry.StartSpan(
		ctx,
		"db.query",
		sentry.WithDescription(query),
		sentry.WithSpanOrigin(sentry.SpanOriginManual),
	)
	span.SetData("db.system", "postgresql")

	if verb := sqlVerb(query); verb != "" {
		span.SetData("db.operation", verb)
	}

	return context.WithValue(span.Context(), storeSpanKey{}, span)
}

func (t *storeTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	span, _ := ctx.Value(storeSpanKey{}).(*sentry.Span)
	if span == nil {
		return
	}

	if data.Err != nil {
		span.Status = sentry.SpanStatusInternalError
		span.SetData("db.error", data.Err.Error())
	} else {
		span.Status = sentry.SpanStatusOK
	}

	if rows := data.CommandTag.RowsAffected(); rows >= 0 {
		span.SetData("db.rows_affected", rows)
	}

	span.Finish()
}

// compactSQL collapses the multi-line store queries into a single span
// description, capped so order item JSON never bloats an event.
func compactSQL(query string) string {
	compact := strings.Join(strings.Fields(strings.TrimSpace(query)), " ")
	if compact == "" {
		return "sql.query"
	}
	const maxLen = 512
	if len(compact) > maxLen {
		return compact[:maxLen]
	}
	return compact
}

func sqlVerb(query string) string {
	parts := strings.Fields(query)
	if len(parts) == 0 {
		return ""
	}
	return strings.ToUpper(parts[0])
}
