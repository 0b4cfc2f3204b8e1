package db

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
)

// FilteredTracer forwards query traces to inner except for statements that
// mention skipTable
type FilteredTracer struct {
	inner     pgx.QueryTracer
	skipTable string
}

// NewFilteredTracer wraps inner; the table match is case-insensitive
func NewFilteredTracer(inner pgx.QueryTracer, skipTable string) *FilteredTracer {
	return &FilteredTracer{
		inner:     inner,
		skipTable: strings.ToLower(skipTable),
	}
}

type skipCtxKey struct{}

func (t *FilteredTracer) TraceQueryStart(ctx context.Context, conn *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	if t.skipTable != "" && strings.Contains(strings.ToLower(data.SQL), t.skipTable) {
		return context.WithValue(ctx, skipCtxKey{}, true)
	}

	return t.inner.TraceQueryStart(ctx, conn, data)
}

func (t *FilteredTracer) TraceQueryEnd(ctx context.Context, conn *pgx.Conn, data pgx.TraceQueryEndData) {
	if ctx.Value(skipCtxKey{}) != nil {
		return
	}

	t.inner.TraceQueryEnd(ctx, conn, data)
}
