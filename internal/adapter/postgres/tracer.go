package postgres

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

// OpObserver receives the outcome of every query.
type OpObserver interface {
	ObserveStoreOp(operation, status string, duration time.Duration)
}

// queryTracer reports query timings to an OpObserver. Operations are labelled
// by their leading SQL keyword to keep label cardinality low.
type queryTracer struct {
	observer OpObserver
}

var _ pgx.QueryTracer = (*queryTracer)(nil)

type queryStartKey struct{}

type queryStart struct {
	at        time.Time
	operation string
}

func (t *queryTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	return context.WithValue(ctx, queryStartKey{}, queryStart{at: time.Now(), operation: operationName(data.SQL)})
}

func (t *queryTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	start, ok := ctx.Value(queryStartKey{}).(queryStart)
	if !ok {
		return
	}
	status := "success"
	if data.Err != nil {
		status = "error"
	}
	t.observer.ObserveStoreOp(start.operation, status, time.Since(start.at))
}

func operationName(sql string) string {
	fields := strings.Fields(sql)
	if len(fields) == 0 {
		return "unknown"
	}
	return strings.ToLower(fields[0])
}
