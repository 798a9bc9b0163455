package db

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestTruncateSQL(t *testing.T) {
	if got := truncateSQL("SELECT 1", 200); got != "SELECT 1" {
		t.Fatalf("short sql changed: %q", got)
	}
	long := strings.Repeat("x", 300)
	got := truncateSQL(long, 200)
	if len(got) != 203 || !strings.HasSuffix(got, "...") {
		t.Fatalf("unexpected truncation length %d", len(got))
	}
}

func TestSlowQueryTracerLogsOnlySlowQueries(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	tracer := NewSlowQueryTracer(zap.New(core), time.Millisecond)

	fast := tracer.TraceQueryStart(context.Background(), nil, pgx.TraceQueryStartData{SQL: "SELECT fast"})
	tracer.TraceQueryEnd(fast, nil, pgx.TraceQueryEndData{})
	if logs.Len() != 0 {
		t.Fatalf("fast query was logged")
	}

	slow := tracer.TraceQueryStart(context.Background(), nil, pgx.TraceQueryStartData{SQL: "SELECT slow"})
	time.Sleep(5 * time.Millisecond)
	tracer.TraceQueryEnd(slow, nil, pgx.TraceQueryEndData{})
	entries := logs.FilterMessage("slow-query").All()
	if len(entries) != 1 {
		t.Fatalf("expected one slow-query entry, got %d", len(entries))
	}
	if entries[0].ContextMap()["sql"] != "SELECT slow" {
		t.Fatalf("unexpected sql field %v", entries[0].ContextMap()["sql"])
	}
}
