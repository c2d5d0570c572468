package usage

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func newTestSink(t *testing.T) *SQLiteSink {
	t.Helper()
	sink, err := NewSQLiteSink(filepath.Join(t.TempDir(), "usage.db"))
	if err != nil {
		t.Fatalf("open sink: %v", err)
	}
	t.Cleanup(func() { _ = sink.Close() })
	return sink
}

func TestSQLiteWriteAndReadStats(t *testing.T) {
	sink := newTestSink(t)
	ctx := context.Background()
	now := time.Now()

	records := []Record{
		{ID: NewRecordID(), CallerID: "u1", Endpoint: "generate", Provider: "mock", Model: "mock-1", InputTokens: 10, OutputTokens: 20, TotalTokens: 30, Cost: 0.03, LatencyMS: 12, StatusCode: 200, CreatedAt: now},
		{ID: NewRecordID(), CallerID: "u1", Endpoint: "generate", Provider: "mock", Model: "mock-2", InputTokens: 5, OutputTokens: 5, TotalTokens: 10, Cost: 0.01, LatencyMS: 8, StatusCode: 200, CreatedAt: now},
		{ID: NewRecordID(), CallerID: "u2", Endpoint: "generate", Provider: "mock", Model: "mock-1", InputTokens: 1, OutputTokens: 1, TotalTokens: 2, Cost: 0, LatencyMS: 3, StatusCode: 200, CreatedAt: now},
	}
	for _, rec := range records {
		if err := sink.Write(ctx, rec); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	stats, err := sink.ReadStats(ctx, "u1", now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("read stats: %v", err)
	}
	if stats.TotalRequests != 2 {
		t.Fatalf("total requests = %d, want 2", stats.TotalRequests)
	}
	if stats.TotalTokens != 40 {
		t.Fatalf("total tokens = %d, want 40", stats.TotalTokens)
	}
	if stats.ByModel["mock-1"] != 1 || stats.ByModel["mock-2"] != 1 {
		t.Fatalf("unexpected by-model counts: %v", stats.ByModel)
	}
}

func TestSQLiteReadStatsHonorsSince(t *testing.T) {
	sink := newTestSink(t)
	ctx := context.Background()
	now := time.Now()

	old := Record{ID: NewRecordID(), CallerID: "u1", Endpoint: "generate", Provider: "mock", Model: "mock-1", TotalTokens: 100, CreatedAt: now.Add(-48 * time.Hour)}
	recent := Record{ID: NewRecordID(), CallerID: "u1", Endpoint: "generate", Provider: "mock", Model: "mock-1", TotalTokens: 7, CreatedAt: now}
	for _, rec := range []Record{old, recent} {
		if err := sink.Write(ctx, rec); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	stats, err := sink.ReadStats(ctx, "u1", now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("read stats: %v", err)
	}
	if stats.TotalRequests != 1 || stats.TotalTokens != 7 {
		t.Fatalf("expected only the recent record, got %+v", stats)
	}
}

func TestSQLiteStatsEmptyForUnknownCaller(t *testing.T) {
	sink := newTestSink(t)

	stats, err := sink.ReadStats(context.Background(), "nobody", time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("read stats: %v", err)
	}
	if stats.TotalRequests != 0 || stats.TotalTokens != 0 || stats.TotalCost != 0 {
		t.Fatalf("expected zero stats, got %+v", stats)
	}
}
