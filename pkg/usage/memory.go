package usage

import (
	"context"
	"sync"
	"time"
)

// MemorySink keeps records in memory. Used for tests and for runs with no
// usage database configured.
type MemorySink struct {
	mu      sync.Mutex
	records []Record
}

// NewMemorySink creates an in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Write appends the record.
func (s *MemorySink) Write(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

// ReadStats aggregates records for callerID created at or after since.
func (s *MemorySink) ReadStats(_ context.Context, callerID string, since time.Time) (*Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := &Stats{ByModel: make(map[string]int64)}
	for _, rec := range s.records {
		if rec.CallerID != callerID || rec.CreatedAt.Before(since) {
			continue
		}
		stats.TotalRequests++
		stats.TotalTokens += int64(rec.TotalTokens)
		stats.TotalCost += rec.Cost
		stats.ByModel[rec.Model]++
	}
	return stats, nil
}

// Records returns a copy of everything written so far.
func (s *MemorySink) Records() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out
}
