// Package usage defines the usage-record contract between the dispatch
// core and whatever stores billing facts.
package usage

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Record is an append-only fact describing one successful generation.
// The core constructs the value; ownership of storage belongs to the Sink.
type Record struct {
	ID           string
	CallerID     string
	Endpoint     string
	Provider     string
	Model        string
	InputTokens  int
	OutputTokens int
	TotalTokens  int
	Cost         float64
	LatencyMS    int64
	StatusCode   int
	CreatedAt    time.Time
}

// NewRecordID returns a fresh record identifier.
func NewRecordID() string {
	return uuid.NewString()
}

// Stats aggregates a caller's usage over a time range.
type Stats struct {
	TotalRequests int64
	TotalTokens   int64
	TotalCost     float64
	ByModel       map[string]int64
}

// Sink persists and aggregates usage records. A Write failure must never
// unwind a successful generation; callers log it and move on.
type Sink interface {
	Write(ctx context.Context, rec Record) error
	ReadStats(ctx context.Context, callerID string, since time.Time) (*Stats, error)
}
