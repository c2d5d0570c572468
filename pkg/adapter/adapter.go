package adapter

import (
	"context"
	"fmt"
)

// MaxOutputTokens is the upper bound accepted for a single request.
const MaxOutputTokens = 4096

// Adapter defines the interface for LLM provider adapters.
type Adapter interface {
	// Complete sends a normalized request to the backend and returns the
	// generated text with the backend's own token accounting.
	Complete(ctx context.Context, req Request) (*Completion, error)

	// CheckPrerequisites reports whether the adapter can serve requests
	// (model file present, credential configured, runtime reachable).
	CheckPrerequisites() error

	// Name returns the adapter's identifier.
	Name() string

	// Models returns the list of supported models.
	Models() []ModelInfo
}

// ModelInfo holds metadata about a model.
type ModelInfo struct {
	ID          string
	Description string
}

// Request is the normalized generation request. It is created once per
// inbound call and never mutated.
type Request struct {
	Prompt        string
	MaxTokens     int
	Temperature   float64
	TopP          float64
	Model         string // empty means provider default
	StopSequences []string
}

// Validate checks the request against the accepted parameter bounds.
func (r Request) Validate() error {
	if r.Prompt == "" {
		return fmt.Errorf("prompt must not be empty")
	}
	if r.MaxTokens < 1 || r.MaxTokens > MaxOutputTokens {
		return fmt.Errorf("max_tokens must be between 1 and %d, got %d", MaxOutputTokens, r.MaxTokens)
	}
	if r.Temperature < 0 || r.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0.0 and 2.0, got %g", r.Temperature)
	}
	if r.TopP < 0 || r.TopP > 1 {
		return fmt.Errorf("top_p must be between 0.0 and 1.0, got %g", r.TopP)
	}
	return nil
}

// Completion is the raw adapter output. Token counts always come from the
// serving backend's own tokenizer or response metadata; derived fields
// (totals, latency, cost) are computed by the dispatcher, never here.
type Completion struct {
	Text         string
	InputTokens  int
	OutputTokens int
	Model        string
}
