package adapter

import (
	"context"
	"fmt"
	"strings"
)

// MockAdapter returns deterministic responses for local runs and tests.
// Token counts are word counts over the mock's own text, standing in for
// a real tokenizer.
type MockAdapter struct {
	responses       map[string]string
	defaultResponse string
	Err             error
}

// NewMockAdapter creates a mock adapter with a default response.
func NewMockAdapter() *MockAdapter {
	return &MockAdapter{
		responses:       make(map[string]string),
		defaultResponse: "mock response:",
	}
}

// NewMockAdapterWithResponses creates a mock adapter with predefined responses.
func NewMockAdapterWithResponses(responses map[string]string, defaultResponse string) *MockAdapter {
	if defaultResponse == "" {
		defaultResponse = "mock response:"
	}
	return &MockAdapter{responses: responses, defaultResponse: defaultResponse}
}

// Name returns the adapter identifier.
func (a *MockAdapter) Name() string {
	return "mock"
}

// CheckPrerequisites always succeeds for the mock adapter.
func (a *MockAdapter) CheckPrerequisites() error {
	return nil
}

// Models returns the list of supported mock models.
func (a *MockAdapter) Models() []ModelInfo {
	return []ModelInfo{
		{ID: "mock-1", Description: "Deterministic mock model"},
	}
}

// Complete returns a deterministic completion for the prompt.
func (a *MockAdapter) Complete(_ context.Context, req Request) (*Completion, error) {
	if a.Err != nil {
		return nil, a.Err
	}

	model := req.Model
	if model == "" {
		model = "mock-1"
	}

	text, ok := a.responses[req.Prompt]
	if !ok {
		text = fmt.Sprintf("%s %s", a.defaultResponse, req.Prompt)
	}

	return &Completion{
		Text:         text,
		InputTokens:  len(strings.Fields(req.Prompt)),
		OutputTokens: len(strings.Fields(text)),
		Model:        model,
	}, nil
}
