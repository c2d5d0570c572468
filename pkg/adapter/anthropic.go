package adapter

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultAnthropicModel = "claude-sonnet-4-20250514"

// AnthropicAdapter implements the Adapter interface for Claude models.
// Token counts are reported by the provider's response metadata and
// trusted as-is; no local re-tokenization.
type AnthropicAdapter struct {
	client anthropic.Client
	apiKey string
}

// NewAnthropicAdapter creates a new Anthropic adapter.
func NewAnthropicAdapter(apiKey string) *AnthropicAdapter {
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &AnthropicAdapter{client: client, apiKey: apiKey}
}

// Name returns the adapter identifier.
func (a *AnthropicAdapter) Name() string {
	return "anthropic"
}

// CheckPrerequisites verifies the API credential is configured.
func (a *AnthropicAdapter) CheckPrerequisites() error {
	if a.apiKey == "" {
		return &PrerequisiteError{Provider: a.Name(), Reason: "ANTHROPIC_API_KEY is not configured"}
	}
	return nil
}

// Models returns the list of supported Claude models.
func (a *AnthropicAdapter) Models() []ModelInfo {
	return []ModelInfo{
		{ID: "claude-sonnet-4-20250514", Description: "Balanced chat model"},
		{ID: "claude-opus-4-20250514", Description: "Highest quality chat model"},
	}
}

// Complete sends the prompt to Claude and returns the completion with the
// provider-reported usage.
func (a *AnthropicAdapter) Complete(ctx context.Context, req Request) (*Completion, error) {
	model := req.Model
	if model == "" {
		model = defaultAnthropicModel
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(req.MaxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
		Temperature: anthropic.Float(req.Temperature),
		TopP:        anthropic.Float(req.TopP),
	}
	if len(req.StopSequences) > 0 {
		params.StopSequences = req.StopSequences
	}

	resp, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return nil, &BackendError{Provider: a.Name(), Err: err}
	}

	var content string
	for _, block := range resp.Content {
		if block.Type == "text" {
			content += block.Text
		}
	}
	if content == "" {
		return nil, &BackendError{Provider: a.Name(), Err: fmt.Errorf("no text content returned")}
	}

	return &Completion{
		Text:         content,
		InputTokens:  int(resp.Usage.InputTokens),
		OutputTokens: int(resp.Usage.OutputTokens),
		Model:        model,
	}, nil
}
