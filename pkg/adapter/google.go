package adapter

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

const defaultGoogleModel = "gemini-2.0-pro"

// GoogleAdapter implements the Adapter interface for Gemini models.
// Token counts are reported by the provider's usage metadata and
// trusted as-is; no local re-tokenization.
type GoogleAdapter struct {
	client *genai.Client
	apiKey string
}

// NewGoogleAdapter creates a new Google Gemini adapter.
func NewGoogleAdapter(apiKey string) (*GoogleAdapter, error) {
	if apiKey == "" {
		return &GoogleAdapter{apiKey: ""}, nil
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create google client: %w", err)
	}

	return &GoogleAdapter{client: client, apiKey: apiKey}, nil
}

// Name returns the adapter identifier.
func (a *GoogleAdapter) Name() string {
	return "google"
}

// CheckPrerequisites verifies the API credential is configured.
func (a *GoogleAdapter) CheckPrerequisites() error {
	if a.apiKey == "" || a.client == nil {
		return &PrerequisiteError{Provider: a.Name(), Reason: "GOOGLE_API_KEY is not configured"}
	}
	return nil
}

// Models returns the list of supported Gemini models.
func (a *GoogleAdapter) Models() []ModelInfo {
	return []ModelInfo{
		{ID: "gemini-2.0-pro", Description: "General-purpose Gemini model"},
	}
}

// Complete sends the prompt to Gemini and returns the completion with the
// provider-reported usage.
func (a *GoogleAdapter) Complete(ctx context.Context, req Request) (*Completion, error) {
	model := req.Model
	if model == "" {
		model = defaultGoogleModel
	}

	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(req.Temperature)),
		TopP:            genai.Ptr(float32(req.TopP)),
		MaxOutputTokens: int32(req.MaxTokens),
	}
	if len(req.StopSequences) > 0 {
		cfg.StopSequences = req.StopSequences
	}

	resp, err := a.client.Models.GenerateContent(ctx, model, genai.Text(req.Prompt), cfg)
	if err != nil {
		return nil, &BackendError{Provider: a.Name(), Err: err}
	}

	if resp == nil || len(resp.Candidates) == 0 {
		return nil, &BackendError{Provider: a.Name(), Err: fmt.Errorf("no candidates returned")}
	}

	var content string
	if resp.Candidates[0].Content != nil {
		for _, part := range resp.Candidates[0].Content.Parts {
			if part.Text != "" {
				content += part.Text
			}
		}
	}

	var inputTokens, outputTokens int
	if resp.UsageMetadata != nil {
		inputTokens = int(resp.UsageMetadata.PromptTokenCount)
		outputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}

	return &Completion{
		Text:         content,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		Model:        model,
	}, nil
}
