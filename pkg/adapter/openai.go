package adapter

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const defaultOpenAIModel = "gpt-5.2-instant"

// OpenAIAdapter implements the Adapter interface for OpenAI models.
// Token counts are reported by the provider's response metadata and
// trusted as-is; no local re-tokenization.
type OpenAIAdapter struct {
	client openai.Client
	apiKey string
}

// NewOpenAIAdapter creates a new OpenAI adapter.
func NewOpenAIAdapter(apiKey string) *OpenAIAdapter {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAIAdapter{client: client, apiKey: apiKey}
}

// Name returns the adapter identifier.
func (a *OpenAIAdapter) Name() string {
	return "openai"
}

// CheckPrerequisites verifies the API credential is configured.
func (a *OpenAIAdapter) CheckPrerequisites() error {
	if a.apiKey == "" {
		return &PrerequisiteError{Provider: a.Name(), Reason: "OPENAI_API_KEY is not configured"}
	}
	return nil
}

// Models returns the list of supported OpenAI models.
func (a *OpenAIAdapter) Models() []ModelInfo {
	return []ModelInfo{
		{ID: "gpt-5.2-instant", Description: "Fast general-purpose chat model"},
		{ID: "gpt-5.2-thinking", Description: "Extended reasoning chat model"},
		{ID: "gpt-5.2-codex", Description: "Code-oriented chat model"},
		{ID: "gpt-5.2-pro", Description: "Highest quality chat model"},
	}
}

// Complete sends the prompt to OpenAI and returns the completion with the
// provider-reported usage.
func (a *OpenAIAdapter) Complete(ctx context.Context, req Request) (*Completion, error) {
	model := req.Model
	if model == "" {
		model = defaultOpenAIModel
	}

	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(req.Prompt),
		},
		MaxCompletionTokens: openai.Int(int64(req.MaxTokens)),
		Temperature:         openai.Float(req.Temperature),
		TopP:                openai.Float(req.TopP),
	}
	if len(req.StopSequences) > 0 {
		params.Stop = openai.ChatCompletionNewParamsStopUnion{
			OfStringArray: req.StopSequences,
		}
	}

	resp, err := a.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, &BackendError{Provider: a.Name(), Err: err}
	}

	if len(resp.Choices) == 0 {
		return nil, &BackendError{Provider: a.Name(), Err: fmt.Errorf("no choices returned")}
	}

	return &Completion{
		Text:         resp.Choices[0].Message.Content,
		InputTokens:  int(resp.Usage.PromptTokens),
		OutputTokens: int(resp.Usage.CompletionTokens),
		Model:        model,
	}, nil
}
