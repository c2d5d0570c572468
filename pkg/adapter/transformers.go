package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const defaultTransformersBaseURL = "http://127.0.0.1:8090"

// TransformersAdapter implements the Adapter interface for a local
// transformer text-generation pipeline reached over HTTP. The pipeline
// echoes the prompt at the head of the generated text; the adapter trims
// it and counts tokens with the model's own tokenizer: the input length
// before generation, the generated suffix after.
//
// The pipeline has no stop-sequence concept, so stop sequences are
// silently ignored.
type TransformersAdapter struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// transformersGenerateRequest is the pipeline runtime request format.
type transformersGenerateRequest struct {
	Inputs     string                 `json:"inputs"`
	Parameters transformersParameters `json:"parameters"`
}

type transformersParameters struct {
	MaxNewTokens   int     `json:"max_new_tokens"`
	Temperature    float64 `json:"temperature"`
	TopP           float64 `json:"top_p"`
	DoSample       bool    `json:"do_sample"`
	ReturnFullText bool    `json:"return_full_text"`
}

// transformersGenerateResponse is the pipeline runtime response format.
type transformersGenerateResponse struct {
	GeneratedText string `json:"generated_text"`
	Error         string `json:"error,omitempty"`
}

type transformersTokenizeRequest struct {
	Content string `json:"content"`
}

type transformersTokenizeResponse struct {
	Tokens []int `json:"tokens"`
}

// NewTransformersAdapter creates a new transformer pipeline adapter.
func NewTransformersAdapter(baseURL, model string) *TransformersAdapter {
	if baseURL == "" {
		baseURL = defaultTransformersBaseURL
	}
	return &TransformersAdapter{
		baseURL:    baseURL,
		model:      model,
		httpClient: &http.Client{},
	}
}

// Name returns the adapter identifier.
func (a *TransformersAdapter) Name() string {
	return "transformers"
}

// CheckPrerequisites probes the pipeline runtime. A runtime that does not
// answer the health endpoint means the acceleration stack is not loaded.
func (a *TransformersAdapter) CheckPrerequisites() error {
	req, err := http.NewRequest("GET", a.baseURL+"/health", nil)
	if err != nil {
		return &PrerequisiteError{Provider: a.Name(), Reason: err.Error()}
	}
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return &PrerequisiteError{
			Provider: a.Name(),
			Reason:   fmt.Sprintf("pipeline runtime not reachable at %s: %v", a.baseURL, err),
		}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &PrerequisiteError{
			Provider: a.Name(),
			Reason:   fmt.Sprintf("pipeline runtime unhealthy (status %d)", resp.StatusCode),
		}
	}
	return nil
}

// Models returns the configured pipeline model.
func (a *TransformersAdapter) Models() []ModelInfo {
	return []ModelInfo{
		{ID: a.model, Description: "Local transformer pipeline"},
	}
}

// Complete generates text via the pipeline runtime, trims the echoed
// prompt, and counts tokens with the model tokenizer.
func (a *TransformersAdapter) Complete(ctx context.Context, req Request) (*Completion, error) {
	inputTokens, err := a.tokenize(ctx, req.Prompt)
	if err != nil {
		return nil, err
	}

	body := transformersGenerateRequest{
		Inputs: req.Prompt,
		Parameters: transformersParameters{
			MaxNewTokens:   req.MaxTokens,
			Temperature:    req.Temperature,
			TopP:           req.TopP,
			DoSample:       true,
			ReturnFullText: true,
		},
	}

	var generated transformersGenerateResponse
	status, err := a.post(ctx, "/generate", body, &generated)
	if err != nil {
		return nil, err
	}
	if generated.Error != "" {
		return nil, &BackendError{
			Provider: a.Name(),
			Status:   status,
			Err:      fmt.Errorf("pipeline error: %s", generated.Error),
		}
	}
	if status != http.StatusOK {
		return nil, &BackendError{
			Provider: a.Name(),
			Status:   status,
			Err:      fmt.Errorf("pipeline returned status %d", status),
		}
	}

	// The pipeline returns prompt + continuation; keep only the suffix.
	output := strings.TrimPrefix(generated.GeneratedText, req.Prompt)

	outputTokens, err := a.tokenize(ctx, output)
	if err != nil {
		return nil, err
	}

	return &Completion{
		Text:         strings.TrimSpace(output),
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		Model:        a.model,
	}, nil
}

// tokenize counts tokens for text using the model's own tokenizer.
func (a *TransformersAdapter) tokenize(ctx context.Context, text string) (int, error) {
	if text == "" {
		return 0, nil
	}
	var resp transformersTokenizeResponse
	status, err := a.post(ctx, "/tokenize", transformersTokenizeRequest{Content: text}, &resp)
	if err != nil {
		return 0, err
	}
	if status != http.StatusOK {
		return 0, &BackendError{
			Provider: a.Name(),
			Status:   status,
			Err:      fmt.Errorf("tokenize returned status %d", status),
		}
	}
	return len(resp.Tokens), nil
}

func (a *TransformersAdapter) post(ctx context.Context, path string, body, out any) (int, error) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return 0, &BackendError{Provider: a.Name(), Err: fmt.Errorf("failed to marshal request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, "POST", a.baseURL+path, bytes.NewReader(jsonBody))
	if err != nil {
		return 0, &BackendError{Provider: a.Name(), Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return 0, &BackendError{Provider: a.Name(), Temporary: true, Err: fmt.Errorf("request failed: %w", err)}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, &BackendError{Provider: a.Name(), Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return resp.StatusCode, &BackendError{
			Provider: a.Name(),
			Status:   resp.StatusCode,
			Err:      fmt.Errorf("failed to parse response: %w", err),
		}
	}
	return resp.StatusCode, nil
}
