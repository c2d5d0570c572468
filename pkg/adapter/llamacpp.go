package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
)

const defaultLlamaCPPBaseURL = "http://127.0.0.1:8080"

// LlamaCPPAdapter implements the Adapter interface for a local quantized
// GGUF model served by a llama.cpp server process. Token counts come from
// the server's own tokenizer via /tokenize, on the raw prompt and the raw
// output text, never from whitespace heuristics.
type LlamaCPPAdapter struct {
	modelPath  string
	baseURL    string
	httpClient *http.Client
}

// llamaCompletionRequest is the llama.cpp server /completion request format.
type llamaCompletionRequest struct {
	Prompt      string   `json:"prompt"`
	NPredict    int      `json:"n_predict"`
	Temperature float64  `json:"temperature"`
	TopP        float64  `json:"top_p"`
	Stop        []string `json:"stop,omitempty"`
}

// llamaCompletionResponse is the llama.cpp server /completion response format.
type llamaCompletionResponse struct {
	Content string `json:"content"`
	Error   *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type llamaTokenizeRequest struct {
	Content string `json:"content"`
}

type llamaTokenizeResponse struct {
	Tokens []int `json:"tokens"`
}

// NewLlamaCPPAdapter creates a new llama.cpp adapter for the GGUF model at
// modelPath, served at baseURL.
func NewLlamaCPPAdapter(modelPath, baseURL string) *LlamaCPPAdapter {
	if baseURL == "" {
		baseURL = defaultLlamaCPPBaseURL
	}
	return &LlamaCPPAdapter{
		modelPath:  modelPath,
		baseURL:    baseURL,
		httpClient: &http.Client{},
	}
}

// Name returns the adapter identifier.
func (a *LlamaCPPAdapter) Name() string {
	return "llamacpp"
}

// CheckPrerequisites verifies that the configured model file exists.
func (a *LlamaCPPAdapter) CheckPrerequisites() error {
	if a.modelPath == "" {
		return &PrerequisiteError{Provider: a.Name(), Reason: "model path is not configured"}
	}
	if _, err := os.Stat(a.modelPath); err != nil {
		return &PrerequisiteError{
			Provider: a.Name(),
			Reason:   fmt.Sprintf("model file not found at %q", a.modelPath),
		}
	}
	return nil
}

// Models returns the single local GGUF model.
func (a *LlamaCPPAdapter) Models() []ModelInfo {
	return []ModelInfo{
		{ID: a.modelName(), Description: "Local GGUF model (llama.cpp)"},
	}
}

func (a *LlamaCPPAdapter) modelName() string {
	if a.modelPath == "" {
		return "model.gguf"
	}
	return filepath.Base(a.modelPath)
}

// Complete generates text via the llama.cpp server and counts tokens with
// its tokenizer.
func (a *LlamaCPPAdapter) Complete(ctx context.Context, req Request) (*Completion, error) {
	inputTokens, err := a.tokenize(ctx, req.Prompt)
	if err != nil {
		return nil, err
	}

	body := llamaCompletionRequest{
		Prompt:      req.Prompt,
		NPredict:    req.MaxTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		Stop:        req.StopSequences,
	}

	var completion llamaCompletionResponse
	status, err := a.post(ctx, "/completion", body, &completion)
	if err != nil {
		return nil, err
	}
	if completion.Error != nil {
		return nil, &BackendError{
			Provider: a.Name(),
			Status:   completion.Error.Code,
			Err:      fmt.Errorf("server error: %s", completion.Error.Message),
		}
	}
	if status != http.StatusOK {
		return nil, &BackendError{
			Provider: a.Name(),
			Status:   status,
			Err:      fmt.Errorf("server returned status %d", status),
		}
	}

	outputTokens, err := a.tokenize(ctx, completion.Content)
	if err != nil {
		return nil, err
	}

	return &Completion{
		Text:         completion.Content,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		Model:        a.modelName(),
	}, nil
}

// tokenize counts tokens for text using the server's own tokenizer.
func (a *LlamaCPPAdapter) tokenize(ctx context.Context, text string) (int, error) {
	if text == "" {
		return 0, nil
	}
	var resp llamaTokenizeResponse
	status, err := a.post(ctx, "/tokenize", llamaTokenizeRequest{Content: text}, &resp)
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

func (a *LlamaCPPAdapter) post(ctx context.Context, path string, body, out any) (int, error) {
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
