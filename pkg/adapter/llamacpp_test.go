package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeGGUF(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tiny.gguf")
	if err := os.WriteFile(path, []byte("GGUF"), 0600); err != nil {
		t.Fatalf("write model file: %v", err)
	}
	return path
}

func newLlamaServer(t *testing.T, completion string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/tokenize", func(w http.ResponseWriter, r *http.Request) {
		var req llamaTokenizeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		// One token per word keeps counts predictable.
		tokens := make([]int, len(strings.Fields(req.Content)))
		_ = json.NewEncoder(w).Encode(llamaTokenizeResponse{Tokens: tokens})
	})
	mux.HandleFunc("/completion", func(w http.ResponseWriter, r *http.Request) {
		var req llamaCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if req.NPredict == 0 {
			http.Error(w, "missing n_predict", http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(llamaCompletionResponse{Content: completion})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestLlamaCPPPrerequisiteIsModelFile(t *testing.T) {
	a := NewLlamaCPPAdapter("/nonexistent/model.gguf", "")
	err := a.CheckPrerequisites()
	var prereqErr *PrerequisiteError
	if !errors.As(err, &prereqErr) {
		t.Fatalf("expected PrerequisiteError, got %v", err)
	}

	a = NewLlamaCPPAdapter(writeGGUF(t), "")
	if err := a.CheckPrerequisites(); err != nil {
		t.Fatalf("expected prerequisites met, got %v", err)
	}
}

func TestLlamaCPPCompleteCountsWithServerTokenizer(t *testing.T) {
	srv := newLlamaServer(t, "three word answer")
	modelPath := writeGGUF(t)
	a := NewLlamaCPPAdapter(modelPath, srv.URL)

	completion, err := a.Complete(context.Background(), Request{
		Prompt:    "tell me something",
		MaxTokens: 16,
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if completion.Text != "three word answer" {
		t.Fatalf("text = %q", completion.Text)
	}
	if completion.InputTokens != 3 {
		t.Fatalf("input tokens = %d, want 3 from server tokenizer", completion.InputTokens)
	}
	if completion.OutputTokens != 3 {
		t.Fatalf("output tokens = %d, want 3 from server tokenizer", completion.OutputTokens)
	}
	if completion.Model != filepath.Base(modelPath) {
		t.Fatalf("model = %q, want %q", completion.Model, filepath.Base(modelPath))
	}
}

func TestLlamaCPPServerErrorIsBackendError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/tokenize", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(llamaTokenizeResponse{Tokens: []int{1}})
	})
	mux.HandleFunc("/completion", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(llamaCompletionResponse{})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	a := NewLlamaCPPAdapter(writeGGUF(t), srv.URL)
	_, err := a.Complete(context.Background(), Request{Prompt: "hi", MaxTokens: 4})
	var backendErr *BackendError
	if !errors.As(err, &backendErr) {
		t.Fatalf("expected BackendError, got %v", err)
	}
	if !IsTransient(err) {
		t.Fatalf("5xx should be transient")
	}
}

func TestLlamaCPPUnreachableServerIsTemporary(t *testing.T) {
	a := NewLlamaCPPAdapter(writeGGUF(t), "http://127.0.0.1:1")
	_, err := a.Complete(context.Background(), Request{Prompt: "hi", MaxTokens: 4})
	var backendErr *BackendError
	if !errors.As(err, &backendErr) {
		t.Fatalf("expected BackendError, got %v", err)
	}
	if !backendErr.Temporary {
		t.Fatalf("connection failure should be marked temporary")
	}
}
