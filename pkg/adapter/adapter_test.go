package adapter

import (
	"context"
	"testing"
)

func TestRequestValidate(t *testing.T) {
	valid := Request{Prompt: "hi", MaxTokens: 10, Temperature: 0.7, TopP: 0.9}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid request rejected: %v", err)
	}

	cases := []struct {
		name string
		req  Request
	}{
		{"empty prompt", Request{Prompt: "", MaxTokens: 10}},
		{"zero max tokens", Request{Prompt: "hi", MaxTokens: 0}},
		{"max tokens too large", Request{Prompt: "hi", MaxTokens: MaxOutputTokens + 1}},
		{"negative temperature", Request{Prompt: "hi", MaxTokens: 10, Temperature: -0.1}},
		{"temperature too high", Request{Prompt: "hi", MaxTokens: 10, Temperature: 2.5}},
		{"top_p too high", Request{Prompt: "hi", MaxTokens: 10, TopP: 1.5}},
	}
	for _, tc := range cases {
		if err := tc.req.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
	}
}

func TestMockAdapterDeterministic(t *testing.T) {
	a := NewMockAdapterWithResponses(map[string]string{"Hi": "Hello"}, "")

	completion, err := a.Complete(context.Background(), Request{Prompt: "Hi", MaxTokens: 10})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if completion.Text != "Hello" {
		t.Fatalf("text = %q, want Hello", completion.Text)
	}
	if completion.InputTokens != 1 || completion.OutputTokens != 1 {
		t.Fatalf("token counts = %d/%d, want 1/1", completion.InputTokens, completion.OutputTokens)
	}
	if completion.Model != "mock-1" {
		t.Fatalf("model = %q, want mock-1", completion.Model)
	}
}

func TestIsTransient(t *testing.T) {
	if IsTransient(nil) {
		t.Fatalf("nil is not transient")
	}
	if !IsTransient(&BackendError{Status: 429}) {
		t.Fatalf("429 should be transient")
	}
	if !IsTransient(&BackendError{Status: 503}) {
		t.Fatalf("503 should be transient")
	}
	if IsTransient(&BackendError{Status: 400}) {
		t.Fatalf("400 should not be transient")
	}
	if !IsTransient(context.DeadlineExceeded) {
		t.Fatalf("deadline exceeded should be transient")
	}
	if IsTransient(context.Canceled) {
		t.Fatalf("cancellation should not be transient")
	}
}
