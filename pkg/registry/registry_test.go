package registry

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/zen-systems/promptgate/pkg/config"
)

func writeModelFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tiny.gguf")
	if err := os.WriteFile(path, []byte("GGUF"), 0600); err != nil {
		t.Fatalf("write model file: %v", err)
	}
	return path
}

func TestResolveProviderCaseInsensitive(t *testing.T) {
	cases := map[string]Provider{
		"OpenAI":    ProviderOpenAI,
		"ANTHROPIC": ProviderAnthropic,
		"llama.cpp": ProviderLlamaCPP,
		"llama-cpp": ProviderLlamaCPP,
		"LlamaCPP":  ProviderLlamaCPP,
		"gemini":    ProviderGoogle,
		"mock":      ProviderMock,
	}
	for name, want := range cases {
		if got := ResolveProvider(name); got != want {
			t.Fatalf("ResolveProvider(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestUnknownProviderFallsBackToDefault(t *testing.T) {
	if got := ResolveProvider("banana"); got != DefaultProvider {
		t.Fatalf("ResolveProvider(banana) = %q, want default %q", got, DefaultProvider)
	}

	// The registry stays bootable under the fallback.
	cfg := &config.Config{Provider: "banana"}
	cfg.LlamaCPP.ModelPath = writeModelFile(t)
	r := New(cfg)
	if r.Provider() != DefaultProvider {
		t.Fatalf("registry provider = %q, want %q", r.Provider(), DefaultProvider)
	}
	if _, err := r.Resolve(); err != nil {
		t.Fatalf("resolve after fallback: %v", err)
	}
}

func TestMissingModelFileIsConfigurationError(t *testing.T) {
	cfg := &config.Config{Provider: "llamacpp"}
	cfg.LlamaCPP.ModelPath = "/nonexistent/model.gguf"

	_, err := New(cfg).Resolve()
	if err == nil {
		t.Fatalf("expected configuration error")
	}
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %T: %v", err, err)
	}
	if cfgErr.Provider != ProviderLlamaCPP {
		t.Fatalf("error provider = %q, want llamacpp", cfgErr.Provider)
	}
}

func TestMissingCredentialIsConfigurationError(t *testing.T) {
	cfg := &config.Config{Provider: "openai"}

	_, err := New(cfg).Resolve()
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
}

func TestResolveConstructsOnce(t *testing.T) {
	cfg := &config.Config{Provider: "mock"}
	r := New(cfg)

	var wg sync.WaitGroup
	results := make([]any, 20)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a, err := r.Resolve()
			if err != nil {
				results[i] = err
				return
			}
			results[i] = a
		}(i)
	}
	wg.Wait()

	for i := 1; i < len(results); i++ {
		if results[i] != results[0] {
			t.Fatalf("expected a single cached adapter instance")
		}
	}
}

func TestRevalidate(t *testing.T) {
	cfg := &config.Config{Provider: "llamacpp"}
	cfg.LlamaCPP.ModelPath = writeModelFile(t)

	r := New(cfg)
	if _, err := r.Resolve(); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if err := r.Revalidate(); err != nil {
		t.Fatalf("revalidate: %v", err)
	}

	// Removing the model file makes revalidation fail.
	if err := os.Remove(cfg.LlamaCPP.ModelPath); err != nil {
		t.Fatalf("remove model file: %v", err)
	}
	if err := r.Revalidate(); err == nil {
		t.Fatalf("expected revalidation failure after model removal")
	}
}
