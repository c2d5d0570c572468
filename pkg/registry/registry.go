// Package registry resolves the configured provider name to a concrete
// adapter instance, exactly once per process.
package registry

import (
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/zen-systems/promptgate/pkg/adapter"
	"github.com/zen-systems/promptgate/pkg/config"
)

// Provider identifies a known backend. The set is closed; unknown names
// fall back to DefaultProvider at resolution time.
type Provider string

const (
	ProviderLlamaCPP     Provider = "llamacpp"
	ProviderTransformers Provider = "transformers"
	ProviderOpenAI       Provider = "openai"
	ProviderAnthropic    Provider = "anthropic"
	ProviderGoogle       Provider = "google"
	ProviderMock         Provider = "mock"
)

// DefaultProvider is used when the configured name is not recognized.
const DefaultProvider = ProviderLlamaCPP

// ConfigurationError reports an adapter whose prerequisites are unmet.
// It is fatal at startup: the service must refuse to serve rather than
// run half-configured.
type ConfigurationError struct {
	Provider Provider
	Err      error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("provider %s is not usable: %v", e.Provider, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// ResolveProvider maps a configured name to a known provider. Matching is
// case-insensitive; unrecognized names fall back to DefaultProvider with a
// logged warning so minor misconfiguration keeps the service bootable.
func ResolveProvider(name string) Provider {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "llamacpp", "llama.cpp", "llama-cpp":
		return ProviderLlamaCPP
	case "transformers", "huggingface":
		return ProviderTransformers
	case "openai":
		return ProviderOpenAI
	case "anthropic":
		return ProviderAnthropic
	case "google", "gemini":
		return ProviderGoogle
	case "mock":
		return ProviderMock
	default:
		log.Printf("[registry] unknown provider %q, falling back to %q", name, DefaultProvider)
		return DefaultProvider
	}
}

// Registry caches the resolved adapter singleton.
type Registry struct {
	cfg      *config.Config
	provider Provider

	once    sync.Once
	adapter adapter.Adapter
	err     error
}

// New creates a registry for the configured provider.
func New(cfg *config.Config) *Registry {
	return &Registry{
		cfg:      cfg,
		provider: ResolveProvider(cfg.Provider),
	}
}

// Provider returns the resolved provider name.
func (r *Registry) Provider() Provider {
	return r.provider
}

// Resolve returns the adapter for the configured provider, constructing it
// on first use. Construction and prerequisite validation happen exactly
// once; an unmet prerequisite is a ConfigurationError, surfaced at startup
// rather than mid-traffic.
func (r *Registry) Resolve() (adapter.Adapter, error) {
	r.once.Do(func() {
		a, err := r.build()
		if err != nil {
			r.err = &ConfigurationError{Provider: r.provider, Err: err}
			return
		}
		if err := a.CheckPrerequisites(); err != nil {
			r.err = &ConfigurationError{Provider: r.provider, Err: err}
			return
		}
		r.adapter = a
	})
	return r.adapter, r.err
}

// Revalidate re-checks the cached adapter's prerequisites, for use after a
// backend was unloaded due to an error.
func (r *Registry) Revalidate() error {
	a, err := r.Resolve()
	if err != nil {
		return err
	}
	if err := a.CheckPrerequisites(); err != nil {
		return &ConfigurationError{Provider: r.provider, Err: err}
	}
	return nil
}

func (r *Registry) build() (adapter.Adapter, error) {
	switch r.provider {
	case ProviderLlamaCPP:
		return adapter.NewLlamaCPPAdapter(r.cfg.LlamaCPP.ModelPath, r.cfg.LlamaCPP.BaseURL), nil
	case ProviderTransformers:
		return adapter.NewTransformersAdapter(r.cfg.Transformers.BaseURL, r.cfg.Transformers.Model), nil
	case ProviderOpenAI:
		return adapter.NewOpenAIAdapter(r.cfg.OpenAIAPIKey), nil
	case ProviderAnthropic:
		return adapter.NewAnthropicAdapter(r.cfg.AnthropicAPIKey), nil
	case ProviderGoogle:
		return adapter.NewGoogleAdapter(r.cfg.GoogleAPIKey)
	case ProviderMock:
		return adapter.NewMockAdapter(), nil
	default:
		return nil, fmt.Errorf("no adapter for provider %s", r.provider)
	}
}
