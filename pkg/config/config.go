package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Defaults applied when the config file and environment are silent.
const (
	DefaultProvider         = "llamacpp"
	DefaultRateLimit        = 100
	DefaultRateWindowSecs   = 3600
	DefaultTransformersName = "meta-llama/Llama-2-7b-chat-hf"
)

// Config holds the process-wide configuration. It is read once at startup
// and treated as immutable thereafter.
type Config struct {
	Provider string

	AnthropicAPIKey string
	OpenAIAPIKey    string
	GoogleAPIKey    string

	LlamaCPP     LlamaCPPConfig
	Transformers TransformersConfig

	RateLimit RateLimitConfig
	Pricing   PricingConfig

	UsageDBPath    string
	TimeoutSeconds int

	ConfigDir string
}

// LlamaCPPConfig configures the local quantized model backend.
type LlamaCPPConfig struct {
	ModelPath string `yaml:"model_path"`
	BaseURL   string `yaml:"base_url"`
}

// TransformersConfig configures the local transformer pipeline backend.
type TransformersConfig struct {
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

// RateLimitConfig holds the default admission thresholds.
type RateLimitConfig struct {
	Requests      int `yaml:"requests"`
	WindowSeconds int `yaml:"window_seconds"`
}

// PricingConfig holds the token-cost rate. Cost is always
// total_tokens/1000 * rate; a per-provider override changes the rate,
// never the formula.
type PricingConfig struct {
	Per1KTokens float64            `yaml:"per_1k_tokens"`
	Overrides   map[string]float64 `yaml:"overrides"`
}

// RateFor returns the per-1K-token rate for a provider.
func (p PricingConfig) RateFor(provider string) float64 {
	if rate, ok := p.Overrides[provider]; ok {
		return rate
	}
	return p.Per1KTokens
}

// FileConfig represents the structure of ~/.promptgate/config.yaml
type FileConfig struct {
	Provider       string             `yaml:"provider"`
	APIKeys        APIKeysConfig      `yaml:"api_keys"`
	LlamaCPP       LlamaCPPConfig     `yaml:"llamacpp"`
	Transformers   TransformersConfig `yaml:"transformers"`
	RateLimit      RateLimitConfig    `yaml:"rate_limit"`
	Pricing        PricingConfig      `yaml:"pricing"`
	UsageDB        string             `yaml:"usage_db"`
	TimeoutSeconds int                `yaml:"timeout_seconds"`
}

// APIKeysConfig holds API key configuration from file.
type APIKeysConfig struct {
	Anthropic string `yaml:"anthropic"`
	OpenAI    string `yaml:"openai"`
	Google    string `yaml:"google"`
}

// Load reads configuration from the config file and environment variables.
// Environment variables take precedence over file configuration.
func Load() (*Config, error) {
	configDir, err := getConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}
	return LoadWithFile(filepath.Join(configDir, "config.yaml"), configDir)
}

// LoadWithFile loads config from a specific file path.
func LoadWithFile(path, configDir string) (*Config, error) {
	fileConfig := loadFileConfig(path)

	cfg := &Config{
		Provider:        getEnvOrDefault("LLM_PROVIDER", fileConfig.Provider),
		AnthropicAPIKey: getEnvOrDefault("ANTHROPIC_API_KEY", fileConfig.APIKeys.Anthropic),
		OpenAIAPIKey:    getEnvOrDefault("OPENAI_API_KEY", fileConfig.APIKeys.OpenAI),
		GoogleAPIKey:    getEnvOrDefault("GOOGLE_API_KEY", fileConfig.APIKeys.Google),
		LlamaCPP:        fileConfig.LlamaCPP,
		Transformers:    fileConfig.Transformers,
		RateLimit:       fileConfig.RateLimit,
		Pricing:         fileConfig.Pricing,
		UsageDBPath:     fileConfig.UsageDB,
		TimeoutSeconds:  fileConfig.TimeoutSeconds,
		ConfigDir:       configDir,
	}

	cfg.LlamaCPP.ModelPath = getEnvOrDefault("LLM_MODEL_PATH", cfg.LlamaCPP.ModelPath)
	if v := os.Getenv("RATE_LIMIT_REQUESTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RateLimit.Requests = n
		}
	}
	if v := os.Getenv("RATE_LIMIT_WINDOW"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RateLimit.WindowSeconds = n
		}
	}

	applyDefaults(cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Provider == "" {
		cfg.Provider = DefaultProvider
	}
	if cfg.RateLimit.Requests == 0 {
		cfg.RateLimit.Requests = DefaultRateLimit
	}
	if cfg.RateLimit.WindowSeconds == 0 {
		cfg.RateLimit.WindowSeconds = DefaultRateWindowSecs
	}
	if cfg.Transformers.Model == "" {
		cfg.Transformers.Model = DefaultTransformersName
	}
}

// loadFileConfig reads the config file, returning empty config if not found.
func loadFileConfig(path string) *FileConfig {
	cfg := &FileConfig{}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg // Return empty config if file doesn't exist
	}

	_ = yaml.Unmarshal(data, cfg) // Ignore parse errors, use defaults
	return cfg
}

// getEnvOrDefault returns the environment variable value if set,
// otherwise returns the default value.
func getEnvOrDefault(envVar, defaultValue string) string {
	if val := os.Getenv(envVar); val != "" {
		return val
	}
	return defaultValue
}

func getConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	configDir := filepath.Join(home, ".promptgate")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return "", err
	}
	return configDir, nil
}
