// Package config loads the runtime configuration for the CLI: the default
// model, retry policy, batch settings, and per-provider connection details.
// Values come from an optional YAML file with environment variables layered
// on top, so a config file is never required to get started.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/MDGrey33/visionai/pkg/describe/ollama"
	"github.com/MDGrey33/visionai/pkg/retry"
)

// Duration wraps time.Duration so YAML values like "2s" parse directly.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// Retry configures the retry policy applied to every provider call.
type Retry struct {
	MaxAttempts int      `yaml:"max_attempts"`
	Strategy    string   `yaml:"strategy"`
	BaseDelay   Duration `yaml:"base_delay"`
	MaxDelay    Duration `yaml:"max_delay"`
}

// Batch configures the worker pool used for directory processing.
type Batch struct {
	Workers      int     `yaml:"workers"`
	RateLimitRPS float64 `yaml:"rate_limit_rps"`
}

// OpenAI holds the gpt4 provider settings. The API key is named by
// APIKeyEnv rather than stored, so config files stay secret-free.
type OpenAI struct {
	APIKeyEnv string `yaml:"api_key_env"`
	Model     string `yaml:"model"`
	BaseURL   string `yaml:"base_url"`
}

// Ollama holds the llama provider settings.
type Ollama struct {
	Host  string `yaml:"host"`
	Model string `yaml:"model"`
}

// Gemini holds the gemini provider settings.
type Gemini struct {
	APIKeyEnv string `yaml:"api_key_env"`
	Model     string `yaml:"model"`
	BaseURL   string `yaml:"base_url"`
}

// Providers groups the per-provider sections.
type Providers struct {
	OpenAI OpenAI `yaml:"gpt4"`
	Ollama Ollama `yaml:"llama"`
	Gemini Gemini `yaml:"gemini"`
}

// Config is the full runtime configuration.
type Config struct {
	DefaultModel string    `yaml:"default_model"`
	Prompt       string    `yaml:"prompt"`
	Retry        Retry     `yaml:"retry"`
	Batch        Batch     `yaml:"batch"`
	Providers    Providers `yaml:"providers"`
}

// Default returns the configuration used when no file and no overrides are
// present: local Ollama first, three retry attempts with exponential backoff.
func Default() Config {
	policy := retry.DefaultPolicy
	return Config{
		DefaultModel: "llama",
		Retry: Retry{
			MaxAttempts: policy.MaxAttempts,
			Strategy:    string(policy.Strategy),
			BaseDelay:   Duration{policy.BaseDelay},
			MaxDelay:    Duration{policy.MaxDelay},
		},
		Batch: Batch{Workers: 4},
		Providers: Providers{
			OpenAI: OpenAI{APIKeyEnv: "OPENAI_API_KEY"},
			Ollama: Ollama{Host: ollama.DefaultHost, Model: "llama3.2-vision"},
			Gemini: Gemini{APIKeyEnv: "GEMINI_API_KEY"},
		},
	}
}

// Load builds the configuration from defaults, then the YAML file at path
// (skipped when path is empty and VISIONAI_CONFIG is unset), then
// environment overrides. The result is validated before it is returned.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = strings.TrimSpace(os.Getenv("VISIONAI_CONFIG"))
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		dec := yaml.NewDecoder(strings.NewReader(string(b)))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv layers environment variables over the file values. Every knob a
// file can set has an env counterpart, so containerized runs need no file.
func applyEnv(cfg *Config) {
	setString := func(dst *string, name string) {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			*dst = v
		}
	}
	setString(&cfg.DefaultModel, "VISIONAI_MODEL")
	setString(&cfg.Prompt, "VISIONAI_PROMPT")
	setString(&cfg.Retry.Strategy, "VISIONAI_RETRY_STRATEGY")
	setString(&cfg.Providers.Ollama.Host, "OLLAMA_HOST")
	setString(&cfg.Providers.Ollama.Model, "OLLAMA_MODEL")
	setString(&cfg.Providers.OpenAI.Model, "OPENAI_MODEL")
	setString(&cfg.Providers.OpenAI.BaseURL, "OPENAI_BASE_URL")
	setString(&cfg.Providers.Gemini.Model, "GEMINI_MODEL")
	setString(&cfg.Providers.Gemini.BaseURL, "GEMINI_BASE_URL")

	if v := strings.TrimSpace(os.Getenv("VISIONAI_RETRY_MAX_ATTEMPTS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Retry.MaxAttempts = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("VISIONAI_BATCH_WORKERS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Batch.Workers = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("VISIONAI_BATCH_RATE_LIMIT")); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Batch.RateLimitRPS = f
		}
	}
}

// Validate rejects configurations that would fail later in confusing ways.
func (c Config) Validate() error {
	if c.DefaultModel == "" {
		return fmt.Errorf("default_model must not be empty")
	}
	if _, err := c.RetryPolicy(); err != nil {
		return err
	}
	if c.Batch.Workers < 1 {
		return fmt.Errorf("batch.workers must be at least 1, got %d", c.Batch.Workers)
	}
	if c.Batch.RateLimitRPS < 0 {
		return fmt.Errorf("batch.rate_limit_rps must not be negative, got %g", c.Batch.RateLimitRPS)
	}
	return nil
}

// RetryPolicy converts the retry section into a validated retry.Policy.
func (c Config) RetryPolicy() (retry.Policy, error) {
	return retry.NewPolicy(
		c.Retry.MaxAttempts,
		retry.Strategy(c.Retry.Strategy),
		c.Retry.BaseDelay.Duration,
		c.Retry.MaxDelay.Duration,
	)
}

// OpenAIKey resolves the OpenAI API key from the configured env var.
func (c Config) OpenAIKey() string {
	return strings.TrimSpace(os.Getenv(c.Providers.OpenAI.APIKeyEnv))
}

// GeminiKey resolves the Gemini API key from the configured env var.
func (c Config) GeminiKey() string {
	return strings.TrimSpace(os.Getenv(c.Providers.Gemini.APIKeyEnv))
}
