// Package app wires configuration, providers, and the extraction pipeline
// into the operations the CLI exposes: describe, extract, and batch.
package app

import (
	"context"
	"log/slog"

	"github.com/MDGrey33/visionai/internal/config"
	"github.com/MDGrey33/visionai/pkg/describe"
	"github.com/MDGrey33/visionai/pkg/describe/gemini"
	"github.com/MDGrey33/visionai/pkg/describe/ollama"
	"github.com/MDGrey33/visionai/pkg/describe/openai"
)

// App holds the assembled runtime: provider registry, router, and config.
type App struct {
	cfg    config.Config
	router *describe.Router
	logger *slog.Logger
}

// New assembles an App from configuration. Registration order is the
// fallback priority: the local llama provider first, then the hosted ones.
// Construction fails when the default model is unknown or the retry section
// is invalid; missing API keys surface later, on first use of that provider.
func New(cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	registry := describe.NewRegistry()
	registry.Register("llama", func(ctx context.Context) (describe.Describer, error) {
		return ollama.NewClient(ollama.Config{
			Host:  cfg.Providers.Ollama.Host,
			Model: cfg.Providers.Ollama.Model,
		})
	})
	registry.Register("gpt4", func(ctx context.Context) (describe.Describer, error) {
		return openai.NewClient(openai.Config{
			APIKey:  cfg.OpenAIKey(),
			Model:   cfg.Providers.OpenAI.Model,
			BaseURL: cfg.Providers.OpenAI.BaseURL,
		})
	})
	registry.Register("gemini", func(ctx context.Context) (describe.Describer, error) {
		return gemini.New(ctx, gemini.Config{
			APIKey:  cfg.GeminiKey(),
			Model:   cfg.Providers.Gemini.Model,
			BaseURL: cfg.Providers.Gemini.BaseURL,
		})
	})

	policy, err := cfg.RetryPolicy()
	if err != nil {
		return nil, err
	}
	router, err := describe.NewRouter(registry, cfg.DefaultModel, policy, logger)
	if err != nil {
		return nil, err
	}

	return &App{cfg: cfg, router: router, logger: logger}, nil
}

// Describe returns a description of the image at imagePath. An empty model
// selects the configured default with connection fallback; an empty prompt
// selects the configured prompt, then the built-in default.
func (a *App) Describe(ctx context.Context, imagePath, model, prompt string) (string, error) {
	if prompt == "" {
		prompt = a.cfg.Prompt
	}
	return a.router.Describe(ctx, imagePath, model, prompt)
}
