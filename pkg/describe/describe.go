// Package describe defines the Describer capability and routes describe-image
// calls across registered providers with retry and connection fallback.
package describe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/MDGrey33/visionai/pkg/retry"
)

// DefaultPrompt is used when a caller does not supply a custom prompt.
const DefaultPrompt = "Describe this image in detail. Preserve as much of the precise original text, format, images and style as possible."

// ErrUnknownModel is returned when a requested provider name is not registered.
var ErrUnknownModel = errors.New("unsupported model")

// Describer turns an image into a natural-language description via a model
// call. Implementations return an error on failure; there are no special-case
// return values.
type Describer interface {
	DescribeImage(ctx context.Context, imagePath, prompt string) (string, error)
}

// Generator produces text from a prompt. Providers that can run plain text
// completions implement it in addition to Describer; the hybrid merge step
// depends on this capability.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Factory produces a configured Describer instance. Construction may fail
// (missing API key, unreachable host config) without any network activity.
type Factory func(ctx context.Context) (Describer, error)

// Registry maps provider names to factories. First-ever registration order is
// the fallback priority; re-registering a name overwrites the factory but
// keeps its position. Populate at startup, then treat as read-only: the Router
// reads it concurrently without locking.
type Registry struct {
	order     []string
	factories map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds or overwrites a provider factory.
func (r *Registry) Register(name string, factory Factory) {
	if _, ok := r.factories[name]; !ok {
		r.order = append(r.order, name)
	}
	r.factories[name] = factory
}

// Lookup returns the factory for name.
func (r *Registry) Lookup(name string) (Factory, bool) {
	f, ok := r.factories[name]
	return f, ok
}

// Names returns provider names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Router is the describe-image entry point. Every provider call runs under
// the router's retry manager; when the default provider turns out to be
// unreachable the router walks the remaining registry order. An explicitly
// requested model is never substituted.
type Router struct {
	registry     *Registry
	defaultModel string
	manager      *retry.Manager
	logger       *slog.Logger
}

// NewRouter constructs a Router. The policy is validated here.
func NewRouter(registry *Registry, defaultModel string, policy retry.Policy, logger *slog.Logger) (*Router, error) {
	if registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if _, ok := registry.Lookup(defaultModel); !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownModel, defaultModel)
	}
	if logger == nil {
		logger = slog.Default()
	}
	m, err := retry.NewManager(policy, logger)
	if err != nil {
		return nil, err
	}
	return &Router{
		registry:     registry,
		defaultModel: defaultModel,
		manager:      m,
		logger:       logger,
	}, nil
}

// Describe returns a text description of the image at imagePath.
//
// When model is empty the configured default provider is used, and a
// Connection-class failure (only) falls back through the remaining providers
// in registration order. Rate-limit or server-error exhaustion means the
// provider is reachable but degraded, so it surfaces directly. When model is
// set, no fallback happens and any failure propagates as-is.
func (rt *Router) Describe(ctx context.Context, imagePath, model, prompt string) (string, error) {
	if prompt == "" {
		prompt = DefaultPrompt
	}

	name := model
	if name == "" {
		name = rt.defaultModel
	}
	if _, ok := rt.registry.Lookup(name); !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownModel, name)
	}

	// A missing file is not a transient condition; fail before any network call.
	if _, err := os.Stat(imagePath); err != nil {
		return "", fmt.Errorf("describe image: %w", err)
	}

	out, err := rt.callProvider(ctx, name, imagePath, prompt)
	if err == nil {
		return out, nil
	}
	if model != "" {
		// Explicit choices are never silently overridden.
		return "", err
	}

	classified := retry.Classify(err)
	if classified.Kind != retry.Connection {
		return "", err
	}

	rt.logger.Warn("default provider unreachable, trying alternatives",
		"provider", name, "error", classified.Message)

	for _, alt := range rt.registry.Names() {
		if alt == name {
			continue
		}
		out, altErr := rt.callProvider(ctx, alt, imagePath, prompt)
		if altErr == nil {
			rt.logger.Info("fallback provider succeeded", "provider", alt)
			return out, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		altClassified := retry.Classify(altErr)
		if altClassified.Kind != retry.Connection {
			return "", altErr
		}
		rt.logger.Warn("fallback provider unreachable", "provider", alt, "error", altClassified.Message)
	}

	return "", &retry.Error{
		Kind:    retry.Connection,
		Message: fmt.Sprintf("provider %q is unreachable and no working alternative was found", name),
		Err:     err,
	}
}

// Generate runs a text completion on the named provider (default when model
// is empty) under the router's retry policy. Unlike Describe there is no
// provider fallback: callers of Generate have their own degraded modes, and
// swapping models mid-merge would mix writing styles.
func (rt *Router) Generate(ctx context.Context, model, prompt string) (string, error) {
	name := model
	if name == "" {
		name = rt.defaultModel
	}
	factory, ok := rt.registry.Lookup(name)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownModel, name)
	}
	d, err := factory(ctx)
	if err != nil {
		return "", fmt.Errorf("provider %q: %w", name, err)
	}
	g, ok := d.(Generator)
	if !ok {
		return "", fmt.Errorf("provider %q does not support text generation", name)
	}
	return retry.Execute(ctx, rt.manager, func(ctx context.Context) (string, error) {
		return g.Generate(ctx, prompt)
	})
}

func (rt *Router) callProvider(ctx context.Context, name, imagePath, prompt string) (string, error) {
	factory, ok := rt.registry.Lookup(name)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownModel, name)
	}
	d, err := factory(ctx)
	if err != nil {
		return "", fmt.Errorf("provider %q: %w", name, err)
	}
	return retry.Execute(ctx, rt.manager, func(ctx context.Context) (string, error) {
		return d.DescribeImage(ctx, imagePath, prompt)
	})
}
