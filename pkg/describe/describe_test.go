package describe_test

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/MDGrey33/visionai/pkg/describe"
	"github.com/MDGrey33/visionai/pkg/retry"
)

type fakeDescriber struct {
	mu    sync.Mutex
	calls int
	fn    func() (string, error)
}

func (f *fakeDescriber) DescribeImage(_ context.Context, _, _ string) (string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.fn()
}

func (f *fakeDescriber) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func staticFactory(d describe.Describer) describe.Factory {
	return func(context.Context) (describe.Describer, error) {
		return d, nil
	}
}

func quickPolicy(maxAttempts int) retry.Policy {
	return retry.Policy{
		MaxAttempts: maxAttempts,
		Strategy:    retry.StrategyConstant,
		BaseDelay:   time.Millisecond,
		MaxDelay:    time.Millisecond,
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testImage(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "test.png")
	if err := os.WriteFile(p, []byte("not a real png"), 0o644); err != nil {
		t.Fatalf("write test image: %v", err)
	}
	return p
}

func newRouter(t *testing.T, reg *describe.Registry, defaultModel string, attempts int) *describe.Router {
	t.Helper()
	r, err := describe.NewRouter(reg, defaultModel, quickPolicy(attempts), discardLogger())
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}
	return r
}

func TestDescribe_FallsBackOnConnectionFailure(t *testing.T) {
	t.Parallel()

	const attempts = 3
	gpt4 := &fakeDescriber{fn: func() (string, error) { return "", syscall.ECONNREFUSED }}
	llama := &fakeDescriber{fn: func() (string, error) { return "a red square", nil }}

	reg := describe.NewRegistry()
	reg.Register("gpt4", staticFactory(gpt4))
	reg.Register("llama", staticFactory(llama))

	router := newRouter(t, reg, "gpt4", attempts)
	out, err := router.Describe(context.Background(), testImage(t), "", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "a red square" {
		t.Fatalf("out = %q, want fallback provider output", out)
	}
	if got := gpt4.callCount(); got != attempts {
		t.Fatalf("default provider called %d times, want %d", got, attempts)
	}
	if got := llama.callCount(); got != 1 {
		t.Fatalf("fallback provider called %d times, want 1", got)
	}
}

func TestDescribe_ExplicitModelDisablesFallback(t *testing.T) {
	t.Parallel()

	gpt4 := &fakeDescriber{fn: func() (string, error) { return "", syscall.ECONNREFUSED }}

	llamaInstantiated := false
	reg := describe.NewRegistry()
	reg.Register("gpt4", staticFactory(gpt4))
	reg.Register("llama", func(context.Context) (describe.Describer, error) {
		llamaInstantiated = true
		return &fakeDescriber{fn: func() (string, error) { return "unused", nil }}, nil
	})

	router := newRouter(t, reg, "gpt4", 2)
	_, err := router.Describe(context.Background(), testImage(t), "gpt4", "")
	if err == nil {
		t.Fatal("expected error from explicit provider")
	}
	var ce *retry.Error
	if !errors.As(err, &ce) || ce.Kind != retry.Connection {
		t.Fatalf("want connection-kind error, got %v", err)
	}
	if llamaInstantiated {
		t.Fatal("explicit model request must never instantiate an alternative provider")
	}
}

func TestDescribe_NoFallbackOnRateLimitExhaustion(t *testing.T) {
	t.Parallel()

	gpt4 := &fakeDescriber{fn: func() (string, error) {
		return "", &retry.StatusError{Code: 429, Err: errors.New("too many requests")}
	}}
	llama := &fakeDescriber{fn: func() (string, error) { return "unused", nil }}

	reg := describe.NewRegistry()
	reg.Register("gpt4", staticFactory(gpt4))
	reg.Register("llama", staticFactory(llama))

	router := newRouter(t, reg, "gpt4", 2)
	_, err := router.Describe(context.Background(), testImage(t), "", "")
	var ce *retry.Error
	if !errors.As(err, &ce) || ce.Kind != retry.RateLimit {
		t.Fatalf("want rate_limit error to surface directly, got %v", err)
	}
	if llama.callCount() != 0 {
		t.Fatal("rate-limited (reachable) provider must not trigger fallback")
	}
}

func TestDescribe_AllProvidersUnreachable(t *testing.T) {
	t.Parallel()

	conn := func() (string, error) { return "", syscall.ECONNREFUSED }
	reg := describe.NewRegistry()
	reg.Register("gpt4", staticFactory(&fakeDescriber{fn: conn}))
	reg.Register("llama", staticFactory(&fakeDescriber{fn: conn}))

	router := newRouter(t, reg, "gpt4", 2)
	_, err := router.Describe(context.Background(), testImage(t), "", "")

	var ce *retry.Error
	if !errors.As(err, &ce) || ce.Kind != retry.Connection {
		t.Fatalf("want connection-kind error, got %v", err)
	}
	if !strings.Contains(ce.Message, "gpt4") {
		t.Fatalf("final error must name the default provider, got %q", ce.Message)
	}
}

func TestDescribe_UnknownModel(t *testing.T) {
	t.Parallel()

	reg := describe.NewRegistry()
	reg.Register("gpt4", staticFactory(&fakeDescriber{fn: func() (string, error) { return "ok", nil }}))

	router := newRouter(t, reg, "gpt4", 2)
	_, err := router.Describe(context.Background(), testImage(t), "nonexistent", "")
	if !errors.Is(err, describe.ErrUnknownModel) {
		t.Fatalf("want ErrUnknownModel, got %v", err)
	}
}

func TestDescribe_MissingImageFile(t *testing.T) {
	t.Parallel()

	d := &fakeDescriber{fn: func() (string, error) { return "ok", nil }}
	reg := describe.NewRegistry()
	reg.Register("gpt4", staticFactory(d))

	router := newRouter(t, reg, "gpt4", 3)
	_, err := router.Describe(context.Background(), filepath.Join(t.TempDir(), "missing.png"), "", "")
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("want file-not-found error, got %v", err)
	}
	if d.callCount() != 0 {
		t.Fatal("missing file must fail before any provider call")
	}
}

func TestRegistry_ReRegisterKeepsOrder(t *testing.T) {
	t.Parallel()

	reg := describe.NewRegistry()
	reg.Register("gpt4", staticFactory(&fakeDescriber{fn: func() (string, error) { return "one", nil }}))
	reg.Register("llama", staticFactory(&fakeDescriber{fn: func() (string, error) { return "two", nil }}))
	reg.Register("gpt4", staticFactory(&fakeDescriber{fn: func() (string, error) { return "replaced", nil }}))

	names := reg.Names()
	if len(names) != 2 || names[0] != "gpt4" || names[1] != "llama" {
		t.Fatalf("names = %v, want [gpt4 llama]", names)
	}

	f, ok := reg.Lookup("gpt4")
	if !ok {
		t.Fatal("gpt4 must remain registered")
	}
	d, err := f(context.Background())
	if err != nil {
		t.Fatalf("factory: %v", err)
	}
	out, err := d.DescribeImage(context.Background(), "x", "y")
	if err != nil || out != "replaced" {
		t.Fatalf("last registration must win, got %q (%v)", out, err)
	}
}

type fakeGenerator struct {
	fakeDescriber
	genFn func(prompt string) (string, error)
}

func (f *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	return f.genFn(prompt)
}

func TestGenerate_UsesDefaultModelAndRetries(t *testing.T) {
	t.Parallel()

	calls := 0
	gen := &fakeGenerator{genFn: func(prompt string) (string, error) {
		calls++
		if calls < 2 {
			return "", &retry.Error{Kind: retry.TemporaryServer, Message: "overloaded"}
		}
		return "merged: " + prompt, nil
	}}

	reg := describe.NewRegistry()
	reg.Register("llama", staticFactory(gen))
	router := newRouter(t, reg, "llama", 3)

	out, err := router.Generate(context.Background(), "", "combine the drafts")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out != "merged: combine the drafts" {
		t.Fatalf("output = %q", out)
	}
	if calls != 2 {
		t.Fatalf("generator called %d times, want 2", calls)
	}
}

func TestGenerate_RejectsDescribeOnlyProvider(t *testing.T) {
	t.Parallel()

	reg := describe.NewRegistry()
	reg.Register("llama", staticFactory(&fakeDescriber{fn: func() (string, error) { return "", nil }}))
	router := newRouter(t, reg, "llama", 1)

	if _, err := router.Generate(context.Background(), "llama", "hello"); err == nil {
		t.Fatal("expected error for a provider without text generation")
	}
}

func TestGenerate_UnknownModel(t *testing.T) {
	t.Parallel()

	reg := describe.NewRegistry()
	reg.Register("llama", staticFactory(&fakeDescriber{fn: func() (string, error) { return "", nil }}))
	router := newRouter(t, reg, "llama", 1)

	if _, err := router.Generate(context.Background(), "claude", "hello"); !errors.Is(err, describe.ErrUnknownModel) {
		t.Fatalf("error = %v, want ErrUnknownModel", err)
	}
}
