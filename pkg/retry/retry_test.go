package retry_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/MDGrey33/visionai/pkg/retry"
)

func testManager(t *testing.T, p retry.Policy) *retry.Manager {
	t.Helper()
	m, err := retry.NewManager(p, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m
}

func quickPolicy(maxAttempts int) retry.Policy {
	return retry.Policy{
		MaxAttempts: maxAttempts,
		Strategy:    retry.StrategyConstant,
		BaseDelay:   time.Millisecond,
		MaxDelay:    2 * time.Millisecond,
	}
}

func TestExecute_ExhaustsAttemptsOnConnectionError(t *testing.T) {
	t.Parallel()

	const attempts = 4
	m := testManager(t, quickPolicy(attempts))

	var mu sync.Mutex
	calls := 0
	_, err := retry.Execute(context.Background(), m, func(context.Context) (string, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		return "", syscall.ECONNREFUSED
	})
	if err == nil {
		t.Fatal("expected error after exhaustion")
	}

	var ce *retry.Error
	if !errors.As(err, &ce) {
		t.Fatalf("terminal error must be a classified *retry.Error, got %T: %v", err, err)
	}
	if ce.Kind != retry.Connection {
		t.Fatalf("kind = %s, want connection", ce.Kind)
	}

	mu.Lock()
	defer mu.Unlock()
	if calls != attempts {
		t.Fatalf("operation called %d times, want %d", calls, attempts)
	}
}

func TestExecute_NonRetryableCalledOnce(t *testing.T) {
	t.Parallel()

	m := testManager(t, quickPolicy(10))
	permanent := errors.New("bad request")

	calls := 0
	_, err := retry.Execute(context.Background(), m, func(context.Context) (int, error) {
		calls++
		return 0, permanent
	})
	if !errors.Is(err, permanent) {
		t.Fatalf("non-retryable error must pass through unchanged, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("operation called %d times, want 1", calls)
	}
}

func TestExecute_SuccessStopsImmediately(t *testing.T) {
	t.Parallel()

	m := testManager(t, quickPolicy(5))

	calls := 0
	out, err := retry.Execute(context.Background(), m, func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", &retry.Error{Kind: retry.TemporaryServer, Message: "overloaded"}
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "ok" {
		t.Fatalf("out = %q, want %q", out, "ok")
	}
	if calls != 3 {
		t.Fatalf("operation called %d times, want 3", calls)
	}
}

func TestExecute_SingleAttemptNoDelay(t *testing.T) {
	t.Parallel()

	p := retry.Policy{
		MaxAttempts: 1,
		Strategy:    retry.StrategyExponential,
		BaseDelay:   time.Hour,
		MaxDelay:    time.Hour,
	}
	m := testManager(t, p)

	start := time.Now()
	_, err := retry.Execute(context.Background(), m, func(context.Context) (string, error) {
		return "", &retry.Error{Kind: retry.RateLimit, Message: "rate limited"}
	})
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("single-attempt policy must not sleep, took %s", elapsed)
	}

	var ce *retry.Error
	if !errors.As(err, &ce) || ce.Kind != retry.RateLimit {
		t.Fatalf("want rate_limit error, got %v", err)
	}
}

func TestExecute_ContextCancelDuringBackoff(t *testing.T) {
	t.Parallel()

	p := retry.Policy{
		MaxAttempts: 3,
		Strategy:    retry.StrategyConstant,
		BaseDelay:   time.Minute,
		MaxDelay:    time.Minute,
	}
	m := testManager(t, p)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := retry.Execute(ctx, m, func(context.Context) (string, error) {
		return "", &retry.Error{Kind: retry.Connection, Message: "refused"}
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
}

func TestNewManager_RejectsInvalidPolicies(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		policy retry.Policy
	}{
		{"zero attempts", retry.Policy{MaxAttempts: 0, Strategy: retry.StrategyConstant, BaseDelay: time.Second, MaxDelay: time.Second}},
		{"zero base delay", retry.Policy{MaxAttempts: 3, Strategy: retry.StrategyConstant, BaseDelay: 0, MaxDelay: time.Second}},
		{"max below base", retry.Policy{MaxAttempts: 3, Strategy: retry.StrategyConstant, BaseDelay: 2 * time.Second, MaxDelay: time.Second}},
		{"unknown strategy", retry.Policy{MaxAttempts: 3, Strategy: "fibonacci", BaseDelay: time.Second, MaxDelay: time.Second}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if _, err := retry.NewManager(tc.policy, nil); err == nil {
				t.Fatalf("expected construction error for %s", tc.name)
			}
		})
	}
}

func TestNewPolicy_Valid(t *testing.T) {
	t.Parallel()

	p, err := retry.NewPolicy(3, retry.StrategyExponential, 100*time.Millisecond, time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.MaxAttempts != 3 || p.Strategy != retry.StrategyExponential {
		t.Fatalf("unexpected policy: %+v", p)
	}
}
