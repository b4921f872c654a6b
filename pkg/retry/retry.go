// Package retry provides the transient-failure handling core: a pure error
// classifier and a policy-driven sequential retry loop.
package retry

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Strategy selects how the delay between attempts grows.
type Strategy string

const (
	StrategyExponential Strategy = "exponential"
	StrategyLinear      Strategy = "linear"
	StrategyConstant    Strategy = "constant"
)

// Policy controls how many attempts an operation gets and how long to wait
// between them. A Policy is immutable once constructed; validate with
// NewPolicy so invalid combinations fail at construction, not at use time.
type Policy struct {
	// MaxAttempts is the total number of attempts including the first try.
	MaxAttempts int
	Strategy    Strategy
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultPolicy mirrors the defaults used for describe calls.
var DefaultPolicy = Policy{
	MaxAttempts: 3,
	Strategy:    StrategyExponential,
	BaseDelay:   time.Second,
	MaxDelay:    30 * time.Second,
}

// NewPolicy constructs a validated Policy.
func NewPolicy(maxAttempts int, strategy Strategy, baseDelay, maxDelay time.Duration) (Policy, error) {
	p := Policy{
		MaxAttempts: maxAttempts,
		Strategy:    strategy,
		BaseDelay:   baseDelay,
		MaxDelay:    maxDelay,
	}
	if err := p.Validate(); err != nil {
		return Policy{}, err
	}
	return p, nil
}

// Validate checks the policy invariants.
func (p Policy) Validate() error {
	if p.MaxAttempts < 1 {
		return fmt.Errorf("max attempts must be >= 1 (got %d)", p.MaxAttempts)
	}
	if p.BaseDelay <= 0 {
		return fmt.Errorf("base delay must be > 0 (got %s)", p.BaseDelay)
	}
	if p.MaxDelay < p.BaseDelay {
		return fmt.Errorf("max delay %s must be >= base delay %s", p.MaxDelay, p.BaseDelay)
	}
	switch p.Strategy {
	case StrategyExponential, StrategyLinear, StrategyConstant:
	default:
		return fmt.Errorf("unknown retry strategy %q", p.Strategy)
	}
	return nil
}

// delayFor computes the sleep after the 0-based attempt index fails.
func (p Policy) delayFor(attempt int) time.Duration {
	var d time.Duration
	switch p.Strategy {
	case StrategyLinear:
		d = p.BaseDelay * time.Duration(attempt+1)
	case StrategyConstant:
		d = p.BaseDelay
	default:
		d = p.BaseDelay << attempt
	}
	if d > p.MaxDelay || d <= 0 {
		d = p.MaxDelay
	}
	return d
}

// Manager runs operations under a retry Policy. A Manager is strictly
// sequential per call: there is never more than one in-flight attempt for a
// logical operation.
type Manager struct {
	policy Policy
	logger *slog.Logger
}

// NewManager constructs a Manager, rejecting invalid policies.
func NewManager(policy Policy, logger *slog.Logger) (*Manager, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{policy: policy, logger: logger}, nil
}

// Policy returns the manager's policy.
func (m *Manager) Policy() Policy {
	return m.policy
}

// Execute runs op until it succeeds, fails with a non-retryable error, or the
// policy's attempts are exhausted.
//
// Non-retryable failures pass through unchanged on the first occurrence. On
// exhaustion the returned error is the last *Error produced by Classify, so
// callers can match on its Kind.
func Execute[T any](ctx context.Context, m *Manager, op func(context.Context) (T, error)) (T, error) {
	var zero T
	var last *Error

	for attempt := 0; attempt < m.policy.MaxAttempts; attempt++ {
		out, err := op(ctx)
		if err == nil {
			return out, nil
		}

		classified := Classify(err)
		if !classified.Kind.Retryable() {
			return zero, err
		}
		last = classified

		if attempt == m.policy.MaxAttempts-1 {
			break
		}

		delay := m.policy.delayFor(attempt)
		m.logger.Warn("attempt failed, retrying",
			"attempt", attempt+1,
			"max_attempts", m.policy.MaxAttempts,
			"kind", classified.Kind.String(),
			"error", classified.Message,
			"delay", delay,
		)

		t := time.NewTimer(delay)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return zero, ctx.Err()
		}
	}

	return zero, last
}
