package retry

import (
	"context"
	"errors"
	"net"
	"strings"
	"syscall"
)

// Kind buckets a failure by how the retry layer should treat it.
type Kind int

const (
	// NonRetryable failures are terminal: bad input, bad auth, malformed requests.
	NonRetryable Kind = iota
	// RateLimit covers HTTP 429 and provider quota/rate-limit responses.
	RateLimit
	// TemporaryServer covers 5xx-class provider failures.
	TemporaryServer
	// Connection covers network-level failures: refused, DNS, timeouts.
	Connection
)

// Retryable reports whether the retry loop may attempt the operation again.
func (k Kind) Retryable() bool {
	return k != NonRetryable
}

func (k Kind) String() string {
	switch k {
	case RateLimit:
		return "rate_limit"
	case TemporaryServer:
		return "temporary_server"
	case Connection:
		return "connection"
	default:
		return "non_retryable"
	}
}

// Error is a failure tagged with its classified Kind. The retry loop raises
// an *Error (not the raw provider error) after exhausting its attempts, so
// callers can tell "still transient, gave up" from "definitely broken".
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return "retry error"
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// StatusError tags an error with the HTTP status code it originated from.
// Provider glue wraps SDK errors in a StatusError when the SDK exposes a
// structured status, so Classify does not need to know about every SDK's
// error hierarchy.
type StatusError struct {
	Code int
	Err  error
}

func (e *StatusError) Error() string {
	if e == nil || e.Err == nil {
		return "http status error"
	}
	return e.Err.Error()
}

func (e *StatusError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// HTTPStatusCode returns the originating HTTP status code.
func (e *StatusError) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.Code
}

// statusCoder matches any error that can report an HTTP status code,
// including ollama.HTTPError and retry.StatusError.
type statusCoder interface {
	HTTPStatusCode() int
}

// transientSubstrings are message fragments some provider SDKs emit without a
// structured status code. Matching on text is a fallback, not the main path.
var transientSubstrings = []struct {
	fragment string
	kind     Kind
}{
	{"rate limit", RateLimit},
	{"too many requests", RateLimit},
	{"quota", RateLimit},
	{"429", RateLimit},
	{"server error", TemporaryServer},
	{"overloaded", TemporaryServer},
	{"internal error", TemporaryServer},
	{"500", TemporaryServer},
	{"502", TemporaryServer},
	{"503", TemporaryServer},
	{"529", TemporaryServer},
}

// Classify maps an arbitrary failure to its classified form. It is pure:
// classifying the same error twice yields the same Kind. A nil input returns
// nil.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}

	var ce *Error
	if errors.As(err, &ce) {
		return ce
	}

	var sc statusCoder
	if errors.As(err, &sc) {
		return classifyStatus(sc.HTTPStatusCode(), err)
	}

	if isConnectionError(err) {
		return &Error{Kind: Connection, Message: err.Error(), Err: err}
	}

	msg := strings.ToLower(err.Error())
	for _, t := range transientSubstrings {
		if strings.Contains(msg, t.fragment) {
			return &Error{Kind: t.kind, Message: err.Error(), Err: err}
		}
	}

	return &Error{Kind: NonRetryable, Message: err.Error(), Err: err}
}

func classifyStatus(code int, err error) *Error {
	switch {
	case code == 429:
		return &Error{Kind: RateLimit, Message: err.Error(), Err: err}
	case code >= 500 && code < 600:
		return &Error{Kind: TemporaryServer, Message: err.Error(), Err: err}
	default:
		return &Error{Kind: NonRetryable, Message: err.Error(), Err: err}
	}
}

func isConnectionError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	var dns *net.DNSError
	if errors.As(err, &dns) {
		return true
	}
	var op *net.OpError
	if errors.As(err, &op) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
