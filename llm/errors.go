package llm

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoMessages is returned when Chat is called with an empty message list.
var ErrNoMessages = errors.New("no messages provided")

// ErrEmptyCompletion marks a 2xx response that carried no usable content.
var ErrEmptyCompletion = errors.New("empty completion")

// FailureKind classifies a single failed provider attempt.
type FailureKind string

const (
	// FailRateLimit is an HTTP 429 or provider quota rejection.
	FailRateLimit FailureKind = "rate_limit"
	// FailTimeout is a network or deadline timeout.
	FailTimeout FailureKind = "timeout"
	// FailHTTP is any other non-2xx provider response.
	FailHTTP FailureKind = "http_error"
	// FailBadResponse is a 2xx response whose body could not be used.
	FailBadResponse FailureKind = "bad_response"
)

// AttemptError records one failed call in the cascade.
type AttemptError struct {
	Provider string
	Model    string
	KeyIndex int // 1-based
	Kind     FailureKind
	Detail   string
}

func (e *AttemptError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s key %d: %s", e.Provider, e.KeyIndex, e.Kind)
	}
	return fmt.Sprintf("%s key %d: %s: %s", e.Provider, e.KeyIndex, e.Kind, e.Detail)
}

// ExhaustedError aggregates every per-attempt failure after the full cascade
// ran out of providers, models, and keys.
type ExhaustedError struct {
	Attempts []*AttemptError
}

func (e *ExhaustedError) Error() string {
	if len(e.Attempts) == 0 {
		return "all providers exhausted: no usable provider configured"
	}
	details := make([]string, len(e.Attempts))
	for i, a := range e.Attempts {
		details[i] = a.Error()
	}
	return fmt.Sprintf("all providers exhausted after %d attempts: %s",
		len(e.Attempts), strings.Join(details, "; "))
}

// Details returns the per-attempt failure reasons, one string each.
func (e *ExhaustedError) Details() []string {
	out := make([]string, len(e.Attempts))
	for i, a := range e.Attempts {
		out[i] = a.Error()
	}
	return out
}
