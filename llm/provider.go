// Package llm defines the generation provider contract consumed by the
// processing stages, together with prompt assembly and client-side
// resilience wrappers. Concrete provider backends are external; stages see
// a synchronous Generate call that either returns text or a typed error.
package llm

import (
	"context"
	"errors"
	"fmt"
)

// ErrorCode classifies provider failures for retry and reporting decisions.
type ErrorCode string

const (
	ErrTimeout     ErrorCode = "LLM_TIMEOUT"      // call exceeded its deadline
	ErrRejected    ErrorCode = "LLM_REJECTED"     // provider returned an explicit error
	ErrRateLimited ErrorCode = "LLM_RATE_LIMITED" // upstream or local throttle
	ErrEmptyOutput ErrorCode = "LLM_EMPTY_OUTPUT" // provider returned no text
)

// Error is a structured provider failure.
type Error struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Provider  string    `json:"provider,omitempty"`
	Retryable bool      `json:"retryable"`
	Cause     error     `json:"-"`
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// AsError extracts a provider *Error from err, mapping context deadline
// expiry to ErrTimeout when the provider surfaced a bare context error.
func AsError(err error) *Error {
	var perr *Error
	if errors.As(err, &perr) {
		return perr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Code: ErrTimeout, Message: "provider call exceeded deadline", Retryable: true, Cause: err}
	}
	return &Error{Code: ErrRejected, Message: "provider call failed", Cause: err}
}

// GenerateRequest carries one prompt to a provider.
type GenerateRequest struct {
	Prompt      string  `json:"prompt"`
	System      string  `json:"system,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	Temperature float32 `json:"temperature,omitempty"`
}

// Provider is a text-generation backend. Implementations must be safe for
// concurrent use across runs and must respect ctx cancellation and
// deadlines.
type Provider interface {
	Name() string
	Generate(ctx context.Context, req *GenerateRequest) (string, error)
}
