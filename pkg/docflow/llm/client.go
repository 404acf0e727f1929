// Package llm defines the model-facing collaborators of docflow nodes: text
// completion, speech synthesis, and image generation and editing.
//
// Nodes depend only on the interfaces here. OpenAI-backed adapters and
// in-memory mocks are provided.
package llm

import (
	"context"
	"fmt"
)

// Client produces text completions.
type Client interface {
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}

// Error wraps a provider failure with the operation that produced it.
type Error struct {
	Op        string
	Err       error
	Retryable bool
}

// NewError creates an Error.
func NewError(op string, err error, retryable bool) *Error {
	return &Error{Op: op, Err: err, Retryable: retryable}
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("llm %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Err
}
