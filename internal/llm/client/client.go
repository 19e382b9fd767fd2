package llmclient

import (
	"context"
	"errors"
)

// ErrEmptyResponse is returned when a provider call succeeds at the HTTP
// level but carries no usable text.
var ErrEmptyResponse = errors.New("llmclient: empty response from model")

// LLMClient defines the interface for LLM providers.
type LLMClient interface {
	Name() string
	Close() error
	CountTokens(text string) int
	TokenCapacity() int
	// GenerateText sends a single prompt and returns the model's raw text
	// reply. All structure lives in the prompt and is recovered by the
	// caller's parser.
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// PermanentError indicates an error that will not resolve with retries,
// such as a prompt exceeding the model's context window.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

func NewPermanentError(err error) error {
	return &PermanentError{Err: err}
}
