// Package generation defines the text generation capability used for
// answers and abstractive summaries, and the stream type its backends
// return.
package generation

import (
	"context"
)

// Options tunes one completion.
type Options struct {
	// Deterministic requests greedy decoding (temperature 0).
	Deterministic bool
	// MaxTokens caps the output length. Zero leaves the backend default.
	MaxTokens int
}

// Generator completes a rendered prompt into a stream of text fragments.
type Generator interface {
	Name() string
	Complete(ctx context.Context, prompt string, opts Options) (*Stream, error)
}

// Factory builds a Generator for an API key and model identifier.
type Factory func(apiKey, model string) (Generator, error)
