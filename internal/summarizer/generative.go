package summarizer

import (
	"context"
	"fmt"
	"strings"

	"docqa/internal/domain"
	"docqa/internal/generation"
)

// GenerativeModel asks a Generator for an abstractive summary.
type GenerativeModel struct {
	gen generation.Generator
}

// NewGenerativeModel wraps gen.
func NewGenerativeModel(gen generation.Generator) *GenerativeModel {
	return &GenerativeModel{gen: gen}
}

func (m *GenerativeModel) Name() string { return "generative:" + m.gen.Name() }

// Summarize collects the full completion and clamps it to opts.MaxLength
// words.
func (m *GenerativeModel) Summarize(ctx context.Context, text string, opts domain.SummaryOptions) (string, error) {
	prompt := fmt.Sprintf("Summarize the following text in %s. Reply with the summary only.\n\nText:\n%s",
		wordWindow(opts), text)
	genOpts := generation.Options{Deterministic: opts.Deterministic}
	if opts.MaxLength > 0 {
		// Roughly two tokens per English word leaves room for the window.
		genOpts.MaxTokens = opts.MaxLength * 2
	}
	stream, err := m.gen.Complete(ctx, prompt, genOpts)
	if err != nil {
		return "", err
	}
	out, err := stream.Collect()
	if err != nil {
		return "", err
	}
	return clampWords(strings.Fields(out), opts.MaxLength), nil
}

func wordWindow(opts domain.SummaryOptions) string {
	switch {
	case opts.MinLength > 0 && opts.MaxLength > 0:
		return fmt.Sprintf("between %d and %d words", opts.MinLength, opts.MaxLength)
	case opts.MaxLength > 0:
		return fmt.Sprintf("at most %d words", opts.MaxLength)
	case opts.MinLength > 0:
		return fmt.Sprintf("at least %d words", opts.MinLength)
	}
	return "a few sentences"
}
