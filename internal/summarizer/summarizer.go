// Package summarizer reduces a document's text to a short summary.
//
// Input longer than MaxInputChars is cut before it reaches the model, so
// long documents are summarized from their beginning only.
package summarizer

import (
	"context"
	"errors"
	"strings"

	"docqa/internal/domain"
	"docqa/internal/logger"
)

const (
	DefaultMaxInputChars = 1024
	DefaultMinLength     = 40
	DefaultMaxLength     = 150
)

// Config bounds a Summarizer. Zero fields take the defaults above.
type Config struct {
	MaxInputChars int
	MinLength     int
	MaxLength     int
}

// Summarizer truncates input and calls a SummaryModel with fixed,
// deterministic bounds.
type Summarizer struct {
	model    domain.SummaryModel
	maxInput int
	opts     domain.SummaryOptions
}

// New returns a Summarizer over model.
func New(model domain.SummaryModel, cfg Config) *Summarizer {
	if cfg.MaxInputChars <= 0 {
		cfg.MaxInputChars = DefaultMaxInputChars
	}
	if cfg.MinLength <= 0 {
		cfg.MinLength = DefaultMinLength
	}
	if cfg.MaxLength < cfg.MinLength {
		cfg.MaxLength = DefaultMaxLength
		if cfg.MaxLength < cfg.MinLength {
			cfg.MaxLength = cfg.MinLength
		}
	}
	return &Summarizer{
		model:    model,
		maxInput: cfg.MaxInputChars,
		opts: domain.SummaryOptions{
			MinLength:     cfg.MinLength,
			MaxLength:     cfg.MaxLength,
			Deterministic: true,
		},
	}
}

// Options returns the bounds passed to the model.
func (s *Summarizer) Options() domain.SummaryOptions { return s.opts }

// Summarize submits at most MaxInputChars characters of fullText.
func (s *Summarizer) Summarize(ctx context.Context, fullText string) (domain.Summary, error) {
	input := domain.Snippet(fullText, s.maxInput)
	logger.Info("Summarizing document", "model", s.model.Name(), "input_chars", len([]rune(input)),
		"truncated", len(input) < len(fullText))

	if strings.TrimSpace(input) == "" {
		err := domain.E(domain.KindSummarizationFailure, "summarize", errors.New("no text to summarize"))
		logger.Error("Error in summarizing", "error", err)
		return domain.Summary{}, err
	}
	text, err := s.model.Summarize(ctx, input, s.opts)
	if err == nil && strings.TrimSpace(text) == "" {
		err = errors.New("model returned an empty summary")
	}
	if err != nil {
		logger.Error("Error in summarizing", "model", s.model.Name(), "error", err)
		return domain.Summary{}, domain.E(domain.KindSummarizationFailure, "summarize", err)
	}
	return domain.Summary{Text: strings.TrimSpace(text)}, nil
}
