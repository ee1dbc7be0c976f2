package domain

import "context"

// Embedder converts free text into a numeric vector representation.
type Embedder interface {
	Name() string
	Dimension() int
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Retriever returns the text units most relevant to a query, best first.
type Retriever interface {
	Retrieve(ctx context.Context, query string) ([]TextUnit, error)
}

// SummaryOptions bounds a summarization call. Lengths count output words.
type SummaryOptions struct {
	MinLength     int
	MaxLength     int
	Deterministic bool
}

// SummaryModel reduces text to a short summary.
type SummaryModel interface {
	Name() string
	Summarize(ctx context.Context, text string, opts SummaryOptions) (string, error)
}
