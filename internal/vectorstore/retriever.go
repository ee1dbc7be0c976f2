package vectorstore

import (
	"context"
	"fmt"
	"math"

	"docqa/internal/domain"
)

// SearchType selects the ranking strategy of a Retriever.
type SearchType string

const (
	SearchSimilarity SearchType = "similarity"
	SearchMMR        SearchType = "mmr"
)

// RetrieverOptions configures a Retriever.
type RetrieverOptions struct {
	SearchType SearchType
	K          int
	// FetchK is the number of nearest candidates MMR re-ranks.
	FetchK int
	// Lambda weighs relevance against diversity in MMR: 1 is pure
	// relevance, values near 0 favour diversity. Zero means unset.
	Lambda float64
}

// DefaultRetrieverOptions is MMR with k=3 over 20 candidates, lambda 0.5.
func DefaultRetrieverOptions() RetrieverOptions {
	return RetrieverOptions{SearchType: SearchMMR, K: 3, FetchK: 20, Lambda: 0.5}
}

// Retriever answers queries against a Store.
type Retriever struct {
	store    Store
	embedder domain.Embedder
	opts     RetrieverOptions
}

// NewRetriever returns a retriever over store. Zero option fields take
// their defaults.
func NewRetriever(store Store, embedder domain.Embedder, opts RetrieverOptions) *Retriever {
	def := DefaultRetrieverOptions()
	if opts.SearchType == "" {
		opts.SearchType = def.SearchType
	}
	if opts.K <= 0 {
		opts.K = def.K
	}
	if opts.FetchK < opts.K {
		opts.FetchK = def.FetchK
		if opts.FetchK < opts.K {
			opts.FetchK = opts.K
		}
	}
	if opts.Lambda <= 0 || opts.Lambda > 1 {
		opts.Lambda = def.Lambda
	}
	return &Retriever{store: store, embedder: embedder, opts: opts}
}

// Options returns the effective options.
func (r *Retriever) Options() RetrieverOptions { return r.opts }

// Retrieve returns the text units of Search.
func (r *Retriever) Retrieve(ctx context.Context, query string) ([]domain.TextUnit, error) {
	hits, err := r.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	units := make([]domain.TextUnit, len(hits))
	for i, h := range hits {
		units[i] = h.Unit
	}
	return units, nil
}

// Search embeds query verbatim and returns at most K hits.
func (r *Retriever) Search(ctx context.Context, query string) ([]Hit, error) {
	qv, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	switch r.opts.SearchType {
	case SearchSimilarity:
		return r.store.Search(ctx, qv, r.opts.K)
	case SearchMMR:
		candidates, err := r.store.Search(ctx, qv, r.opts.FetchK)
		if err != nil {
			return nil, err
		}
		return MaxMarginalRelevance(qv, candidates, r.opts.K, r.opts.Lambda), nil
	}
	return nil, fmt.Errorf("unknown search type %q", r.opts.SearchType)
}

// MaxMarginalRelevance picks k candidates, each maximising
// lambda*sim(query, c) - (1-lambda)*max sim(c, selected).
func MaxMarginalRelevance(query []float64, candidates []Hit, k int, lambda float64) []Hit {
	if k > len(candidates) {
		k = len(candidates)
	}
	if k <= 0 {
		return nil
	}
	relevance := make([]float64, len(candidates))
	for i, c := range candidates {
		relevance[i] = Cosine(query, c.Vector)
	}
	used := make([]bool, len(candidates))
	selected := make([]Hit, 0, k)
	for len(selected) < k {
		best, bestScore := -1, math.Inf(-1)
		for i, c := range candidates {
			if used[i] {
				continue
			}
			redundancy := 0.0
			for j, s := range selected {
				if sim := Cosine(c.Vector, s.Vector); j == 0 || sim > redundancy {
					redundancy = sim
				}
			}
			score := lambda*relevance[i] - (1-lambda)*redundancy
			if score > bestScore {
				best, bestScore = i, score
			}
		}
		used[best] = true
		hit := candidates[best]
		hit.Score = relevance[best]
		selected = append(selected, hit)
	}
	return selected
}
