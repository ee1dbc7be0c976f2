package memory

import (
	"context"
	"errors"
	"sync"

	"docqa/internal/domain"
	"docqa/internal/vectorstore"
)

var _ vectorstore.Store = (*Storage)(nil)

// Storage is a simple in-memory vector store using brute-force cosine similarity.
type Storage struct {
	mu      sync.RWMutex
	meta    vectorstore.Meta
	records []vectorstore.Record
}

// NewStorage returns an empty store for vectors of meta.Dimension.
func NewStorage(meta vectorstore.Meta) *Storage { return &Storage{meta: meta} }

func (s *Storage) Meta() vectorstore.Meta { return s.meta }

func (s *Storage) Add(_ context.Context, units []domain.TextUnit, vectors [][]float64) error {
	if len(units) != len(vectors) {
		return errors.New("units and vectors length mismatch")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range vectors {
		if s.meta.Dimension > 0 && len(v) != s.meta.Dimension {
			return errors.New("vector dimension mismatch")
		}
	}
	for i := range units {
		s.records = append(s.records, vectorstore.Record{Unit: units[i], Vector: vectors[i]})
	}
	return nil
}

func (s *Storage) Search(ctx context.Context, vector []float64, topK int) ([]vectorstore.Hit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if topK <= 0 {
		topK = 5
	}
	scores := make([]float64, len(s.records))
	for i := range s.records {
		scores[i] = vectorstore.Cosine(s.records[i].Vector, vector)
	}
	// Get topK indexes
	idxs := argsortDesc(scores)
	if topK > len(idxs) {
		topK = len(idxs)
	}
	results := make([]vectorstore.Hit, 0, topK)
	for i := 0; i < topK; i++ {
		j := idxs[i]
		results = append(results, vectorstore.Hit{Record: s.records[j], Score: scores[j]})
	}
	return results, nil
}

func (s *Storage) Count(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records), nil
}

func (s *Storage) Close() error { return nil }

// argsortDesc orders indexes by descending score; ties keep insertion
// order so results are deterministic.
func argsortDesc(vals []float64) []int {
	idxs := make([]int, len(vals))
	for i := range vals {
		idxs[i] = i
	}
	insertionSort(idxs, vals)
	return idxs
}

func insertionSort(idxs []int, vals []float64) {
	for i := 1; i < len(idxs); i++ {
		for j := i; j > 0 && vals[idxs[j]] > vals[idxs[j-1]]; j-- {
			idxs[j], idxs[j-1] = idxs[j-1], idxs[j]
		}
	}
}
