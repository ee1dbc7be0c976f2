// Package vectorstore defines the similarity-search store contract, the
// backends that persist stores under an index directory, and the retriever
// used to query them.
package vectorstore

import (
	"context"
	"math"

	"docqa/internal/domain"
)

// Record is a stored text unit together with its embedding.
type Record struct {
	Unit   domain.TextUnit
	Vector []float64
}

// Hit is a search result with its cosine similarity to the query.
type Hit struct {
	Record
	Score float64
}

// Meta describes how an index was built.
type Meta struct {
	Identifier string `yaml:"identifier"`
	Embedder   string `yaml:"embedder"`
	Dimension  int    `yaml:"dimension"`
}

// Store is an opened similarity index.
type Store interface {
	Meta() Meta
	Add(ctx context.Context, units []domain.TextUnit, vectors [][]float64) error
	// Search returns up to k records ordered by descending similarity.
	Search(ctx context.Context, vector []float64, k int) ([]Hit, error)
	Count(ctx context.Context) (int, error)
	Close() error
}

// Dropper is implemented by stores holding state outside the index
// directory that must be discarded when a build fails.
type Dropper interface {
	Drop(ctx context.Context) error
}

// Backend creates and reopens stores rooted at an index directory.
type Backend interface {
	Name() string
	// Create initialises a new, empty store inside dir, which already exists.
	Create(ctx context.Context, dir string, meta Meta) (Store, error)
	// Open reopens a store previously created in dir without modifying it.
	Open(ctx context.Context, dir string) (Store, error)
}

// Cosine returns the cosine similarity of a and b, 0 when either is zero.
func Cosine(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
