package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa/internal/domain"
	"docqa/internal/vectorstore"
)

type fakeQdrant struct {
	mu       sync.Mutex
	requests []string
	points   []map[string]any
}

func (f *fakeQdrant) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, r.Method+" "+r.URL.Path)
	switch {
	case r.Method == http.MethodPut && strings.HasSuffix(r.URL.Path, "/points"):
		var body struct {
			Points []map[string]any `json:"points"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.points = append(f.points, body.Points...)
	case strings.HasSuffix(r.URL.Path, "/points/search"):
		res := []map[string]any{}
		for _, p := range f.points {
			res = append(res, map[string]any{"score": 0.5, "vector": p["vector"], "payload": p["payload"]})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"result": res})
		return
	case strings.HasSuffix(r.URL.Path, "/points/count"):
		_ = json.NewEncoder(w).Encode(map[string]any{"result": map[string]any{"count": len(f.points)}})
		return
	}
	_, _ = w.Write([]byte(`{"result":true}`))
}

func TestBackend_CreateAddOpenSearch(t *testing.T) {
	fake := &fakeQdrant{}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	ctx := context.Background()
	dir := t.TempDir()
	b := NewBackend(Config{URL: srv.URL})

	st, err := b.Create(ctx, dir, vectorstore.Meta{Identifier: "annual report", Embedder: "hashing", Dimension: 2})
	require.NoError(t, err)
	unit := domain.TextUnit{Content: "hello", Position: domain.PageNumber(2)}
	require.NoError(t, st.Add(ctx, []domain.TextUnit{unit}, [][]float64{{1, 0}}))

	reopened, err := b.Open(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, "annual report", reopened.Meta().Identifier)

	hits, err := reopened.Search(ctx, []float64{1, 0}, 3)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, unit, hits[0].Unit)
	assert.Equal(t, []float64{1, 0}, hits[0].Vector)

	n, err := reopened.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, reopened.(vectorstore.Dropper).Drop(ctx))
	assert.Contains(t, fake.requests, "PUT /collections/docqa_annual_report")
	assert.Contains(t, fake.requests, "DELETE /collections/docqa_annual_report")
}

func TestBackend_CreateRejectsZeroDimension(t *testing.T) {
	_, err := NewBackend(Config{URL: "http://unused"}).Create(context.Background(), t.TempDir(), vectorstore.Meta{})
	assert.Error(t, err)
}

func TestBackend_CreateSurfacesServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewBackend(Config{URL: srv.URL}).Create(context.Background(), t.TempDir(), vectorstore.Meta{Dimension: 2})
	assert.Error(t, err)
}

func TestBackend_CreateDropsCollectionWhenManifestFails(t *testing.T) {
	fake := &fakeQdrant{}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	missing := filepath.Join(t.TempDir(), "no-such-dir")
	st, err := NewBackend(Config{URL: srv.URL}).Create(context.Background(), missing, vectorstore.Meta{Identifier: "report", Dimension: 2})
	require.Error(t, err)
	assert.Nil(t, st)

	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Equal(t, []string{
		"PUT /collections/docqa_report",
		"DELETE /collections/docqa_report",
	}, fake.requests)
}
