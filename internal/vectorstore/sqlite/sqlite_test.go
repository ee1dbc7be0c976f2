package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa/internal/domain"
	"docqa/internal/vectorstore"
)

func TestBackend_CreateThenOpen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	meta := vectorstore.Meta{Identifier: "report", Embedder: "hashing", Dimension: 2}

	st, err := Backend{}.Create(ctx, dir, meta)
	require.NoError(t, err)
	units := []domain.TextUnit{
		{Content: "page one", Position: domain.PageNumber(1)},
		{Content: "section two", Position: domain.SectionIndex(2)},
	}
	require.NoError(t, st.Add(ctx, units, [][]float64{{1, 0}, {0, 1}}))
	require.NoError(t, st.Close())

	reopened, err := Backend{}.Open(ctx, dir)
	require.NoError(t, err)
	defer reopened.Close()

	assert.Equal(t, meta, reopened.Meta())
	n, err := reopened.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	hits, err := reopened.Search(ctx, []float64{0, 1}, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, units[1], hits[0].Unit)
	assert.Equal(t, []float64{0, 1}, hits[0].Vector)
}

func TestBackend_CreateRefusesExistingDatabase(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	st, err := Backend{}.Create(ctx, dir, vectorstore.Meta{Dimension: 1})
	require.NoError(t, err)
	require.NoError(t, st.Close())

	_, err = Backend{}.Create(ctx, dir, vectorstore.Meta{Dimension: 1})
	assert.Error(t, err)
}

func TestBackend_OpenMissing(t *testing.T) {
	_, err := Backend{}.Open(context.Background(), t.TempDir())
	assert.Error(t, err)
}

func TestVectorEncoding(t *testing.T) {
	v := []float64{0.25, -1.5, 3e-9}
	got, err := decodeVector(encodeVector(v))
	require.NoError(t, err)
	assert.Equal(t, v, got)

	_, err = decodeVector([]byte{1, 2, 3})
	assert.Error(t, err)
}
