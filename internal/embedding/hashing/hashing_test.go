package hashing

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cosine(a, b []float64) float64 {
	s := 0.0
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

func TestEmbed_DeterministicAndNormalized(t *testing.T) {
	e := NewEmbedder(64)
	ctx := context.Background()

	v1, err := e.Embed(ctx, "Quarterly revenue grew by ten percent")
	require.NoError(t, err)
	v2, err := NewEmbedder(64).Embed(ctx, "Quarterly revenue grew by ten percent")
	require.NoError(t, err)

	assert.Equal(t, v1, v2)
	assert.Len(t, v1, 64)
	assert.InDelta(t, 1.0, math.Sqrt(cosine(v1, v1)), 1e-9)
}

func TestEmbed_SimilarTextsScoreHigher(t *testing.T) {
	e := NewEmbedder(256)
	ctx := context.Background()

	q, _ := e.Embed(ctx, "revenue growth")
	near, _ := e.Embed(ctx, "The revenue growth was strong this year")
	far, _ := e.Embed(ctx, "Office plants need water twice a week")

	assert.Greater(t, cosine(q, near), cosine(q, far))
}

func TestEmbed_StopwordsOnlyGivesZeroVector(t *testing.T) {
	v, err := NewEmbedder(0).Embed(context.Background(), "the and of")
	require.NoError(t, err)
	assert.Len(t, v, DefaultDimension)
	for _, x := range v {
		assert.Zero(t, x)
	}
}

func TestEmbed_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewEmbedder(8).Embed(ctx, "text")
	assert.ErrorIs(t, err, context.Canceled)
}
