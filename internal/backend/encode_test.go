package backend

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticEmbedder_Deterministic(t *testing.T) {
	ctx := context.Background()
	e := NewStaticEmbedder()

	a, err := e.Embed(ctx, "reciprocal rank fusion")
	require.NoError(t, err)
	b, err := e.Embed(ctx, "reciprocal rank fusion")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, StaticDimensions)
}

func TestStaticEmbedder_UnitNorm(t *testing.T) {
	ctx := context.Background()
	e := NewStaticEmbedder()

	vec, err := e.Embed(ctx, "information retrieval metrics")
	require.NoError(t, err)

	var sum float64
	for _, x := range vec {
		sum += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-5)
}

func TestStaticEmbedder_EmptyInput(t *testing.T) {
	ctx := context.Background()
	e := NewStaticEmbedder()

	vec, err := e.Embed(ctx, "   ")
	require.NoError(t, err)
	assert.Len(t, vec, StaticDimensions)
	for _, x := range vec {
		assert.Zero(t, x)
	}
}

func TestStaticSparseEncoder_LogDampenedCounts(t *testing.T) {
	ctx := context.Background()
	e := NewStaticSparseEncoder()

	weights, err := e.Encode(ctx, "search search search quality")
	require.NoError(t, err)

	assert.InDelta(t, 1.0+math.Log(3), weights["search"], 1e-9)
	assert.InDelta(t, 1.0, weights["quality"], 1e-9)
}

func TestStaticSparseEncoder_DropsShortTokens(t *testing.T) {
	ctx := context.Background()
	e := NewStaticSparseEncoder()

	weights, err := e.Encode(ctx, "a b go")
	require.NoError(t, err)

	assert.NotContains(t, weights, "a")
	assert.Contains(t, weights, "go")
}
