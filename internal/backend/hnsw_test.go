package backend

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHNSWDenseIndex_NearestNeighbor(t *testing.T) {
	ctx := context.Background()
	idx, err := NewHNSWDenseIndex(4)
	require.NoError(t, err)

	require.NoError(t, idx.Add(ctx,
		[]string{"doc1", "doc2", "doc3"},
		[][]float32{
			{1, 0, 0, 0},
			{0, 1, 0, 0},
			{0.9, 0.1, 0, 0},
		}))

	results, err := idx.Search(ctx, []float32{1, 0, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "doc1", results[0].DocID)
	assert.Equal(t, "doc3", results[1].DocID)
	assert.Greater(t, results[0].Score, results[1].Score)
	assert.InDelta(t, 1.0, results[0].Score, 1e-5)
}

func TestHNSWDenseIndex_DimensionMismatch(t *testing.T) {
	ctx := context.Background()
	idx, err := NewHNSWDenseIndex(4)
	require.NoError(t, err)

	err = idx.Add(ctx, []string{"doc1"}, [][]float32{{1, 0}})
	assert.Error(t, err)

	_, err = idx.Search(ctx, []float32{1, 0}, 1)
	assert.Error(t, err)
}

func TestHNSWDenseIndex_ReplaceOrphansOldVector(t *testing.T) {
	ctx := context.Background()
	idx, err := NewHNSWDenseIndex(4)
	require.NoError(t, err)

	require.NoError(t, idx.Add(ctx, []string{"doc1"}, [][]float32{{1, 0, 0, 0}}))
	require.NoError(t, idx.Add(ctx, []string{"doc1"}, [][]float32{{0, 1, 0, 0}}))

	assert.Equal(t, 1, idx.Count())

	results, err := idx.Search(ctx, []float32{0, 1, 0, 0}, 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "doc1", results[0].DocID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-5)
}

func TestHNSWDenseIndex_EmptyIndex(t *testing.T) {
	ctx := context.Background()
	idx, err := NewHNSWDenseIndex(4)
	require.NoError(t, err)

	results, err := idx.Search(ctx, []float32{1, 0, 0, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestHNSWDenseIndex_InvalidDimensions(t *testing.T) {
	_, err := NewHNSWDenseIndex(0)
	assert.Error(t, err)
}
