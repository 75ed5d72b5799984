package backend

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLexicalIndex(t *testing.T) *BleveLexicalIndex {
	t.Helper()
	idx, err := NewBleveLexicalIndex()
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func TestBleveLexicalIndex_SearchRanksMatches(t *testing.T) {
	ctx := context.Background()
	idx := newTestLexicalIndex(t)

	require.NoError(t, idx.Index(ctx, []*Document{
		{ID: "doc1", Content: "distributed systems design patterns for distributed consensus"},
		{ID: "doc2", Content: "gardening tips for spring vegetables"},
		{ID: "doc3", Content: "an overview of distributed databases"},
	}))

	results, err := idx.Search(ctx, "distributed", 10)
	require.NoError(t, err)
	require.Len(t, results, 2)

	ids := []string{results[0].DocID, results[1].DocID}
	assert.Contains(t, ids, "doc1")
	assert.Contains(t, ids, "doc3")
	assert.Greater(t, results[0].Score, 0.0)
	assert.GreaterOrEqual(t, results[0].Score, results[1].Score)
}

func TestBleveLexicalIndex_TopNLimit(t *testing.T) {
	ctx := context.Background()
	idx := newTestLexicalIndex(t)

	require.NoError(t, idx.Index(ctx, []*Document{
		{ID: "a", Content: "search engines"},
		{ID: "b", Content: "search algorithms"},
		{ID: "c", Content: "search quality"},
	}))

	results, err := idx.Search(ctx, "search", 2)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestBleveLexicalIndex_EmptyQuery(t *testing.T) {
	ctx := context.Background()
	idx := newTestLexicalIndex(t)

	results, err := idx.Search(ctx, "   ", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestBleveLexicalIndex_Closed(t *testing.T) {
	ctx := context.Background()
	idx, err := NewBleveLexicalIndex()
	require.NoError(t, err)
	require.NoError(t, idx.Close())

	_, err = idx.Search(ctx, "query", 10)
	assert.Error(t, err)
}
