package search

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfsearch/shelfsearch/internal/backend"
)

func okOutcome(m Method, ids ...string) RetrievalOutcome {
	cands := make([]backend.Candidate, len(ids))
	for i, id := range ids {
		cands[i] = backend.Candidate{DocID: id, Score: 1.0 / float64(i+1)}
	}
	return RetrievalOutcome{Method: m, Status: OutcomeOK, Candidates: cands}
}

func failedOutcome(m Method) RetrievalOutcome {
	return RetrievalOutcome{Method: m, Status: OutcomeFailed, Err: errors.New("backend down")}
}

func TestFuseRanksSharedDocumentsFirst(t *testing.T) {
	f := NewRRFFusion()
	outcomes := []RetrievalOutcome{
		okOutcome(MethodLexical, "doc-a", "doc-b", "doc-c"),
		okOutcome(MethodDense, "doc-b", "doc-d"),
		okOutcome(MethodSparse, "doc-b", "doc-a"),
	}

	fused, used, err := f.Fuse(outcomes, DefaultMethodWeights())
	require.NoError(t, err)
	require.Len(t, fused, 4)

	// doc-b is rank 1 in two methods and rank 2 in the third.
	assert.Equal(t, "doc-b", fused[0].DocID)
	assert.Equal(t, "doc-a", fused[1].DocID)

	assert.InDelta(t, 1.0, used.Sum(), WeightTolerance)

	// Ranks record each contributing method's 1-based position.
	assert.Equal(t, map[Method]int{MethodLexical: 2, MethodDense: 1, MethodSparse: 1}, fused[0].Ranks)
	assert.NotContains(t, fused[2].Ranks, MethodSparse)
}

func TestFuseIsDeterministic(t *testing.T) {
	f := NewRRFFusion()
	outcomes := []RetrievalOutcome{
		okOutcome(MethodLexical, "m", "a", "x", "b"),
		okOutcome(MethodDense, "b", "m", "y"),
		okOutcome(MethodSparse, "x", "b", "a", "z"),
	}
	weights := MethodWeights{Lexical: 0.5, Dense: 0.3, Sparse: 0.2}

	first, _, err := f.Fuse(outcomes, weights)
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		again, _, err := f.Fuse(outcomes, weights)
		require.NoError(t, err)
		require.Len(t, again, len(first))
		for j := range first {
			assert.Equal(t, first[j].DocID, again[j].DocID)
			assert.Equal(t, first[j].Score, again[j].Score)
		}
	}
}

func TestFuseBreaksTiesByDocID(t *testing.T) {
	f := NewRRFFusion()
	// Two documents each appearing only at rank 1 of a method with equal
	// weight produce identical fused scores.
	outcomes := []RetrievalOutcome{
		okOutcome(MethodLexical, "zulu"),
		okOutcome(MethodDense, "alpha"),
	}
	weights := MethodWeights{Lexical: 0.5, Dense: 0.5}

	fused, _, err := f.Fuse(outcomes, weights)
	require.NoError(t, err)
	require.Len(t, fused, 2)
	assert.Equal(t, fused[0].Score, fused[1].Score)
	assert.Equal(t, "alpha", fused[0].DocID)
	assert.Equal(t, "zulu", fused[1].DocID)
}

func TestFuseRedistributesWeightOfDegradedMethod(t *testing.T) {
	f := NewRRFFusion()
	outcomes := []RetrievalOutcome{
		okOutcome(MethodLexical, "doc-a"),
		failedOutcome(MethodDense),
		okOutcome(MethodSparse, "doc-b"),
	}
	weights := MethodWeights{Lexical: 0.35, Dense: 0.35, Sparse: 0.30}

	fused, used, err := f.Fuse(outcomes, weights)
	require.NoError(t, err)
	require.Len(t, fused, 2)

	// Dense's 0.35 is shared proportionally by the survivors.
	assert.InDelta(t, 0.35/0.65, used.Lexical, 1e-9)
	assert.InDelta(t, 0.30/0.65, used.Sparse, 1e-9)
	assert.Zero(t, used.Dense)
	assert.InDelta(t, 1.0, used.Sum(), WeightTolerance)
}

func TestFuseEmptyMethodDropsOut(t *testing.T) {
	f := NewRRFFusion()
	outcomes := []RetrievalOutcome{
		okOutcome(MethodLexical, "doc-a"),
		okOutcome(MethodDense), // ok but zero candidates
		okOutcome(MethodSparse, "doc-a"),
	}

	_, used, err := f.Fuse(outcomes, DefaultMethodWeights())
	require.NoError(t, err)
	assert.Zero(t, used.Dense)
	assert.InDelta(t, 1.0, used.Sum(), WeightTolerance)
}

func TestFuseAllMethodsFailed(t *testing.T) {
	f := NewRRFFusion()
	outcomes := []RetrievalOutcome{
		failedOutcome(MethodLexical),
		failedOutcome(MethodDense),
		failedOutcome(MethodSparse),
	}

	fused, _, err := f.Fuse(outcomes, DefaultMethodWeights())
	require.ErrorIs(t, err, ErrNoResults)
	assert.Nil(t, fused)
}

func TestFuseUniformFallbackWhenActiveWeightsAreZero(t *testing.T) {
	f := NewRRFFusion()
	outcomes := []RetrievalOutcome{
		okOutcome(MethodLexical, "doc-a"),
		failedOutcome(MethodDense),
		okOutcome(MethodSparse, "doc-b"),
	}
	// All surviving weight was assigned to the method that failed.
	weights := MethodWeights{Lexical: 0, Dense: 1.0, Sparse: 0}

	fused, used, err := f.Fuse(outcomes, weights)
	require.NoError(t, err)
	require.Len(t, fused, 2)
	assert.InDelta(t, 0.5, used.Lexical, 1e-9)
	assert.InDelta(t, 0.5, used.Sparse, 1e-9)
}

func TestFuseScoreDecreasesWithRank(t *testing.T) {
	f := NewRRFFusion()
	outcomes := []RetrievalOutcome{
		okOutcome(MethodLexical, "r1", "r2", "r3", "r4", "r5"),
	}

	fused, _, err := f.Fuse(outcomes, DefaultMethodWeights())
	require.NoError(t, err)
	require.Len(t, fused, 5)
	for i := 1; i < len(fused); i++ {
		assert.Greater(t, fused[i-1].Score, fused[i].Score)
	}
	// rank 1 contribution with a single active method is 1/(k+1).
	assert.InDelta(t, 1.0/float64(DefaultRRFConstant+1), fused[0].Score, 1e-12)
}

func TestFuseCustomK(t *testing.T) {
	outcomes := []RetrievalOutcome{okOutcome(MethodLexical, "doc-a")}

	small, _, err := NewRRFFusionWithK(1).Fuse(outcomes, DefaultMethodWeights())
	require.NoError(t, err)
	large, _, err := NewRRFFusionWithK(600).Fuse(outcomes, DefaultMethodWeights())
	require.NoError(t, err)

	// Smaller k concentrates mass at the top ranks.
	assert.Greater(t, small[0].Score, large[0].Score)

	// Non-positive k falls back to the default.
	assert.Equal(t, DefaultRRFConstant, NewRRFFusionWithK(0).K)
}
