package search

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedScorer returns fixed scores per document text.
type scriptedScorer struct {
	scores map[string]float64
	delay  time.Duration
	calls  int
}

func (s *scriptedScorer) Score(_ context.Context, _ string, text string) (float64, error) {
	s.calls++
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	score, ok := s.scores[text]
	if !ok {
		return 0, errors.New("unknown document")
	}
	return score, nil
}

func fusedList(ids ...string) []*FusedCandidate {
	out := make([]*FusedCandidate, len(ids))
	for i, id := range ids {
		out[i] = &FusedCandidate{DocID: id, Score: 1.0 / float64(i+1), Ranks: map[Method]int{MethodLexical: i + 1}}
	}
	return out
}

func textsFor(fused []*FusedCandidate) map[string]string {
	texts := make(map[string]string, len(fused))
	for _, fc := range fused {
		texts[fc.DocID] = "text:" + fc.DocID
	}
	return texts
}

func TestRerankReordersByCrossScore(t *testing.T) {
	fused := fusedList("a", "b", "c")
	scorer := &scriptedScorer{scores: map[string]float64{
		"text:a": 0.1,
		"text:b": 0.9,
		"text:c": 0.5,
	}}

	r := NewReranker()
	out, status := r.Rerank(context.Background(), "q", fused, textsFor(fused), scorer)

	require.Equal(t, RerankFull, status)
	require.Len(t, out, 3)
	assert.Equal(t, "b", out[0].DocID)
	assert.Equal(t, "c", out[1].DocID)
	assert.Equal(t, "a", out[2].DocID)
	for _, fc := range out {
		assert.True(t, fc.Reranked)
	}
}

func TestRerankNilScorerOrTinyPool(t *testing.T) {
	fused := fusedList("a", "b")

	out, status := NewReranker().Rerank(context.Background(), "q", fused, nil, nil)
	assert.Equal(t, RerankNone, status)
	assert.Equal(t, fused, out)

	single := fusedList("only")
	scorer := &scriptedScorer{scores: map[string]float64{"text:only": 1.0}}
	out, status = NewReranker().Rerank(context.Background(), "q", single, textsFor(single), scorer)
	assert.Equal(t, RerankNone, status)
	assert.Equal(t, single, out)
	assert.Zero(t, scorer.calls)
}

func TestRerankWindowLeavesTailUntouched(t *testing.T) {
	fused := fusedList("a", "b", "c", "d", "e")
	scorer := &scriptedScorer{scores: map[string]float64{
		"text:a": 0.2,
		"text:b": 0.8,
	}}

	r := &Reranker{Window: 2, Budget: time.Second}
	out, status := r.Rerank(context.Background(), "q", fused, textsFor(fused), scorer)

	require.Equal(t, RerankFull, status)
	require.Len(t, out, 5)
	assert.Equal(t, "b", out[0].DocID)
	assert.Equal(t, "a", out[1].DocID)
	// Beyond the window the fused order stands.
	assert.Equal(t, "c", out[2].DocID)
	assert.Equal(t, "d", out[3].DocID)
	assert.Equal(t, "e", out[4].DocID)
	assert.False(t, out[2].Reranked)
	assert.Equal(t, 2, scorer.calls)
}

func TestRerankBudgetExhaustionIsPartial(t *testing.T) {
	fused := fusedList("a", "b", "c", "d")
	scorer := &scriptedScorer{
		scores: map[string]float64{
			"text:a": 0.5, "text:b": 0.5, "text:c": 0.5, "text:d": 0.5,
		},
		delay: 20 * time.Millisecond,
	}

	r := &Reranker{Window: 4, Budget: 10 * time.Millisecond}
	out, status := r.Rerank(context.Background(), "q", fused, textsFor(fused), scorer)

	require.Equal(t, RerankPartial, status)
	require.Len(t, out, 4)
	// The first candidate got scored before the deadline; the unscored tail
	// keeps the fused order behind it.
	assert.Equal(t, "a", out[0].DocID)
	assert.True(t, out[0].Reranked)
	assert.Equal(t, []string{"b", "c", "d"}, []string{out[1].DocID, out[2].DocID, out[3].DocID})
	assert.Less(t, scorer.calls, 4)
}

func TestRerankScorerErrorsFallBackToFusedOrder(t *testing.T) {
	fused := fusedList("a", "b", "c")
	// Only b is scorable; a and c error out.
	scorer := &scriptedScorer{scores: map[string]float64{"text:b": 0.9}}

	out, status := NewReranker().Rerank(context.Background(), "q", fused, textsFor(fused), scorer)

	require.Equal(t, RerankPartial, status)
	require.Len(t, out, 3)
	assert.Equal(t, "b", out[0].DocID)
	assert.Equal(t, "a", out[1].DocID)
	assert.Equal(t, "c", out[2].DocID)
}

func TestRerankNothingScoredKeepsFusedOrder(t *testing.T) {
	fused := fusedList("a", "b", "c")
	scorer := &scriptedScorer{scores: map[string]float64{}}

	out, status := NewReranker().Rerank(context.Background(), "q", fused, map[string]string{}, scorer)

	assert.Equal(t, RerankPartial, status)
	require.Len(t, out, 3)
	assert.Equal(t, "a", out[0].DocID)
	assert.Zero(t, scorer.calls, "no texts means no scorer calls")
}

func TestRerankCrossScoreTiesKeepFusedOrder(t *testing.T) {
	fused := fusedList("a", "b", "c")
	scorer := &scriptedScorer{scores: map[string]float64{
		"text:a": 0.5, "text:b": 0.5, "text:c": 0.5,
	}}

	out, status := NewReranker().Rerank(context.Background(), "q", fused, textsFor(fused), scorer)

	require.Equal(t, RerankFull, status)
	assert.Equal(t, "a", out[0].DocID)
	assert.Equal(t, "b", out[1].DocID)
	assert.Equal(t, "c", out[2].DocID)
}
