package search

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/shelfsearch/shelfsearch/internal/backend"
)

// DefaultRerankWindow bounds reranking cost: only the top-K fused candidates
// are eligible for cross-encoder scoring.
const DefaultRerankWindow = 50

// DefaultRerankBudget is the wall-clock budget for the rerank stage.
const DefaultRerankBudget = 800 * time.Millisecond

// Reranker reorders the fused prefix by cross-encoder score under a hard
// time budget. When the budget runs out mid-window, the unscored tail keeps
// its fused order and the outcome is flagged partial.
type Reranker struct {
	Window int
	Budget time.Duration
}

// NewReranker creates a reranker with default window and budget.
func NewReranker() *Reranker {
	return &Reranker{Window: DefaultRerankWindow, Budget: DefaultRerankBudget}
}

// Rerank scores up to r.Window candidates with the cross encoder and returns
// the reordered list plus the achieved status.
//
// Ordering of the returned list:
//  1. scored candidates by CrossScore descending, ties by original fused rank
//  2. unscored window candidates in original fused order
//  3. candidates beyond the window, untouched, in original fused order
func (r *Reranker) Rerank(
	ctx context.Context,
	query string,
	fused []*FusedCandidate,
	texts map[string]string,
	scorer backend.CrossEncoder,
) ([]*FusedCandidate, RerankStatus) {
	if scorer == nil || len(fused) < 2 {
		return fused, RerankNone
	}

	window := r.Window
	if window <= 0 {
		window = DefaultRerankWindow
	}
	if window > len(fused) {
		window = len(fused)
	}

	budget := r.Budget
	if budget <= 0 {
		budget = DefaultRerankBudget
	}

	deadline := time.Now().Add(budget)
	origRank := make(map[string]int, window)

	scored := make([]*FusedCandidate, 0, window)
	var unscored []*FusedCandidate

	for i, fc := range fused[:window] {
		origRank[fc.DocID] = i

		if time.Now().After(deadline) {
			unscored = append(unscored, fused[i:window]...)
			break
		}

		text, ok := texts[fc.DocID]
		if !ok || text == "" {
			unscored = append(unscored, fc)
			continue
		}

		score, err := scorer.Score(ctx, query, text)
		if err != nil {
			slog.Debug("cross encoder score failed, keeping fused order",
				slog.String("doc_id", fc.DocID),
				slog.String("error", err.Error()))
			unscored = append(unscored, fc)
			continue
		}

		fc.CrossScore = score
		fc.Reranked = true
		scored = append(scored, fc)
	}

	status := RerankFull
	if len(scored) == 0 {
		// Nothing got scored; the fused order stands.
		return fused, RerankPartial
	}
	if len(scored) < window {
		status = RerankPartial
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].CrossScore != scored[j].CrossScore {
			return scored[i].CrossScore > scored[j].CrossScore
		}
		return origRank[scored[i].DocID] < origRank[scored[j].DocID]
	})

	out := make([]*FusedCandidate, 0, len(fused))
	out = append(out, scored...)
	out = append(out, unscored...)
	out = append(out, fused[window:]...)
	return out, status
}
