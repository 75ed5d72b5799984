package search

import (
	"sort"

	serrors "github.com/shelfsearch/shelfsearch/internal/errors"
)

// DefaultRRFConstant is the standard RRF smoothing parameter.
// k=60 is empirically validated across domains and must stay the default to
// match evaluation baselines.
const DefaultRRFConstant = 60

// ErrNoResults is returned by Fuse when no retrieval method produced
// candidates. Callers surface it as an empty response, not a request failure.
var ErrNoResults = serrors.New(serrors.ErrCodeNoResults, "all retrieval methods failed or returned empty", nil)

// RRFFusion merges per-method candidate sets using weighted Reciprocal Rank
// Fusion:
//
//	fused_score(d) = Σ_{m ∈ active} w_m' · 1/(k + rank_m(d))
//
// where rank_m(d) is the 1-based rank of d in method m's set and the term is
// omitted entirely when m did not retrieve d. Weights of inactive methods are
// redistributed proportionally among the active ones before summing.
type RRFFusion struct {
	K int // RRF smoothing constant (default: 60)
}

// NewRRFFusion creates an RRF fusion instance with default k=60.
func NewRRFFusion() *RRFFusion {
	return &RRFFusion{K: DefaultRRFConstant}
}

// NewRRFFusionWithK creates an RRF fusion with custom k value.
// If k <= 0, defaults to 60.
func NewRRFFusionWithK(k int) *RRFFusion {
	if k <= 0 {
		k = DefaultRRFConstant
	}
	return &RRFFusion{K: k}
}

// Fuse combines the per-method outcomes into one ranked list.
//
// Returns the fused candidates and the weights actually used after
// redistribution. Output is deterministic for identical inputs: methods are
// processed in the fixed order lexical, dense, sparse, and ties are broken by
// document id ascending.
func (f *RRFFusion) Fuse(outcomes []RetrievalOutcome, weights MethodWeights) ([]*FusedCandidate, MethodWeights, error) {
	byMethod := make(map[Method]RetrievalOutcome, len(outcomes))
	for _, o := range outcomes {
		byMethod[o.Method] = o
	}

	active, err := redistributeWeights(byMethod, weights)
	if err != nil {
		return nil, MethodWeights{}, err
	}

	scores := make(map[string]*FusedCandidate)

	// Fixed method order keeps floating point accumulation reproducible.
	for _, m := range Methods() {
		o, ok := byMethod[m]
		if !ok || !o.Active() {
			continue
		}
		w := active.For(m)
		for i, c := range o.Candidates {
			rank := i + 1
			fc, exists := scores[c.DocID]
			if !exists {
				fc = &FusedCandidate{DocID: c.DocID, Ranks: make(map[Method]int, 3)}
				scores[c.DocID] = fc
			}
			fc.Ranks[m] = rank
			fc.Score += w / float64(f.K+rank)
		}
	}

	fused := make([]*FusedCandidate, 0, len(scores))
	for _, fc := range scores {
		fused = append(fused, fc)
	}

	sort.Slice(fused, func(i, j int) bool {
		if fused[i].Score != fused[j].Score {
			return fused[i].Score > fused[j].Score
		}
		return fused[i].DocID < fused[j].DocID
	})

	return fused, active, nil
}

// redistributeWeights renormalizes weights over the active methods:
// w_m' = w_m / Σ w_active. A failed or empty backend drops out and its
// weight is shared proportionally by the survivors.
func redistributeWeights(byMethod map[Method]RetrievalOutcome, weights MethodWeights) (MethodWeights, error) {
	var activeSum float64
	activeCount := 0
	for _, m := range Methods() {
		if o, ok := byMethod[m]; ok && o.Active() {
			activeSum += weights.For(m)
			activeCount++
		}
	}

	if activeCount == 0 {
		return MethodWeights{}, ErrNoResults
	}

	isActive := func(m Method) bool {
		o, ok := byMethod[m]
		return ok && o.Active()
	}

	var out MethodWeights
	if activeSum <= 0 {
		// Every surviving method was weighted zero; fall back to uniform so a
		// degraded search still returns results.
		uniform := 1.0 / float64(activeCount)
		if isActive(MethodLexical) {
			out.Lexical = uniform
		}
		if isActive(MethodDense) {
			out.Dense = uniform
		}
		if isActive(MethodSparse) {
			out.Sparse = uniform
		}
		return out, nil
	}

	if isActive(MethodLexical) {
		out.Lexical = weights.Lexical / activeSum
	}
	if isActive(MethodDense) {
		out.Dense = weights.Dense / activeSum
	}
	if isActive(MethodSparse) {
		out.Sparse = weights.Sparse / activeSum
	}
	return out, nil
}
