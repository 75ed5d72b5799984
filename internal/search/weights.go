package search

import (
	"regexp"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// WeightEstimator produces per-method weights for a query. Implementations
// must be pure: same query, same weights. The engine bypasses estimation
// entirely when the caller supplies explicit weights.
type WeightEstimator interface {
	Estimate(q Query) MethodWeights
}

// StaticEstimator always returns a fixed weight vector.
type StaticEstimator struct {
	Weights MethodWeights
}

// NewStaticEstimator returns an estimator pinned to the default weights.
func NewStaticEstimator() *StaticEstimator {
	return &StaticEstimator{Weights: DefaultMethodWeights()}
}

// Estimate returns the configured weights regardless of the query.
func (s *StaticEstimator) Estimate(Query) MethodWeights {
	return s.Weights
}

// Compiled patterns for query feature detection.
var (
	// Quoted exact phrases: "..." or '...'
	quotedPhrasePattern = regexp.MustCompile(`["'][^"']+["']`)

	// Exact identifiers: error codes, ISBNs, call numbers, shelf marks.
	identifierPattern = regexp.MustCompile(`(?i)^([A-Z]{2,}[-_]?\d{2,}|\d{3}\.\d+|\d{9,13}X?|[A-Z]+\d+\.[A-Z]\d+)$`)

	// Question-like phrasing favors the dense method.
	questionPattern = regexp.MustCompile(`(?i)^(how|what|where|why|when|which|who|can|does|is|are|should|explain|describe|compare)\b`)
)

// Default cache size for the heuristic estimator.
const defaultEstimatorCacheSize = 10000

// HeuristicEstimator derives weights from query features: token count,
// quoted phrases and exact identifiers, rare-token ratio, and question-like
// phrasing. Results are cached in an LRU keyed by normalized query text.
type HeuristicEstimator struct {
	vocabulary map[string]struct{}
	cache      *lru.Cache[string, MethodWeights]
}

// NewHeuristicEstimator creates an estimator. vocabulary is the set of
// common in-collection terms used for rare-token detection; tokens outside
// it favor the sparse method, which models rare-term importance well.
func NewHeuristicEstimator(vocabulary []string) *HeuristicEstimator {
	vocab := make(map[string]struct{}, len(vocabulary))
	for _, term := range vocabulary {
		vocab[strings.ToLower(term)] = struct{}{}
	}
	cache, _ := lru.New[string, MethodWeights](defaultEstimatorCacheSize)
	return &HeuristicEstimator{vocabulary: vocab, cache: cache}
}

// Estimate returns query-adaptive weights summing to 1.0.
func (h *HeuristicEstimator) Estimate(q Query) MethodWeights {
	if q.IsEmpty() {
		return DefaultMethodWeights()
	}

	if w, ok := h.cache.Get(q.Normalized); ok {
		return w
	}

	w := h.estimate(q)
	h.cache.Add(q.Normalized, w)
	return w
}

func (h *HeuristicEstimator) estimate(q Query) MethodWeights {
	// Start from the static defaults and shift mass toward the method the
	// features point at, then renormalize.
	w := DefaultMethodWeights()

	switch {
	case quotedPhrasePattern.MatchString(q.Raw):
		w = MethodWeights{Lexical: 0.60, Dense: 0.20, Sparse: 0.20}
	case q.TokenCount() == 1 && identifierPattern.MatchString(q.Raw):
		w = MethodWeights{Lexical: 0.70, Dense: 0.10, Sparse: 0.20}
	case questionPattern.MatchString(q.Raw):
		w = MethodWeights{Lexical: 0.15, Dense: 0.60, Sparse: 0.25}
	case q.TokenCount() >= 6:
		// Long natural-language queries lean on semantic matching.
		w = MethodWeights{Lexical: 0.20, Dense: 0.50, Sparse: 0.30}
	case q.TokenCount() <= 2:
		// Short keyword queries lean on exact and rare-term matching.
		w = MethodWeights{Lexical: 0.45, Dense: 0.20, Sparse: 0.35}
	}

	// Rare-term heavy queries shift additional mass to sparse.
	if len(h.vocabulary) > 0 && h.rareTokenRatio(q) > 0.5 {
		w.Sparse += 0.15
		w.Dense -= 0.10
		w.Lexical -= 0.05
		if w.Dense < 0.05 {
			w.Dense = 0.05
		}
		if w.Lexical < 0.05 {
			w.Lexical = 0.05
		}
	}

	return normalizeWeights(w)
}

// rareTokenRatio returns the fraction of tokens outside the known vocabulary.
func (h *HeuristicEstimator) rareTokenRatio(q Query) float64 {
	if q.TokenCount() == 0 {
		return 0
	}
	rare := 0
	for _, tok := range q.Tokens {
		if _, ok := h.vocabulary[tok]; !ok {
			rare++
		}
	}
	return float64(rare) / float64(q.TokenCount())
}

// normalizeWeights rescales a weight vector to sum to exactly 1.0.
func normalizeWeights(w MethodWeights) MethodWeights {
	sum := w.Sum()
	if sum <= 0 {
		return DefaultMethodWeights()
	}
	return MethodWeights{
		Lexical: w.Lexical / sum,
		Dense:   w.Dense / sum,
		Sparse:  w.Sparse / sum,
	}
}

var (
	_ WeightEstimator = (*StaticEstimator)(nil)
	_ WeightEstimator = (*HeuristicEstimator)(nil)
)
