// Package eval computes standard information-retrieval quality metrics
// (nDCG@K, Recall@K, Precision@K, MRR) for a ranking against a caller-supplied
// relevance-judgment map. All functions are pure and reproducible.
package eval

import (
	"math"
	"sort"
	"strconv"

	serrors "github.com/shelfsearch/shelfsearch/internal/errors"
)

// Grade bounds for relevance judgments.
const (
	MinGrade = 0
	MaxGrade = 3
)

// Metrics holds the quality metrics of one ranking at cutoff K.
type Metrics struct {
	K         int     `json:"k"`
	NDCG      float64 `json:"ndcg"`
	Recall    float64 `json:"recall"`
	Precision float64 `json:"precision"`
	MRR       float64 `json:"mrr"`
}

// Result pairs a query's metrics with its delta against a baseline ranking.
type Result struct {
	Query   string  `json:"query"`
	Metrics Metrics `json:"metrics"`

	// BaselineComparison is this ranking's nDCG@K minus the baseline's.
	// Positive means the evaluated ranking is better.
	BaselineComparison float64 `json:"baseline_comparison"`
}

// Evaluate computes nDCG@K, Recall@K, Precision@K, and MRR for a ranked
// document id list. Documents absent from the judgment map count as grade 0.
//
// MRR is 0.0 when no relevant document appears anywhere in the ranking, so
// the metric stays total instead of being undefined. Recall and nDCG are 0.0
// when the judgment map holds no relevant documents at all.
func Evaluate(rankedIDs []string, judgments map[string]int, k int) (Metrics, error) {
	if k < 1 {
		return Metrics{}, serrors.New(serrors.ErrCodeInvalidInput, "evaluation cutoff K must be >= 1", nil).
			WithDetail("k", strconv.Itoa(k))
	}
	if err := validateJudgments(judgments); err != nil {
		return Metrics{}, err
	}

	return Metrics{
		K:         k,
		NDCG:      ndcgAt(rankedIDs, judgments, k),
		Recall:    recallAt(rankedIDs, judgments, k),
		Precision: precisionAt(rankedIDs, judgments, k),
		MRR:       mrr(rankedIDs, judgments),
	}, nil
}

// Compare evaluates a ranking and a baseline ranking against the same
// judgments and reports the nDCG@K delta.
func Compare(query string, rankedIDs, baselineIDs []string, judgments map[string]int, k int) (Result, error) {
	metrics, err := Evaluate(rankedIDs, judgments, k)
	if err != nil {
		return Result{}, err
	}
	baseline, err := Evaluate(baselineIDs, judgments, k)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Query:              query,
		Metrics:            metrics,
		BaselineComparison: metrics.NDCG - baseline.NDCG,
	}, nil
}

// validateJudgments rejects grades outside [0, 3].
func validateJudgments(judgments map[string]int) error {
	for id, grade := range judgments {
		if grade < MinGrade || grade > MaxGrade {
			return serrors.New(serrors.ErrCodeInvalidJudgments, "relevance grade must be in [0,3]", nil).
				WithDetail("doc_id", id).
				WithDetail("grade", strconv.Itoa(grade))
		}
	}
	return nil
}

// dcgAt computes DCG@K = Σ_{i=1..K} (2^grade_i - 1) / log2(i+1) over the
// ranked list, with 1-based position i.
func dcgAt(rankedIDs []string, judgments map[string]int, k int) float64 {
	if k > len(rankedIDs) {
		k = len(rankedIDs)
	}
	var dcg float64
	for i := 0; i < k; i++ {
		grade := judgments[rankedIDs[i]]
		if grade == 0 {
			continue
		}
		dcg += (math.Pow(2, float64(grade)) - 1) / math.Log2(float64(i)+2)
	}
	return dcg
}

// ndcgAt normalizes DCG@K by the DCG of the ideal ordering: all judged
// documents sorted by grade descending.
func ndcgAt(rankedIDs []string, judgments map[string]int, k int) float64 {
	ideal := make([]string, 0, len(judgments))
	for id := range judgments {
		ideal = append(ideal, id)
	}
	sort.Slice(ideal, func(i, j int) bool {
		return judgments[ideal[i]] > judgments[ideal[j]]
	})

	idcg := dcgAt(ideal, judgments, k)
	if idcg == 0 {
		return 0
	}
	return dcgAt(rankedIDs, judgments, k) / idcg
}

// recallAt is the fraction of judged-relevant documents (grade >= 1) found in
// the top K.
func recallAt(rankedIDs []string, judgments map[string]int, k int) float64 {
	totalRelevant := 0
	for _, grade := range judgments {
		if grade >= 1 {
			totalRelevant++
		}
	}
	if totalRelevant == 0 {
		return 0
	}
	if k > len(rankedIDs) {
		k = len(rankedIDs)
	}
	found := 0
	for i := 0; i < k; i++ {
		if judgments[rankedIDs[i]] >= 1 {
			found++
		}
	}
	return float64(found) / float64(totalRelevant)
}

// precisionAt is the fraction of the top K that is judged relevant. The
// divisor is K itself, so short rankings are penalized.
func precisionAt(rankedIDs []string, judgments map[string]int, k int) float64 {
	limit := k
	if limit > len(rankedIDs) {
		limit = len(rankedIDs)
	}
	relevant := 0
	for i := 0; i < limit; i++ {
		if judgments[rankedIDs[i]] >= 1 {
			relevant++
		}
	}
	return float64(relevant) / float64(k)
}

// mrr is the reciprocal 1-based rank of the first relevant document, over the
// whole ranking, or 0.0 when none is relevant.
func mrr(rankedIDs []string, judgments map[string]int) float64 {
	for i, id := range rankedIDs {
		if judgments[id] >= 1 {
			return 1.0 / float64(i+1)
		}
	}
	return 0
}
