// Package search implements hybrid search over three retrieval methods
// (lexical, dense, sparse). Results are fused with weighted Reciprocal Rank
// Fusion (RRF), optionally refined by a cross-encoder reranker, and annotated
// with facet counts and latency diagnostics.
package search

import (
	"time"

	"github.com/shelfsearch/shelfsearch/internal/backend"
	serrors "github.com/shelfsearch/shelfsearch/internal/errors"
)

// Method identifies one retrieval backend.
type Method string

const (
	MethodLexical Method = "lexical"
	MethodDense   Method = "dense"
	MethodSparse  Method = "sparse"
)

// Methods returns all methods in the fixed fusion order. Scores are always
// summed in this order so repeated runs accumulate floating point identically.
func Methods() [3]Method {
	return [3]Method{MethodLexical, MethodDense, MethodSparse}
}

// MethodWeights is the per-method weight vector. Valid weights are
// non-negative and sum to 1.0 within tolerance.
type MethodWeights struct {
	Lexical float64
	Dense   float64
	Sparse  float64
}

// WeightTolerance is the allowed deviation of a weight sum from 1.0.
const WeightTolerance = 1e-6

// DefaultMethodWeights returns the static default weight vector.
func DefaultMethodWeights() MethodWeights {
	return MethodWeights{Lexical: 0.35, Dense: 0.35, Sparse: 0.30}
}

// For returns the weight assigned to a method.
func (w MethodWeights) For(m Method) float64 {
	switch m {
	case MethodLexical:
		return w.Lexical
	case MethodDense:
		return w.Dense
	case MethodSparse:
		return w.Sparse
	}
	return 0
}

// Sum returns the total weight.
func (w MethodWeights) Sum() float64 {
	return w.Lexical + w.Dense + w.Sparse
}

// Validate checks that weights are non-negative and sum to 1.0.
// Invalid weights are rejected, never silently corrected.
func (w MethodWeights) Validate() error {
	if w.Lexical < 0 || w.Dense < 0 || w.Sparse < 0 {
		return serrors.New(serrors.ErrCodeInvalidWeights, "weights must be non-negative", nil)
	}
	sum := w.Sum()
	if sum < 1.0-WeightTolerance || sum > 1.0+WeightTolerance {
		return serrors.New(serrors.ErrCodeInvalidWeights, "weights must sum to 1.0", nil).
			WithDetail("sum", formatFloat(sum))
	}
	return nil
}

// OutcomeStatus tags the result of one retriever call. Partial failure is
// first-class state, not an exception path.
type OutcomeStatus string

const (
	OutcomeOK       OutcomeStatus = "ok"
	OutcomeTimedOut OutcomeStatus = "timed_out"
	OutcomeFailed   OutcomeStatus = "failed"
)

// RetrievalOutcome is one method's tagged retrieval result.
type RetrievalOutcome struct {
	Method     Method
	Status     OutcomeStatus
	Candidates []backend.Candidate
	Err        error
	Latency    time.Duration
}

// Active reports whether this outcome contributes to fusion.
func (o RetrievalOutcome) Active() bool {
	return o.Status == OutcomeOK && len(o.Candidates) > 0
}

// FusedCandidate is one document after RRF fusion. Fused scores are
// comparable only within a single fusion call.
type FusedCandidate struct {
	DocID string
	Score float64

	// Ranks holds the 1-based local rank per contributing method.
	// Methods absent from the map did not retrieve this document.
	Ranks map[Method]int

	// CrossScore is set when the reranker scored this candidate.
	CrossScore float64

	// Reranked marks candidates the cross-encoder actually scored.
	Reranked bool
}

// RerankStatus describes how much of the rerank window was scored.
type RerankStatus string

const (
	RerankNone    RerankStatus = "none"
	RerankFull    RerankStatus = "full"
	RerankPartial RerankStatus = "partial"
)

// FacetCount is one value bucket within a facet dimension.
type FacetCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// Facet dimension names.
const (
	FacetClassification = "classification"
	FacetContentType    = "type"
	FacetLanguage       = "language"
	FacetReadStatus     = "read_status"
	FacetSubject        = "subject"

	// FacetUnknownBucket groups documents with missing metadata rather than
	// dropping them silently.
	FacetUnknownBucket = "unknown"
)

// DefaultFacetDimensions returns all facet dimensions in presentation order.
func DefaultFacetDimensions() []string {
	return []string{FacetClassification, FacetContentType, FacetLanguage, FacetReadStatus, FacetSubject}
}

// ResultItem is one document summary on a response page.
type ResultItem struct {
	DocID      string         `json:"doc_id"`
	Score      float64        `json:"score"`
	Snippet    string         `json:"snippet,omitempty"`
	Ranks      map[Method]int `json:"ranks,omitempty"`
	CrossScore float64        `json:"cross_score,omitempty"`
	Reranked   bool           `json:"reranked,omitempty"`
}

// StageLatency is the per-stage latency breakdown in milliseconds.
type StageLatency struct {
	RetrievalMS float64            `json:"retrieval_ms"`
	PerMethodMS map[Method]float64 `json:"per_method_ms"`
	FusionMS    float64            `json:"fusion_ms"`
	RerankMS    float64            `json:"rerank_ms"`
	FacetsMS    float64            `json:"facets_ms"`
}

// SearchResponse is the final per-request result. Built fresh per request,
// never persisted.
type SearchResponse struct {
	RequestID string                  `json:"request_id"`
	Items     []*ResultItem           `json:"items"`
	Total     int                     `json:"total"`
	Facets    map[string][]FacetCount `json:"facets,omitempty"`
	Offset    int                     `json:"offset"`
	Limit     int                     `json:"limit"`

	LatencyMS    float64      `json:"latency_ms"`
	StageLatency StageLatency `json:"stage_latency"`

	// MethodContributions counts documents each method contributed to the
	// returned page (not the whole pool).
	MethodContributions map[Method]int `json:"method_contributions"`

	WeightsUsed MethodWeights `json:"weights_used"`

	// DegradedMethods lists backends that timed out or failed; their weight
	// was redistributed among the survivors.
	DegradedMethods []Method     `json:"degraded_methods,omitempty"`
	Reranking       RerankStatus `json:"reranking"`
}

// SearchOptions configures one search request.
type SearchOptions struct {
	// Limit is the page size. Zero takes the configured default; values
	// outside [1, max] are rejected, never silently corrected.
	Limit int

	// Offset is the zero-based pagination offset.
	Offset int

	// EnableReranking turns on the cross-encoder stage when a cross encoder
	// is configured.
	EnableReranking bool

	// AdaptiveWeights asks the weight estimator for query-dependent weights.
	// Ignored when ExplicitWeights is set.
	AdaptiveWeights bool

	// ExplicitWeights bypasses estimation entirely. Must validate.
	ExplicitWeights *MethodWeights

	// FacetDimensions restricts facet aggregation; nil means all dimensions.
	FacetDimensions []string
}

// MethodResult is one variant's outcome in a compare-methods run.
type MethodResult struct {
	Method     string              `json:"method"`
	Candidates []backend.Candidate `json:"candidates"`
	LatencyMS  float64             `json:"latency_ms"`
	Err        string              `json:"error,omitempty"`
}

// Comparison is the side-by-side diagnostic result of CompareMethods.
// No fusion state is shared between the variants it compares.
type Comparison struct {
	Query    string         `json:"query"`
	Variants []MethodResult `json:"variants"`
}

// Diagnostics is the bundle handed to the injected observer after each
// search, keeping metrics emission out of the engine's state.
type Diagnostics struct {
	RequestID           string
	Query               string
	ResultCount         int
	Total               int
	Latency             time.Duration
	StageLatency        StageLatency
	WeightsUsed         MethodWeights
	MethodContributions map[Method]int
	DegradedMethods     []Method
	Reranking           RerankStatus
}

// Observer receives per-search diagnostics. Implementations must be safe for
// concurrent use; the engine invokes them synchronously at the end of Search.
type Observer interface {
	OnSearchCompleted(d Diagnostics)
}
