package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/shelfsearch/shelfsearch/internal/backend"
	serrors "github.com/shelfsearch/shelfsearch/internal/errors"
)

// ErrNilDependency is returned when a required dependency is nil.
var ErrNilDependency = errors.New("nil dependency")

// EngineConfig configures the search engine.
type EngineConfig struct {
	// DefaultLimit is the default page size (default: 10).
	DefaultLimit int

	// MaxLimit is the maximum allowed page size (default: 100).
	MaxLimit int

	// TopN is the per-method candidate depth, in [1, 200] (default: 100).
	TopN int

	// RRFConstant is the RRF smoothing constant k (default: 60).
	RRFConstant int

	// Per-method retrieval budgets. Lexical backends are typically faster
	// than the encoder-bound dense and sparse paths.
	LexicalBudget time.Duration
	DenseBudget   time.Duration
	SparseBudget  time.Duration

	// RerankWindow is the top-K eligible for cross-encoder scoring.
	RerankWindow int

	// RerankBudget is the wall-clock budget for the rerank stage.
	RerankBudget time.Duration

	// MetadataWorkers bounds concurrent metadata resolution batches.
	MetadataWorkers int

	// DefaultWeights are used when neither explicit nor adaptive weights
	// apply.
	DefaultWeights MethodWeights
}

// DefaultEngineConfig returns sensible default configuration.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		DefaultLimit:    10,
		MaxLimit:        MaxPageLimit,
		TopN:            100,
		RRFConstant:     DefaultRRFConstant,
		LexicalBudget:   80 * time.Millisecond,
		DenseBudget:     150 * time.Millisecond,
		SparseBudget:    150 * time.Millisecond,
		RerankWindow:    DefaultRerankWindow,
		RerankBudget:    DefaultRerankBudget,
		MetadataWorkers: 4,
		DefaultWeights:  DefaultMethodWeights(),
	}
}

// Engine runs hybrid search across the three retrieval methods. It holds no
// mutable per-request state; Search is safe for unbounded concurrent use.
type Engine struct {
	lexical       backend.LexicalIndex
	dense         backend.DenseIndex
	sparse        backend.SparseIndex
	embedder      backend.Embedder
	sparseEncoder backend.SparseEncoder
	metadata      backend.MetadataStore

	crossEncoder backend.CrossEncoder // optional
	estimator    WeightEstimator      // optional
	observer     Observer             // optional

	fusion   *RRFFusion
	reranker *Reranker
	facets   *FacetAggregator
	config   EngineConfig
}

// EngineOption configures the search engine.
type EngineOption func(*Engine)

// WithCrossEncoder sets the optional cross-encoder used when a request
// enables reranking.
func WithCrossEncoder(ce backend.CrossEncoder) EngineOption {
	return func(e *Engine) {
		e.crossEncoder = ce
	}
}

// WithWeightEstimator sets the optional adaptive weight estimator.
// Without one, adaptive requests fall back to the configured defaults.
func WithWeightEstimator(est WeightEstimator) EngineOption {
	return func(e *Engine) {
		e.estimator = est
	}
}

// WithObserver sets the optional diagnostics observer, invoked synchronously
// at the end of every completed search.
func WithObserver(o Observer) EngineOption {
	return func(e *Engine) {
		e.observer = o
	}
}

// NewEngine creates a hybrid search engine with the given dependencies.
// Returns an error if any required dependency is nil.
func NewEngine(
	lexical backend.LexicalIndex,
	dense backend.DenseIndex,
	sparse backend.SparseIndex,
	embedder backend.Embedder,
	sparseEncoder backend.SparseEncoder,
	metadata backend.MetadataStore,
	config EngineConfig,
	opts ...EngineOption,
) (*Engine, error) {
	if lexical == nil {
		return nil, fmt.Errorf("%w: lexical index is required", ErrNilDependency)
	}
	if dense == nil {
		return nil, fmt.Errorf("%w: dense index is required", ErrNilDependency)
	}
	if sparse == nil {
		return nil, fmt.Errorf("%w: sparse index is required", ErrNilDependency)
	}
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", ErrNilDependency)
	}
	if sparseEncoder == nil {
		return nil, fmt.Errorf("%w: sparse encoder is required", ErrNilDependency)
	}
	if metadata == nil {
		return nil, fmt.Errorf("%w: metadata store is required", ErrNilDependency)
	}

	config = applyConfigDefaults(config)

	facets, err := NewFacetAggregator(metadata, config.MetadataWorkers)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		lexical:       lexical,
		dense:         dense,
		sparse:        sparse,
		embedder:      embedder,
		sparseEncoder: sparseEncoder,
		metadata:      metadata,
		fusion:        NewRRFFusionWithK(config.RRFConstant),
		reranker:      &Reranker{Window: config.RerankWindow, Budget: config.RerankBudget},
		facets:        facets,
		config:        config,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

func applyConfigDefaults(config EngineConfig) EngineConfig {
	def := DefaultEngineConfig()
	if config.DefaultLimit <= 0 {
		config.DefaultLimit = def.DefaultLimit
	}
	if config.MaxLimit <= 0 || config.MaxLimit > MaxPageLimit {
		config.MaxLimit = def.MaxLimit
	}
	if config.TopN <= 0 || config.TopN > 200 {
		config.TopN = def.TopN
	}
	if config.RRFConstant <= 0 {
		config.RRFConstant = def.RRFConstant
	}
	if config.LexicalBudget <= 0 {
		config.LexicalBudget = def.LexicalBudget
	}
	if config.DenseBudget <= 0 {
		config.DenseBudget = def.DenseBudget
	}
	if config.SparseBudget <= 0 {
		config.SparseBudget = def.SparseBudget
	}
	if config.RerankWindow <= 0 {
		config.RerankWindow = def.RerankWindow
	}
	if config.RerankBudget <= 0 {
		config.RerankBudget = def.RerankBudget
	}
	if config.MetadataWorkers <= 0 {
		config.MetadataWorkers = def.MetadataWorkers
	}
	if config.DefaultWeights.Sum() == 0 {
		config.DefaultWeights = def.DefaultWeights
	}
	return config
}

// Search executes one hybrid search request: concurrent retrieval, weighted
// RRF fusion, optional reranking, facet aggregation, and pagination.
//
// Backend failures degrade the response (weight redistribution, diagnostic
// flags); only invalid input returns an error. Total backend failure yields
// an empty response with Total == 0, not an error.
func (e *Engine) Search(ctx context.Context, queryText string, opts SearchOptions) (*SearchResponse, error) {
	start := time.Now()

	q := NewQuery(queryText)
	if q.IsEmpty() {
		return nil, serrors.New(serrors.ErrCodeQueryEmpty, "query must contain searchable text", nil)
	}

	opts = e.applyOptionDefaults(opts)
	if err := ValidatePage(opts.Offset, opts.Limit); err != nil {
		return nil, err
	}
	if opts.Limit > e.config.MaxLimit {
		return nil, serrors.New(serrors.ErrCodeInvalidPage, "limit exceeds configured maximum", nil).
			WithDetail("limit", formatFloat(float64(opts.Limit))).
			WithDetail("max_limit", formatFloat(float64(e.config.MaxLimit)))
	}

	weights, err := e.resolveWeights(q, opts)
	if err != nil {
		return nil, err
	}

	requestID := uuid.NewString()

	retrievalStart := time.Now()
	outcomes := e.retrieveAll(ctx, q)
	retrievalMS := durationMS(time.Since(retrievalStart))

	perMethodMS := make(map[Method]float64, 3)
	var degraded []Method
	for _, o := range outcomes {
		perMethodMS[o.Method] = durationMS(o.Latency)
		if o.Status != OutcomeOK {
			degraded = append(degraded, o.Method)
			slog.Warn("retrieval method degraded",
				slog.String("request_id", requestID),
				slog.String("method", string(o.Method)),
				slog.String("status", string(o.Status)),
				slog.String("error", errString(o.Err)))
		}
	}

	fusionStart := time.Now()
	fused, weightsUsed, fuseErr := e.fusion.Fuse(outcomes, weights)
	fusionMS := durationMS(time.Since(fusionStart))

	stage := StageLatency{
		RetrievalMS: retrievalMS,
		PerMethodMS: perMethodMS,
		FusionMS:    fusionMS,
	}

	if fuseErr != nil {
		if errors.Is(fuseErr, ErrNoResults) {
			return e.emptyResponse(requestID, q, opts, weights, stage, degraded, start), nil
		}
		return nil, fuseErr
	}

	// Resolve metadata once for the whole pool; facets, snippets, and rerank
	// texts all come from it.
	poolIDs := make([]string, len(fused))
	for i, fc := range fused {
		poolIDs[i] = fc.DocID
	}

	facetStart := time.Now()
	resolved, resolveErr := e.facets.Resolve(ctx, poolIDs)
	if resolveErr != nil {
		// Facets and snippets are enrichment; the ranking is still valid.
		slog.Warn("metadata resolution failed, returning bare ranking",
			slog.String("request_id", requestID),
			slog.String("error", resolveErr.Error()))
		resolved = map[string]*backend.DocumentMeta{}
	}

	var facetCounts map[string][]FacetCount
	if resolveErr == nil {
		facetCounts = e.facets.Aggregate(poolIDs, resolved, opts.FacetDimensions)
	}
	stage.FacetsMS = durationMS(time.Since(facetStart))

	reranking := RerankNone
	if opts.EnableReranking && e.crossEncoder != nil {
		rerankStart := time.Now()
		texts := make(map[string]string, len(resolved))
		for id, meta := range resolved {
			texts[id] = meta.Snippet
		}
		fused, reranking = e.reranker.Rerank(ctx, q.Raw, fused, texts, e.crossEncoder)
		stage.RerankMS = durationMS(time.Since(rerankStart))
	}

	items, total := Present(fused, resolved, opts.Offset, opts.Limit)
	contributions := PageContributions(items)

	resp := &SearchResponse{
		RequestID:           requestID,
		Items:               items,
		Total:               total,
		Facets:              facetCounts,
		Offset:              opts.Offset,
		Limit:               opts.Limit,
		LatencyMS:           durationMS(time.Since(start)),
		StageLatency:        stage,
		MethodContributions: contributions,
		WeightsUsed:         weightsUsed,
		DegradedMethods:     degraded,
		Reranking:           reranking,
	}

	e.notify(q, resp)
	return resp, nil
}

// CompareMethods runs each retriever and fusion variant independently and
// returns them side by side. Variants share no fusion state; each gets its
// own retrieval pass.
func (e *Engine) CompareMethods(ctx context.Context, queryText string, limit int) (*Comparison, error) {
	q := NewQuery(queryText)
	if q.IsEmpty() {
		return nil, serrors.New(serrors.ErrCodeQueryEmpty, "query must contain searchable text", nil)
	}
	if limit <= 0 {
		limit = e.config.DefaultLimit
	}

	variants := make([]MethodResult, 0, 5)

	for _, m := range Methods() {
		o := e.retrieveOne(ctx, m, q)
		variants = append(variants, methodResult(string(m), o.Candidates, o.Latency, o.Err, limit))
	}

	fuseVariant := func(name string, weights MethodWeights) {
		start := time.Now()
		outcomes := e.retrieveAll(ctx, q)
		fused, _, err := e.fusion.Fuse(outcomes, weights)
		cands := make([]backend.Candidate, 0, len(fused))
		for _, fc := range fused {
			cands = append(cands, backend.Candidate{DocID: fc.DocID, Score: fc.Score})
		}
		variants = append(variants, methodResult(name, cands, time.Since(start), err, limit))
	}

	fuseVariant("fused_static", e.config.DefaultWeights)
	if e.estimator != nil {
		fuseVariant("fused_adaptive", e.estimator.Estimate(q))
	}

	return &Comparison{Query: q.Raw, Variants: variants}, nil
}

// Close releases engine-owned resources.
func (e *Engine) Close() error {
	e.facets.Close()
	return nil
}

// applyOptionDefaults fills default values for search options. Out-of-range
// values are left untouched for ValidatePage to reject.
func (e *Engine) applyOptionDefaults(opts SearchOptions) SearchOptions {
	if opts.Limit == 0 {
		opts.Limit = e.config.DefaultLimit
	}
	return opts
}

// resolveWeights picks the weight vector for this request. Explicit weights
// bypass estimation and must validate; adaptive estimation applies when
// requested and an estimator is configured.
func (e *Engine) resolveWeights(q Query, opts SearchOptions) (MethodWeights, error) {
	if opts.ExplicitWeights != nil {
		if err := opts.ExplicitWeights.Validate(); err != nil {
			return MethodWeights{}, err
		}
		return *opts.ExplicitWeights, nil
	}
	if opts.AdaptiveWeights && e.estimator != nil {
		return e.estimator.Estimate(q), nil
	}
	return e.config.DefaultWeights, nil
}

// retrieveAll dispatches the three retrievers concurrently, each under its
// own budget, and blocks until every outcome is tagged. A straggler past its
// budget returns a timed-out outcome; it is never waited on indefinitely.
func (e *Engine) retrieveAll(ctx context.Context, q Query) []RetrievalOutcome {
	outcomes := make([]RetrievalOutcome, 3)

	g := new(errgroup.Group)
	for i, m := range Methods() {
		i, m := i, m
		g.Go(func() error {
			outcomes[i] = e.retrieveOne(ctx, m, q)
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

// retrieveOne runs a single method under its per-method budget.
func (e *Engine) retrieveOne(ctx context.Context, m Method, q Query) RetrievalOutcome {
	start := time.Now()

	budget := e.methodBudget(m)
	budgetCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	var (
		cands []backend.Candidate
		err   error
	)

	switch m {
	case MethodLexical:
		cands, err = e.lexical.Search(budgetCtx, q.Normalized, e.config.TopN)
	case MethodDense:
		var embedding []float32
		embedding, err = e.embedder.Embed(budgetCtx, q.Raw)
		if err == nil {
			cands, err = e.dense.Search(budgetCtx, embedding, e.config.TopN)
		}
	case MethodSparse:
		var termWeights map[string]float64
		termWeights, err = e.sparseEncoder.Encode(budgetCtx, q.Normalized)
		if err == nil {
			cands, err = e.sparse.Search(budgetCtx, termWeights, e.config.TopN)
		}
	}

	latency := time.Since(start)

	if err != nil {
		status := OutcomeFailed
		code := serrors.ErrCodeBackendUnavailable
		if errors.Is(err, context.DeadlineExceeded) || budgetCtx.Err() == context.DeadlineExceeded {
			status = OutcomeTimedOut
			code = serrors.ErrCodeBackendTimeout
		}
		return RetrievalOutcome{
			Method:  m,
			Status:  status,
			Err:     serrors.Wrap(code, err).WithDetail("method", string(m)),
			Latency: latency,
		}
	}

	return RetrievalOutcome{
		Method:     m,
		Status:     OutcomeOK,
		Candidates: dedupeCandidates(cands),
		Latency:    latency,
	}
}

func (e *Engine) methodBudget(m Method) time.Duration {
	switch m {
	case MethodLexical:
		return e.config.LexicalBudget
	case MethodDense:
		return e.config.DenseBudget
	case MethodSparse:
		return e.config.SparseBudget
	}
	return e.config.LexicalBudget
}

// dedupeCandidates enforces the candidate-set invariant of unique document
// ids, keeping the first (best-ranked) occurrence. The input slice belongs to
// the backend and is never mutated.
func dedupeCandidates(cands []backend.Candidate) []backend.Candidate {
	seen := make(map[string]struct{}, len(cands))
	out := make([]backend.Candidate, 0, len(cands))
	for _, c := range cands {
		if _, dup := seen[c.DocID]; dup {
			continue
		}
		seen[c.DocID] = struct{}{}
		out = append(out, c)
	}
	return out
}

// emptyResponse is the degraded result when every method failed or returned
// nothing: a valid response with zero results, never an error.
func (e *Engine) emptyResponse(
	requestID string,
	q Query,
	opts SearchOptions,
	weights MethodWeights,
	stage StageLatency,
	degraded []Method,
	start time.Time,
) *SearchResponse {
	resp := &SearchResponse{
		RequestID:           requestID,
		Items:               []*ResultItem{},
		Total:               0,
		Offset:              opts.Offset,
		Limit:               opts.Limit,
		LatencyMS:           durationMS(time.Since(start)),
		StageLatency:        stage,
		MethodContributions: PageContributions(nil),
		WeightsUsed:         weights,
		DegradedMethods:     degraded,
		Reranking:           RerankNone,
	}
	e.notify(q, resp)
	return resp
}

// notify hands diagnostics to the injected observer, if any.
func (e *Engine) notify(q Query, resp *SearchResponse) {
	if e.observer == nil {
		return
	}
	e.observer.OnSearchCompleted(Diagnostics{
		RequestID:           resp.RequestID,
		Query:               q.Raw,
		ResultCount:         len(resp.Items),
		Total:               resp.Total,
		Latency:             time.Duration(resp.LatencyMS * float64(time.Millisecond)),
		StageLatency:        resp.StageLatency,
		WeightsUsed:         resp.WeightsUsed,
		MethodContributions: resp.MethodContributions,
		DegradedMethods:     resp.DegradedMethods,
		Reranking:           resp.Reranking,
	})
}

func methodResult(name string, cands []backend.Candidate, latency time.Duration, err error, limit int) MethodResult {
	if len(cands) > limit {
		cands = cands[:limit]
	}
	if cands == nil {
		cands = []backend.Candidate{}
	}
	return MethodResult{
		Method:     name,
		Candidates: cands,
		LatencyMS:  durationMS(latency),
		Err:        errString(err),
	}
}

func durationMS(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000.0
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
