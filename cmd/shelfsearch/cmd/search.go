package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/shelfsearch/shelfsearch/internal/config"
	"github.com/shelfsearch/shelfsearch/internal/obs"
	"github.com/shelfsearch/shelfsearch/internal/search"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	corpus      string
	limit       int
	offset      int
	rerank      bool
	adaptive    bool
	weights     string // "lexical,dense,sparse", e.g. "0.5,0.3,0.2"
	facets      []string
	format      string // "text", "json"
	telemetryDB string
	metricsFile string
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search a corpus with hybrid fusion",
		Long: `Search a JSON corpus using all three retrieval methods fused with
weighted Reciprocal Rank Fusion.

Examples:
  shelfsearch search "medieval monasteries" --corpus library.json
  shelfsearch search "compilers" --corpus library.json --adaptive --limit 5
  shelfsearch search "type systems" --corpus library.json --weights 0.5,0.3,0.2
  shelfsearch search "rare books" --corpus library.json --rerank --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return runSearch(cmd.Context(), cmd, query, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.corpus, "corpus", "c", "", "Path to JSON corpus file (required)")
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "Maximum number of results (default from config)")
	cmd.Flags().IntVar(&opts.offset, "offset", 0, "Pagination offset")
	cmd.Flags().BoolVar(&opts.rerank, "rerank", false, "Enable cross-encoder reranking")
	cmd.Flags().BoolVar(&opts.adaptive, "adaptive", false, "Use query-adaptive fusion weights")
	cmd.Flags().StringVarP(&opts.weights, "weights", "w", "", "Explicit fusion weights as lexical,dense,sparse (e.g. 0.5,0.3,0.2)")
	cmd.Flags().StringSliceVar(&opts.facets, "facets", nil, "Facet dimensions to aggregate (default: all)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")
	cmd.Flags().StringVar(&opts.telemetryDB, "telemetry-db", "", "Telemetry database path (default ~/.shelfsearch/telemetry.db)")
	cmd.Flags().StringVar(&opts.metricsFile, "metrics-file", "", "Write Prometheus metrics here after the search (textfile-collector format)")
	_ = cmd.MarkFlagRequired("corpus")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, query string, opts searchOptions) error {
	cfg, err := config.Load(".")
	if err != nil {
		return err
	}

	docs, err := loadCorpus(opts.corpus)
	if err != nil {
		return err
	}

	var engineOpts []search.EngineOption
	if opts.rerank {
		engineOpts = append(engineOpts, search.WithCrossEncoder(newLexicalOverlapScorer()))
	}

	var observers multiObserver

	recorder, closeRecorder := setupTelemetry(cmd, opts.telemetryDB)
	if recorder != nil {
		defer closeRecorder()
		observers = append(observers, recorder)
	}

	var metricsReg *prometheus.Registry
	if opts.metricsFile != "" {
		metricsReg = prometheus.NewRegistry()
		observers = append(observers, obs.NewObserver(metricsReg))
	}
	if len(observers) > 0 {
		engineOpts = append(engineOpts, search.WithObserver(observers))
	}

	engine, err := buildEngine(ctx, cfg, docs, engineOpts...)
	if err != nil {
		return err
	}
	defer engine.Close()

	facetDims := opts.facets
	if len(facetDims) == 0 {
		facetDims = cfg.Facets.Dimensions
	}

	searchOpts := search.SearchOptions{
		Limit:           opts.limit,
		Offset:          opts.offset,
		EnableReranking: opts.rerank,
		AdaptiveWeights: opts.adaptive || cfg.Search.AdaptiveWeights,
		FacetDimensions: facetDims,
	}
	if opts.weights != "" {
		weights, err := parseWeights(opts.weights)
		if err != nil {
			return err
		}
		searchOpts.ExplicitWeights = weights
	}

	resp, err := engine.Search(ctx, query, searchOpts)
	if err != nil {
		return err
	}

	if metricsReg != nil {
		if err := prometheus.WriteToTextfile(opts.metricsFile, metricsReg); err != nil {
			return fmt.Errorf("write metrics file: %w", err)
		}
	}

	if opts.format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}
	printResponse(cmd, query, resp)
	return nil
}

// parseWeights parses "lexical,dense,sparse" into a weight vector.
func parseWeights(s string) (*search.MethodWeights, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return nil, fmt.Errorf("weights must be three comma-separated values, got %q", s)
	}
	vals := make([]float64, 3)
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid weight %q: %w", p, err)
		}
		vals[i] = f
	}
	return &search.MethodWeights{Lexical: vals[0], Dense: vals[1], Sparse: vals[2]}, nil
}

func printResponse(cmd *cobra.Command, query string, resp *search.SearchResponse) {
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "Results for %q (%d total, %.1fms)\n", query, resp.Total, resp.LatencyMS)
	if len(resp.DegradedMethods) > 0 {
		names := make([]string, len(resp.DegradedMethods))
		for i, m := range resp.DegradedMethods {
			names[i] = string(m)
		}
		fmt.Fprintf(out, "  degraded methods: %s\n", strings.Join(names, ", "))
	}
	fmt.Fprintf(out, "  weights: lexical=%.2f dense=%.2f sparse=%.2f  reranking: %s\n\n",
		resp.WeightsUsed.Lexical, resp.WeightsUsed.Dense, resp.WeightsUsed.Sparse, resp.Reranking)

	for i, item := range resp.Items {
		fmt.Fprintf(out, "%2d. %s  (score %.5f)\n", resp.Offset+i+1, item.DocID, item.Score)
		if item.Snippet != "" {
			fmt.Fprintf(out, "    %s\n", item.Snippet)
		}
		var ranks []string
		for _, m := range search.Methods() {
			if r, ok := item.Ranks[m]; ok {
				ranks = append(ranks, fmt.Sprintf("%s#%d", m, r))
			}
		}
		if len(ranks) > 0 {
			fmt.Fprintf(out, "    via %s\n", strings.Join(ranks, " "))
		}
	}

	if len(resp.Facets) > 0 {
		fmt.Fprintln(out, "\nFacets:")
		dims := make([]string, 0, len(resp.Facets))
		for dim := range resp.Facets {
			dims = append(dims, dim)
		}
		sort.Strings(dims)
		for _, dim := range dims {
			var parts []string
			for _, bucket := range resp.Facets[dim] {
				parts = append(parts, fmt.Sprintf("%s(%d)", bucket.Value, bucket.Count))
			}
			fmt.Fprintf(out, "  %s: %s\n", dim, strings.Join(parts, " "))
		}
	}
}
