package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shelfsearch/shelfsearch/internal/config"
	"github.com/shelfsearch/shelfsearch/internal/eval"
	"github.com/shelfsearch/shelfsearch/internal/search"
)

type evaluateOptions struct {
	corpus    string
	judgments string
	k         int
	baseline  string // retrieval method used as the comparison baseline
	format    string
}

func newEvaluateCmd() *cobra.Command {
	var opts evaluateOptions

	cmd := &cobra.Command{
		Use:   "evaluate <query>",
		Short: "Score the fused ranking against relevance judgments",
		Long: `Run a hybrid search and score the resulting ranking with nDCG@K,
Recall@K, Precision@K, and MRR against a relevance-judgment file: a JSON
object mapping document ids to grades 0..3.

The baseline comparison reports the fused ranking's nDCG@K delta against a
single-method baseline (default: lexical).

Examples:
  shelfsearch evaluate "naval history" --corpus library.json --judgments judgments.json
  shelfsearch evaluate "naval history" -c library.json -j judgments.json --k 20 --baseline dense`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return runEvaluate(cmd.Context(), cmd, query, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.corpus, "corpus", "c", "", "Path to JSON corpus file (required)")
	cmd.Flags().StringVarP(&opts.judgments, "judgments", "j", "", "Path to JSON relevance judgments (required)")
	cmd.Flags().IntVar(&opts.k, "k", 10, "Metric cutoff K")
	cmd.Flags().StringVar(&opts.baseline, "baseline", "lexical", "Baseline variant: lexical, dense, sparse")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")
	_ = cmd.MarkFlagRequired("corpus")
	_ = cmd.MarkFlagRequired("judgments")

	return cmd
}

func runEvaluate(ctx context.Context, cmd *cobra.Command, query string, opts evaluateOptions) error {
	cfg, err := config.Load(".")
	if err != nil {
		return err
	}

	judgments, err := loadJudgments(opts.judgments)
	if err != nil {
		return err
	}

	docs, err := loadCorpus(opts.corpus)
	if err != nil {
		return err
	}

	engine, err := buildEngine(ctx, cfg, docs)
	if err != nil {
		return err
	}
	defer engine.Close()

	cmp, err := engine.CompareMethods(ctx, query, opts.k)
	if err != nil {
		return err
	}

	fusedIDs := variantIDs(cmp, "fused_static")
	baselineIDs := variantIDs(cmp, opts.baseline)
	if baselineIDs == nil {
		return fmt.Errorf("unknown baseline variant %q", opts.baseline)
	}

	result, err := eval.Compare(query, fusedIDs, baselineIDs, judgments, opts.k)
	if err != nil {
		return err
	}

	if opts.format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	out := cmd.OutOrStdout()
	m := result.Metrics
	fmt.Fprintf(out, "Evaluation of %q at K=%d\n", query, m.K)
	fmt.Fprintf(out, "  nDCG@%d:      %.4f\n", m.K, m.NDCG)
	fmt.Fprintf(out, "  Recall@%d:    %.4f\n", m.K, m.Recall)
	fmt.Fprintf(out, "  Precision@%d: %.4f\n", m.K, m.Precision)
	fmt.Fprintf(out, "  MRR:          %.4f\n", m.MRR)
	fmt.Fprintf(out, "  vs %s baseline (nDCG delta): %+.4f\n", opts.baseline, result.BaselineComparison)
	return nil
}

// loadJudgments reads a JSON map of document id to relevance grade.
func loadJudgments(path string) (map[string]int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read judgments file: %w", err)
	}
	var judgments map[string]int
	if err := json.Unmarshal(data, &judgments); err != nil {
		return nil, fmt.Errorf("parse judgments file %s: %w", path, err)
	}
	if len(judgments) == 0 {
		return nil, fmt.Errorf("judgments file %s is empty", path)
	}
	return judgments, nil
}

func variantIDs(cmp *search.Comparison, name string) []string {
	for _, v := range cmp.Variants {
		if v.Method != name {
			continue
		}
		ids := make([]string, len(v.Candidates))
		for i, c := range v.Candidates {
			ids[i] = c.DocID
		}
		return ids
	}
	return nil
}
