package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shelfsearch/shelfsearch/internal/config"
)

type compareOptions struct {
	corpus string
	limit  int
	format string
}

func newCompareCmd() *cobra.Command {
	var opts compareOptions

	cmd := &cobra.Command{
		Use:   "compare <query>",
		Short: "Run each retrieval method and fusion variant side by side",
		Long: `Run the lexical, dense, and sparse retrievers independently, plus the
static and adaptive fusion variants, and show all rankings side by side.

Examples:
  shelfsearch compare "gothic architecture" --corpus library.json
  shelfsearch compare "ISBN 9780441013593" --corpus library.json --limit 5`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return runCompare(cmd.Context(), cmd, query, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.corpus, "corpus", "c", "", "Path to JSON corpus file (required)")
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 10, "Results per variant")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")
	_ = cmd.MarkFlagRequired("corpus")

	return cmd
}

func runCompare(ctx context.Context, cmd *cobra.Command, query string, opts compareOptions) error {
	cfg, err := config.Load(".")
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

	cmp, err := engine.CompareMethods(ctx, query, opts.limit)
	if err != nil {
		return err
	}

	if opts.format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(cmp)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Method comparison for %q\n\n", cmp.Query)
	for _, v := range cmp.Variants {
		fmt.Fprintf(out, "%s (%.1fms)", v.Method, v.LatencyMS)
		if v.Err != "" {
			fmt.Fprintf(out, "  error: %s", v.Err)
		}
		fmt.Fprintln(out)
		for i, c := range v.Candidates {
			fmt.Fprintf(out, "  %2d. %-20s %.5f\n", i+1, c.DocID, c.Score)
		}
		if len(v.Candidates) == 0 {
			fmt.Fprintln(out, "  (no results)")
		}
		fmt.Fprintln(out)
	}
	return nil
}
