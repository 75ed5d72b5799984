package cmd

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/shelfsearch/shelfsearch/internal/telemetry"
)

type statsOptions struct {
	db     string
	days   int
	format string
}

func newStatsCmd() *cobra.Command {
	var opts statsOptions

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show recorded search telemetry",
		Long: `Display telemetry rolled up from past searches: the end-to-end latency
distribution over the requested date range and recent queries that found
nothing.

Examples:
  shelfsearch stats
  shelfsearch stats --days 30 --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStats(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.db, "db", "", "Telemetry database path (default ~/.shelfsearch/telemetry.db)")
	cmd.Flags().IntVar(&opts.days, "days", 7, "Number of days to include")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")

	return cmd
}

// statsOutput is the JSON output shape of the stats command.
type statsOutput struct {
	Days              int                               `json:"days"`
	LatencyCounts     map[telemetry.LatencyBucket]int64 `json:"latency_counts"`
	ZeroResultQueries []string                          `json:"zero_result_queries"`
}

func runStats(cmd *cobra.Command, opts statsOptions) error {
	path := opts.db
	if path == "" {
		var err error
		path, err = defaultTelemetryPath()
		if err != nil {
			return err
		}
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("no telemetry recorded at %s\nRun 'shelfsearch search' first", path)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("open telemetry database: %w", err)
	}
	store, err := telemetry.NewSQLiteStore(db)
	if err != nil {
		_ = db.Close()
		return err
	}
	defer func() { _ = store.Close() }()

	if opts.days < 1 {
		opts.days = 1
	}
	now := time.Now()
	from := now.AddDate(0, 0, -(opts.days - 1)).Format("2006-01-02")
	to := now.Format("2006-01-02")

	latency, err := store.GetLatencyCounts(from, to)
	if err != nil {
		return err
	}
	zeroResults, err := store.GetZeroResultQueries(10)
	if err != nil {
		return err
	}

	out := statsOutput{
		Days:              opts.days,
		LatencyCounts:     latency,
		ZeroResultQueries: zeroResults,
	}

	if opts.format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Search telemetry (last %d days)\n\n", out.Days)

	fmt.Fprintln(w, "Latency distribution:")
	buckets := []telemetry.LatencyBucket{
		telemetry.LatencyUnder50ms,
		telemetry.LatencyUnder200ms,
		telemetry.LatencyUnder1s,
		telemetry.LatencyOver1s,
	}
	labels := map[telemetry.LatencyBucket]string{
		telemetry.LatencyUnder50ms:  "<50ms",
		telemetry.LatencyUnder200ms: "50-200ms",
		telemetry.LatencyUnder1s:    "200ms-1s",
		telemetry.LatencyOver1s:     ">=1s",
	}
	var total int64
	for _, b := range buckets {
		count := latency[b]
		total += count
		fmt.Fprintf(w, "  %-9s %d\n", labels[b], count)
	}
	fmt.Fprintf(w, "  total     %d\n\n", total)

	if len(zeroResults) > 0 {
		fmt.Fprintln(w, "Recent zero-result queries:")
		for _, q := range zeroResults {
			fmt.Fprintf(w, "  - %q\n", q)
		}
	} else {
		fmt.Fprintln(w, "Recent zero-result queries: (none)")
	}
	return nil
}
