// Package cmd provides the CLI commands for shelfsearch.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/shelfsearch/shelfsearch/internal/logging"
	"github.com/shelfsearch/shelfsearch/pkg/version"
)

var (
	debugMode      bool
	loggingCleanup func()
)

// NewRootCmd creates the root command for the shelfsearch CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shelfsearch",
		Short: "Hybrid search fusion and ranking engine",
		Long: `Shelfsearch answers text queries by fusing three retrieval signals
(lexical, dense semantic, sparse learned-term) with weighted Reciprocal
Rank Fusion, optionally refined by a cross-encoder reranker.

Point it at a JSON corpus file and search, compare retrieval methods
side by side, or score a ranking against relevance judgments.`,
		Version:       version.Short(),
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.SetVersionTemplate("shelfsearch version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.shelfsearch/logs/")
	cmd.PersistentPreRunE = setupLogging
	cmd.PersistentPostRun = func(*cobra.Command, []string) {
		if loggingCleanup != nil {
			loggingCleanup()
		}
	}

	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newCompareCmd())
	cmd.AddCommand(newEvaluateCmd())
	cmd.AddCommand(newStatsCmd())

	return cmd
}

func setupLogging(*cobra.Command, []string) error {
	cfg := logging.DefaultConfig()
	cfg.WriteToStderr = false
	if debugMode {
		cfg.Level = "debug"
	}
	logger, cleanup, err := logging.Setup(cfg)
	if err != nil {
		// Logging must never block the CLI.
		fmt.Fprintf(os.Stderr, "warning: logging disabled: %v\n", err)
		return nil
	}
	slog.SetDefault(logger)
	loggingCleanup = cleanup
	return nil
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
