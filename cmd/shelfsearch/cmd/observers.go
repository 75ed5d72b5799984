package cmd

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/shelfsearch/shelfsearch/internal/search"
	"github.com/shelfsearch/shelfsearch/internal/telemetry"
)

// multiObserver fans one search's diagnostics out to several observers.
type multiObserver []search.Observer

func (m multiObserver) OnSearchCompleted(d search.Diagnostics) {
	for _, o := range m {
		o.OnSearchCompleted(d)
	}
}

// defaultTelemetryPath returns the per-user telemetry database location,
// next to the log directory under ~/.shelfsearch.
func defaultTelemetryPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".shelfsearch", "telemetry.db"), nil
}

// openRecorder opens (or creates) the persistent telemetry store at path and
// wraps it in a recorder. The returned cleanup rolls the counters up into the
// store and closes it.
func openRecorder(path string) (*telemetry.Recorder, func(), error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create telemetry directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, nil, fmt.Errorf("open telemetry database: %w", err)
	}
	store, err := telemetry.NewSQLiteStore(db)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	cfg := telemetry.DefaultRecorderConfig()
	// One-shot CLI run: no background flush, Close performs the rollup.
	cfg.FlushInterval = 0
	recorder := telemetry.NewRecorder(store, cfg)

	cleanup := func() {
		_ = recorder.Close()
		_ = store.Close()
	}
	return recorder, cleanup, nil
}

// setupTelemetry opens the telemetry recorder, warning rather than failing on
// errors: telemetry must never block a search. path "" uses the default
// per-user location.
func setupTelemetry(cmd *cobra.Command, path string) (*telemetry.Recorder, func()) {
	var err error
	if path == "" {
		path, err = defaultTelemetryPath()
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: telemetry disabled: %v\n", err)
			return nil, nil
		}
	}
	recorder, cleanup, err := openRecorder(path)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: telemetry disabled: %v\n", err)
		return nil, nil
	}
	return recorder, cleanup
}

var _ search.Observer = (multiObserver)(nil)
