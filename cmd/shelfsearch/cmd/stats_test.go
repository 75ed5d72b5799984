package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfsearch/shelfsearch/internal/search"
)

func TestSearchRecordsTelemetry(t *testing.T) {
	corpus := writeTestCorpus(t)
	dbPath := filepath.Join(t.TempDir(), "telemetry.db")

	_, err := runCommand(t, "search", "whale", "--corpus", corpus, "--telemetry-db", dbPath)
	require.NoError(t, err)

	out, err := runCommand(t, "stats", "--db", dbPath, "--format", "json")
	require.NoError(t, err)

	var stats struct {
		LatencyCounts map[string]int64 `json:"latency_counts"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &stats))

	var total int64
	for _, count := range stats.LatencyCounts {
		total += count
	}
	assert.Equal(t, int64(1), total)
}

func TestStatsZeroResultQueries(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "telemetry.db")

	recorder, cleanup, err := openRecorder(dbPath)
	require.NoError(t, err)
	recorder.OnSearchCompleted(search.Diagnostics{RequestID: "r1", Query: "ghost ship", Total: 0})
	recorder.OnSearchCompleted(search.Diagnostics{RequestID: "r2", Query: "white whale", Total: 2})
	cleanup()

	out, err := runCommand(t, "stats", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "ghost ship")
	assert.NotContains(t, out, "white whale")
}

func TestStatsAccumulatesAcrossSearches(t *testing.T) {
	corpus := writeTestCorpus(t)
	dbPath := filepath.Join(t.TempDir(), "telemetry.db")

	for _, query := range []string{"whale", "cathedral", "biology"} {
		_, err := runCommand(t, "search", query, "--corpus", corpus, "--telemetry-db", dbPath)
		require.NoError(t, err)
	}

	out, err := runCommand(t, "stats", "--db", dbPath, "--format", "json")
	require.NoError(t, err)

	var stats statsOutput
	require.NoError(t, json.Unmarshal([]byte(out), &stats))

	var total int64
	for _, count := range stats.LatencyCounts {
		total += count
	}
	assert.Equal(t, int64(3), total)
}

func TestStatsMissingDatabase(t *testing.T) {
	_, err := runCommand(t, "stats", "--db", filepath.Join(t.TempDir(), "nope.db"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no telemetry recorded")
}

func TestSearchWritesMetricsFile(t *testing.T) {
	corpus := writeTestCorpus(t)
	tmp := t.TempDir()
	metricsPath := filepath.Join(tmp, "metrics.prom")

	_, err := runCommand(t, "search", "whale", "--corpus", corpus,
		"--telemetry-db", filepath.Join(tmp, "telemetry.db"),
		"--metrics-file", metricsPath)
	require.NoError(t, err)

	data, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "shelfsearch_searches_total")
	assert.Contains(t, string(data), "shelfsearch_search_duration_ms")
	assert.Contains(t, string(data), "shelfsearch_method_weight")
}

func TestMultiObserverFansOut(t *testing.T) {
	a := &countingObserver{}
	b := &countingObserver{}
	m := multiObserver{a, b}

	m.OnSearchCompleted(search.Diagnostics{RequestID: "r1"})
	m.OnSearchCompleted(search.Diagnostics{RequestID: "r2"})

	assert.Equal(t, 2, a.calls)
	assert.Equal(t, 2, b.calls)
}

type countingObserver struct{ calls int }

func (o *countingObserver) OnSearchCompleted(search.Diagnostics) { o.calls++ }
