package obs

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfsearch/shelfsearch/internal/search"
)

func TestObserverRecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	o := NewObserver(reg)

	o.OnSearchCompleted(search.Diagnostics{
		RequestID:       "r-1",
		Query:           "q",
		Total:           12,
		Latency:         80 * time.Millisecond,
		WeightsUsed:     search.MethodWeights{Lexical: 0.5, Dense: 0.0, Sparse: 0.5},
		DegradedMethods: []search.Method{search.MethodDense},
		Reranking:       search.RerankFull,
	})

	assert.Equal(t, 0.5, testutil.ToFloat64(o.methodWeight.WithLabelValues("lexical")))
	assert.Equal(t, 1.0, testutil.ToFloat64(o.degradedMethods.WithLabelValues("dense")))

	o.OnSearchCompleted(search.Diagnostics{
		RequestID:   "r-2",
		Query:       "nothing",
		Total:       0,
		Latency:     5 * time.Millisecond,
		WeightsUsed: search.DefaultMethodWeights(),
		Reranking:   search.RerankNone,
	})

	assert.Equal(t, 1.0, testutil.ToFloat64(o.searches.WithLabelValues(string(search.RerankFull))))
	assert.Equal(t, 1.0, testutil.ToFloat64(o.searches.WithLabelValues(string(search.RerankNone))))
	assert.Equal(t, 1.0, testutil.ToFloat64(o.zeroResults))

	// The second search overwrote the weight gauges.
	assert.Equal(t, 0.35, testutil.ToFloat64(o.methodWeight.WithLabelValues("lexical")))
}

func TestObserverRegistersOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NotPanics(t, func() { NewObserver(reg) })
	// A second observer on the same registry collides by design.
	assert.Panics(t, func() { NewObserver(reg) })
}
