// Package obs exports search diagnostics as Prometheus metrics. The Observer
// plugs into the engine alongside (or instead of) the telemetry recorder.
package obs

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/shelfsearch/shelfsearch/internal/search"
)

// Observer records per-search Prometheus metrics. Create one per registry;
// all methods are safe for concurrent use.
type Observer struct {
	searches        *prometheus.CounterVec
	zeroResults     prometheus.Counter
	degradedMethods *prometheus.CounterVec
	searchDuration  prometheus.Histogram
	stageDuration   *prometheus.HistogramVec
	methodWeight    *prometheus.GaugeVec
	poolSize        prometheus.Histogram
}

// NewObserver registers the search metrics on reg and returns the observer.
func NewObserver(reg prometheus.Registerer) *Observer {
	factory := promauto.With(reg)
	return &Observer{
		searches: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "shelfsearch_searches_total",
			Help: "Total searches by rerank outcome.",
		}, []string{"reranking"}),
		zeroResults: factory.NewCounter(prometheus.CounterOpts{
			Name: "shelfsearch_zero_result_searches_total",
			Help: "Total searches that returned no documents.",
		}),
		degradedMethods: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "shelfsearch_degraded_methods_total",
			Help: "Count of retrieval methods that timed out or failed.",
		}, []string{"method"}),
		searchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "shelfsearch_search_duration_ms",
			Help:    "Histogram of end-to-end search latency in ms.",
			Buckets: prometheus.ExponentialBuckets(5, 2, 8),
		}),
		stageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "shelfsearch_stage_duration_ms",
			Help:    "Histogram of per-stage latency in ms.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}, []string{"stage"}),
		methodWeight: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "shelfsearch_method_weight",
			Help: "Fusion weight used for each method on the most recent search.",
		}, []string{"method"}),
		poolSize: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "shelfsearch_fused_pool_size",
			Help:    "Histogram of fused candidate pool sizes.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
	}
}

// OnSearchCompleted implements search.Observer.
func (o *Observer) OnSearchCompleted(d search.Diagnostics) {
	o.searches.WithLabelValues(string(d.Reranking)).Inc()
	o.searchDuration.Observe(float64(d.Latency.Milliseconds()))
	o.poolSize.Observe(float64(d.Total))

	if d.Total == 0 {
		o.zeroResults.Inc()
	}
	for _, m := range d.DegradedMethods {
		o.degradedMethods.WithLabelValues(string(m)).Inc()
	}

	o.stageDuration.WithLabelValues("retrieval").Observe(d.StageLatency.RetrievalMS)
	o.stageDuration.WithLabelValues("fusion").Observe(d.StageLatency.FusionMS)
	o.stageDuration.WithLabelValues("rerank").Observe(d.StageLatency.RerankMS)
	o.stageDuration.WithLabelValues("facets").Observe(d.StageLatency.FacetsMS)

	for _, m := range search.Methods() {
		o.methodWeight.WithLabelValues(string(m)).Set(d.WeightsUsed.For(m))
	}
}

var _ search.Observer = (*Observer)(nil)
