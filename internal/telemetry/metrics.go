// Package telemetry aggregates per-search diagnostics into in-memory counters
// and an optional SQLite-backed daily rollup. The Recorder plugs into the
// engine as its observer; recording is lock-cheap and never blocks a search.
package telemetry

import (
	"sync"
	"time"

	"github.com/shelfsearch/shelfsearch/internal/search"
)

// LatencyBucket is a coarse end-to-end latency class.
type LatencyBucket string

const (
	LatencyUnder50ms  LatencyBucket = "lt_50ms"
	LatencyUnder200ms LatencyBucket = "lt_200ms"
	LatencyUnder1s    LatencyBucket = "lt_1s"
	LatencyOver1s     LatencyBucket = "gte_1s"
)

// LatencyToBucket maps a duration to its bucket.
func LatencyToBucket(d time.Duration) LatencyBucket {
	switch {
	case d < 50*time.Millisecond:
		return LatencyUnder50ms
	case d < 200*time.Millisecond:
		return LatencyUnder200ms
	case d < time.Second:
		return LatencyUnder1s
	default:
		return LatencyOver1s
	}
}

// SearchEvent is the retained record of one completed search.
type SearchEvent struct {
	RequestID   string
	Query       string
	Total       int
	Latency     time.Duration
	WeightsUsed search.MethodWeights
	Degraded    []search.Method
	Reranking   search.RerankStatus
	Timestamp   time.Time
}

// IsZeroResult reports whether the search found nothing.
func (e SearchEvent) IsZeroResult() bool {
	return e.Total == 0
}

// CircularBuffer is a fixed-capacity ring of recent items.
type CircularBuffer[T any] struct {
	items []T
	head  int
	size  int
}

// NewCircularBuffer creates a buffer holding at most capacity items.
func NewCircularBuffer[T any](capacity int) *CircularBuffer[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &CircularBuffer[T]{items: make([]T, capacity)}
}

// Add appends an item, evicting the oldest when full.
func (b *CircularBuffer[T]) Add(item T) {
	b.items[b.head] = item
	b.head = (b.head + 1) % len(b.items)
	if b.size < len(b.items) {
		b.size++
	}
}

// Items returns the retained items, oldest first.
func (b *CircularBuffer[T]) Items() []T {
	out := make([]T, 0, b.size)
	start := b.head - b.size
	if start < 0 {
		start += len(b.items)
	}
	for i := 0; i < b.size; i++ {
		out = append(out, b.items[(start+i)%len(b.items)])
	}
	return out
}

// Size returns the number of retained items.
func (b *CircularBuffer[T]) Size() int {
	return b.size
}

// Snapshot is a point-in-time view of the aggregated counters.
type Snapshot struct {
	TotalSearches   int64
	ZeroResults     int64
	LatencyCounts   map[LatencyBucket]int64
	DegradedCounts  map[search.Method]int64
	RerankCounts    map[search.RerankStatus]int64
	RecentEvents    []SearchEvent
	ZeroResultTexts []string
}

// ZeroResultPercentage returns the share of searches that found nothing.
func (s *Snapshot) ZeroResultPercentage() float64 {
	if s.TotalSearches == 0 {
		return 0
	}
	return float64(s.ZeroResults) / float64(s.TotalSearches) * 100
}

// RecorderConfig tunes retention and persistence.
type RecorderConfig struct {
	// BufferSize bounds retained recent events (default: 1000).
	BufferSize int

	// ZeroResultLimit bounds retained zero-result query texts (default: 100).
	ZeroResultLimit int

	// FlushInterval is how often counters roll up to the store. Zero disables
	// the background flush; Flush can still be called directly.
	FlushInterval time.Duration
}

// DefaultRecorderConfig returns production retention defaults.
func DefaultRecorderConfig() RecorderConfig {
	return RecorderConfig{
		BufferSize:      1000,
		ZeroResultLimit: 100,
		FlushInterval:   5 * time.Minute,
	}
}

// Recorder aggregates search diagnostics. It implements search.Observer.
type Recorder struct {
	mu sync.Mutex

	totalSearches  int64
	zeroResults    int64
	latencyCounts  map[LatencyBucket]int64
	degradedCounts map[search.Method]int64
	rerankCounts   map[search.RerankStatus]int64
	events         *CircularBuffer[SearchEvent]
	zeroQueries    *CircularBuffer[string]

	// Flushed watermarks, so repeated flushes write only deltas and multiple
	// recorder lifetimes accumulate in the store instead of clobbering it.
	flushedLatency     map[LatencyBucket]int64
	flushedDegraded    map[search.Method]int64
	flushedZeroResults int64

	store Store
	cfg   RecorderConfig

	stop chan struct{}
	done chan struct{}
}

// NewRecorder creates a recorder. store may be nil for in-memory-only use.
func NewRecorder(store Store, cfg RecorderConfig) *Recorder {
	if cfg.BufferSize < 1 {
		cfg.BufferSize = DefaultRecorderConfig().BufferSize
	}
	if cfg.ZeroResultLimit < 1 {
		cfg.ZeroResultLimit = DefaultRecorderConfig().ZeroResultLimit
	}

	r := &Recorder{
		latencyCounts:   make(map[LatencyBucket]int64),
		degradedCounts:  make(map[search.Method]int64),
		rerankCounts:    make(map[search.RerankStatus]int64),
		events:          NewCircularBuffer[SearchEvent](cfg.BufferSize),
		zeroQueries:     NewCircularBuffer[string](cfg.ZeroResultLimit),
		flushedLatency:  make(map[LatencyBucket]int64),
		flushedDegraded: make(map[search.Method]int64),
		store:           store,
		cfg:             cfg,
		stop:            make(chan struct{}),
		done:            make(chan struct{}),
	}

	if store != nil && cfg.FlushInterval > 0 {
		go r.flushLoop()
	} else {
		close(r.done)
	}
	return r
}

// OnSearchCompleted records one search's diagnostics.
func (r *Recorder) OnSearchCompleted(d search.Diagnostics) {
	event := SearchEvent{
		RequestID:   d.RequestID,
		Query:       d.Query,
		Total:       d.Total,
		Latency:     d.Latency,
		WeightsUsed: d.WeightsUsed,
		Degraded:    d.DegradedMethods,
		Reranking:   d.Reranking,
		Timestamp:   time.Now(),
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.totalSearches++
	r.latencyCounts[LatencyToBucket(d.Latency)]++
	r.rerankCounts[d.Reranking]++
	for _, m := range d.DegradedMethods {
		r.degradedCounts[m]++
	}
	if event.IsZeroResult() {
		r.zeroResults++
		r.zeroQueries.Add(d.Query)
	}
	r.events.Add(event)
}

// Snapshot returns a copy of the current counters.
func (r *Recorder) Snapshot() *Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := &Snapshot{
		TotalSearches:   r.totalSearches,
		ZeroResults:     r.zeroResults,
		LatencyCounts:   make(map[LatencyBucket]int64, len(r.latencyCounts)),
		DegradedCounts:  make(map[search.Method]int64, len(r.degradedCounts)),
		RerankCounts:    make(map[search.RerankStatus]int64, len(r.rerankCounts)),
		RecentEvents:    r.events.Items(),
		ZeroResultTexts: r.zeroQueries.Items(),
	}
	for k, v := range r.latencyCounts {
		snap.LatencyCounts[k] = v
	}
	for k, v := range r.degradedCounts {
		snap.DegradedCounts[k] = v
	}
	for k, v := range r.rerankCounts {
		snap.RerankCounts[k] = v
	}
	return snap
}

// Flush rolls everything recorded since the previous flush up to the store
// under today's date. The store accumulates, so short-lived recorders (one
// per CLI run) build up a daily history instead of overwriting each other.
// No-op without a store.
func (r *Recorder) Flush() error {
	if r.store == nil {
		return nil
	}

	r.mu.Lock()
	latencyDelta := make(map[LatencyBucket]int64)
	for bucket, count := range r.latencyCounts {
		if delta := count - r.flushedLatency[bucket]; delta > 0 {
			latencyDelta[bucket] = delta
			r.flushedLatency[bucket] = count
		}
	}
	degradedDelta := make(map[search.Method]int64)
	for method, count := range r.degradedCounts {
		if delta := count - r.flushedDegraded[method]; delta > 0 {
			degradedDelta[method] = delta
			r.flushedDegraded[method] = count
		}
	}
	var newZeroQueries []string
	if delta := r.zeroResults - r.flushedZeroResults; delta > 0 {
		texts := r.zeroQueries.Items()
		if delta < int64(len(texts)) {
			texts = texts[int64(len(texts))-delta:]
		}
		newZeroQueries = texts
		r.flushedZeroResults = r.zeroResults
	}
	r.mu.Unlock()

	date := time.Now().Format("2006-01-02")
	if len(latencyDelta) > 0 {
		if err := r.store.SaveLatencyCounts(date, latencyDelta); err != nil {
			return err
		}
	}
	if len(degradedDelta) > 0 {
		if err := r.store.SaveDegradedCounts(date, degradedDelta); err != nil {
			return err
		}
	}
	for _, q := range newZeroQueries {
		if err := r.store.AddZeroResultQuery(q, time.Now()); err != nil {
			return err
		}
	}
	return nil
}

func (r *Recorder) flushLoop() {
	defer close(r.done)
	ticker := time.NewTicker(r.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_ = r.Flush()
		case <-r.stop:
			return
		}
	}
}

// Close stops the background flush and performs a final rollup.
func (r *Recorder) Close() error {
	select {
	case <-r.stop:
	default:
		close(r.stop)
	}
	<-r.done
	return r.Flush()
}

var _ search.Observer = (*Recorder)(nil)
