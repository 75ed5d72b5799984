package search

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/shelfsearch/shelfsearch/internal/backend"
)

// metadataBatchSize is the number of ids resolved per store round trip.
const metadataBatchSize = 64

// FacetAggregator computes per-dimension value counts over the fused
// candidate pool. Counts cover the whole pool, not the returned page, so
// facet totals stay invariant across pagination.
type FacetAggregator struct {
	store backend.MetadataStore
	pool  *ants.Pool
}

// NewFacetAggregator creates an aggregator resolving metadata through store.
// workers bounds concurrent metadata batches; <=0 falls back to 4.
func NewFacetAggregator(store backend.MetadataStore, workers int) (*FacetAggregator, error) {
	if workers <= 0 {
		workers = 4
	}
	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, fmt.Errorf("create metadata worker pool: %w", err)
	}
	return &FacetAggregator{store: store, pool: pool}, nil
}

// Resolve batch-fetches metadata for all ids, fanning batches out over the
// worker pool. Ids the store does not know stay absent from the result map.
func (a *FacetAggregator) Resolve(ctx context.Context, ids []string) (map[string]*backend.DocumentMeta, error) {
	resolved := make(map[string]*backend.DocumentMeta, len(ids))
	if len(ids) == 0 {
		return resolved, nil
	}

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		firstErr error
	)

	for start := 0; start < len(ids); start += metadataBatchSize {
		end := start + metadataBatchSize
		if end > len(ids) {
			end = len(ids)
		}
		batch := ids[start:end]

		wg.Add(1)
		submit := func() {
			defer wg.Done()
			docs, err := a.store.GetDocuments(ctx, batch)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			for _, doc := range docs {
				resolved[doc.ID] = doc
			}
		}
		if err := a.pool.Submit(submit); err != nil {
			// Pool saturated or released; resolve inline.
			submit()
		}
	}

	wg.Wait()

	if firstErr != nil {
		return nil, fmt.Errorf("resolve metadata: %w", firstErr)
	}
	return resolved, nil
}

// Aggregate counts facet values per dimension over the candidate pool.
// Documents with missing metadata for a dimension land in the "unknown"
// bucket. Multi-valued dimensions (subject) add one count per value per
// document.
func (a *FacetAggregator) Aggregate(
	ids []string,
	resolved map[string]*backend.DocumentMeta,
	dimensions []string,
) map[string][]FacetCount {
	if len(dimensions) == 0 {
		dimensions = DefaultFacetDimensions()
	}

	counts := make(map[string]map[string]int, len(dimensions))
	for _, dim := range dimensions {
		counts[dim] = make(map[string]int)
	}

	for _, id := range ids {
		meta := resolved[id]
		for _, dim := range dimensions {
			for _, value := range facetValues(meta, dim) {
				counts[dim][value]++
			}
		}
	}

	out := make(map[string][]FacetCount, len(dimensions))
	for dim, byValue := range counts {
		buckets := make([]FacetCount, 0, len(byValue))
		for value, count := range byValue {
			buckets = append(buckets, FacetCount{Value: value, Count: count})
		}
		sort.Slice(buckets, func(i, j int) bool {
			if buckets[i].Count != buckets[j].Count {
				return buckets[i].Count > buckets[j].Count
			}
			return buckets[i].Value < buckets[j].Value
		})
		out[dim] = buckets
	}
	return out
}

// facetValues extracts the counted values for one dimension of one document.
func facetValues(meta *backend.DocumentMeta, dimension string) []string {
	if meta == nil {
		return []string{FacetUnknownBucket}
	}

	single := func(v string) []string {
		if v == "" {
			return []string{FacetUnknownBucket}
		}
		return []string{v}
	}

	switch dimension {
	case FacetClassification:
		return single(meta.ClassificationCode)
	case FacetContentType:
		return single(meta.ContentType)
	case FacetLanguage:
		return single(meta.Language)
	case FacetReadStatus:
		return single(meta.ReadStatus)
	case FacetSubject:
		if len(meta.Subjects) == 0 {
			return []string{FacetUnknownBucket}
		}
		return meta.Subjects
	}
	return nil
}

// Close releases the worker pool.
func (a *FacetAggregator) Close() {
	a.pool.Release()
}
