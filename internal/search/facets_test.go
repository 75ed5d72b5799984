package search

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfsearch/shelfsearch/internal/backend"
)

// memMetaStore is an in-memory MetadataStore for tests.
type memMetaStore struct {
	docs map[string]*backend.DocumentMeta
	err  error
}

func (s *memMetaStore) GetDocuments(_ context.Context, ids []string) ([]*backend.DocumentMeta, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([]*backend.DocumentMeta, 0, len(ids))
	for _, id := range ids {
		if doc, ok := s.docs[id]; ok {
			out = append(out, doc)
		}
	}
	return out, nil
}

func (s *memMetaStore) SaveDocuments(_ context.Context, docs []*backend.DocumentMeta) error {
	for _, doc := range docs {
		s.docs[doc.ID] = doc
	}
	return nil
}

func (s *memMetaStore) Close() error { return nil }

var _ backend.MetadataStore = (*memMetaStore)(nil)

func testMetaStore() *memMetaStore {
	return &memMetaStore{docs: map[string]*backend.DocumentMeta{
		"d1": {
			ID: "d1", ClassificationCode: "005", ContentType: "book",
			Language: "en", ReadStatus: "read",
			Subjects: []string{"programming", "compilers"},
			Snippet:  "a book about compilers",
		},
		"d2": {
			ID: "d2", ClassificationCode: "005", ContentType: "article",
			Language: "en", ReadStatus: "unread",
			Subjects: []string{"programming"},
			Snippet:  "an article about type systems",
		},
		"d3": {
			ID: "d3", ClassificationCode: "820", ContentType: "book",
			Language: "fr", ReadStatus: "",
			Subjects: nil,
			Snippet:  "un roman",
		},
	}}
}

func newTestAggregator(t *testing.T, store backend.MetadataStore) *FacetAggregator {
	t.Helper()
	agg, err := NewFacetAggregator(store, 2)
	require.NoError(t, err)
	t.Cleanup(agg.Close)
	return agg
}

func TestResolveFetchesAllKnownIDs(t *testing.T) {
	agg := newTestAggregator(t, testMetaStore())

	resolved, err := agg.Resolve(context.Background(), []string{"d1", "d2", "missing", "d3"})
	require.NoError(t, err)
	assert.Len(t, resolved, 3)
	assert.Contains(t, resolved, "d1")
	assert.NotContains(t, resolved, "missing")
}

func TestResolveEmptyPool(t *testing.T) {
	agg := newTestAggregator(t, testMetaStore())
	resolved, err := agg.Resolve(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, resolved)
}

func TestResolvePropagatesStoreError(t *testing.T) {
	agg := newTestAggregator(t, &memMetaStore{err: errors.New("db locked")})
	_, err := agg.Resolve(context.Background(), []string{"d1"})
	assert.Error(t, err)
}

func TestAggregateCountsCoverWholePool(t *testing.T) {
	agg := newTestAggregator(t, testMetaStore())
	ids := []string{"d1", "d2", "d3", "ghost"}

	resolved, err := agg.Resolve(context.Background(), ids)
	require.NoError(t, err)

	facets := agg.Aggregate(ids, resolved, nil)

	// Every single-valued dimension accounts for every pooled document,
	// unknowns included.
	for _, dim := range []string{FacetClassification, FacetContentType, FacetLanguage, FacetReadStatus} {
		total := 0
		for _, bucket := range facets[dim] {
			total += bucket.Count
		}
		assert.Equal(t, len(ids), total, "dimension %s", dim)
	}
}

func TestAggregateUnknownBucket(t *testing.T) {
	agg := newTestAggregator(t, testMetaStore())
	ids := []string{"d1", "d3", "ghost"}

	resolved, err := agg.Resolve(context.Background(), ids)
	require.NoError(t, err)

	facets := agg.Aggregate(ids, resolved, []string{FacetReadStatus})

	// d3 has an empty read status and ghost has no metadata at all; both land
	// in the unknown bucket.
	byValue := map[string]int{}
	for _, bucket := range facets[FacetReadStatus] {
		byValue[bucket.Value] = bucket.Count
	}
	assert.Equal(t, 2, byValue[FacetUnknownBucket])
	assert.Equal(t, 1, byValue["read"])
}

func TestAggregateSubjectsCountPerValue(t *testing.T) {
	agg := newTestAggregator(t, testMetaStore())
	ids := []string{"d1", "d2"}

	resolved, err := agg.Resolve(context.Background(), ids)
	require.NoError(t, err)

	facets := agg.Aggregate(ids, resolved, []string{FacetSubject})

	byValue := map[string]int{}
	for _, bucket := range facets[FacetSubject] {
		byValue[bucket.Value] = bucket.Count
	}
	assert.Equal(t, 2, byValue["programming"])
	assert.Equal(t, 1, byValue["compilers"])
}

func TestAggregateBucketOrdering(t *testing.T) {
	agg := newTestAggregator(t, testMetaStore())
	ids := []string{"d1", "d2", "d3"}

	resolved, err := agg.Resolve(context.Background(), ids)
	require.NoError(t, err)

	facets := agg.Aggregate(ids, resolved, []string{FacetClassification})
	buckets := facets[FacetClassification]
	require.Len(t, buckets, 2)
	// Count descending, then value ascending.
	assert.Equal(t, FacetCount{Value: "005", Count: 2}, buckets[0])
	assert.Equal(t, FacetCount{Value: "820", Count: 1}, buckets[1])
}

func TestAggregateLargePoolUsesBatches(t *testing.T) {
	store := &memMetaStore{docs: map[string]*backend.DocumentMeta{}}
	ids := make([]string, 0, metadataBatchSize*3+5)
	for i := 0; i < cap(ids); i++ {
		id := "doc-" + strconv.Itoa(i)
		ids = append(ids, id)
		store.docs[id] = &backend.DocumentMeta{ID: id, Language: "en"}
	}

	agg := newTestAggregator(t, store)
	resolved, err := agg.Resolve(context.Background(), ids)
	require.NoError(t, err)
	assert.Len(t, resolved, len(ids))
}
