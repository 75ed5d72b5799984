package backend

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
)

// BleveLexicalIndex wraps Bleve v2 for BM25-style keyword search.
// The reference implementation keeps the index in memory; production
// deployments point the engine at an external full-text service instead.
type BleveLexicalIndex struct {
	mu     sync.RWMutex
	index  bleve.Index
	closed bool
}

// bleveDocument is the document structure for Bleve indexing.
type bleveDocument struct {
	Content string `json:"content"`
}

// NewBleveLexicalIndex creates an in-memory lexical index.
func NewBleveLexicalIndex() (*BleveLexicalIndex, error) {
	idx, err := bleve.NewMemOnly(createIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("create lexical index: %w", err)
	}
	return &BleveLexicalIndex{index: idx}, nil
}

// createIndexMapping builds the Bleve index mapping with the standard analyzer.
// Library text is natural language; the standard analyzer's tokenization and
// lowercasing are a good fit.
func createIndexMapping() *mapping.IndexMappingImpl {
	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultAnalyzer = standard.Name
	return indexMapping
}

// Index adds documents to the index.
func (b *BleveLexicalIndex) Index(ctx context.Context, docs []*Document) error {
	if len(docs) == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return fmt.Errorf("lexical index is closed")
	}

	batch := b.index.NewBatch()
	for _, doc := range docs {
		if err := batch.Index(doc.ID, bleveDocument{Content: doc.Content}); err != nil {
			return fmt.Errorf("index document %s: %w", doc.ID, err)
		}
	}

	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("execute batch: %w", err)
	}

	return nil
}

// Search returns documents matching query, ordered by descending BM25 score.
func (b *BleveLexicalIndex) Search(ctx context.Context, query string, topN int) ([]Candidate, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, fmt.Errorf("lexical index is closed")
	}

	if strings.TrimSpace(query) == "" {
		return []Candidate{}, nil
	}

	matchQuery := bleve.NewMatchQuery(query)
	matchQuery.SetField("content")

	searchRequest := bleve.NewSearchRequest(matchQuery)
	searchRequest.Size = topN

	result, err := b.index.SearchInContext(ctx, searchRequest)
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}

	candidates := make([]Candidate, 0, len(result.Hits))
	for _, hit := range result.Hits {
		candidates = append(candidates, Candidate{
			DocID: hit.ID,
			Score: hit.Score,
		})
	}

	return candidates, nil
}

// Close releases the underlying Bleve index.
func (b *BleveLexicalIndex) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	return b.index.Close()
}

var _ LexicalIndex = (*BleveLexicalIndex)(nil)
