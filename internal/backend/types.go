// Package backend defines the external collaborator interfaces the fusion
// engine retrieves from, plus reference implementations used by tests and the
// demo CLI: a Bleve lexical index, an in-memory HNSW dense index, an in-memory
// learned-sparse impact index, and a SQLite metadata store.
package backend

import (
	"context"
)

// Candidate is a single ranked hit from one retrieval backend.
// Rank is implied by position in the returned slice (1-based).
type Candidate struct {
	DocID string
	Score float64
}

// Document is the unit of content handed to the reference indexes.
type Document struct {
	ID      string
	Content string
}

// DocumentMeta is the metadata resolved for facet aggregation and snippets.
// Zero-valued fields are grouped under the "unknown" facet bucket.
type DocumentMeta struct {
	ID                 string
	ClassificationCode string
	ContentType        string
	Language           string
	ReadStatus         string
	Subjects           []string
	Snippet            string
}

// LexicalIndex is a keyword/full-text retrieval backend (BM25-style).
type LexicalIndex interface {
	// Search returns candidates ordered by descending lexical score.
	Search(ctx context.Context, query string, topN int) ([]Candidate, error)
	Close() error
}

// DenseIndex is a nearest-neighbor retrieval backend over embeddings.
type DenseIndex interface {
	// Search returns candidates ordered by descending similarity.
	Search(ctx context.Context, embedding []float32, topN int) ([]Candidate, error)
	Close() error
}

// SparseIndex retrieves by learned term-importance vectors.
type SparseIndex interface {
	// Search returns candidates ordered by descending impact score.
	Search(ctx context.Context, termWeights map[string]float64, topN int) ([]Candidate, error)
	Close() error
}

// Embedder turns query text into a dense embedding.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}

// SparseEncoder turns query text into a learned term-weight vector.
type SparseEncoder interface {
	Encode(ctx context.Context, text string) (map[string]float64, error)
}

// CrossEncoder scores a (query, document) pair jointly.
// Latency is outside the engine's control; the reranker enforces its own
// wall-clock budget around calls to Score.
type CrossEncoder interface {
	Score(ctx context.Context, query, documentText string) (float64, error)
}

// MetadataStore resolves document metadata for facets and snippets.
type MetadataStore interface {
	// GetDocuments batch-resolves metadata. Missing ids are omitted from the
	// result, not errors.
	GetDocuments(ctx context.Context, ids []string) ([]*DocumentMeta, error)
	SaveDocuments(ctx context.Context, docs []*DocumentMeta) error
	Close() error
}
