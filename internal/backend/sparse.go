package backend

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemSparseIndex implements SparseIndex over an in-memory inverted impact
// index. Documents are stored as term -> weight postings; queries score by
// dot product between query and document term weights.
type MemSparseIndex struct {
	mu sync.RWMutex

	// postings maps term -> docID -> stored impact weight.
	postings map[string]map[string]float64
	docs     map[string]struct{}
	closed   bool
}

// NewMemSparseIndex creates an empty sparse index.
func NewMemSparseIndex() *MemSparseIndex {
	return &MemSparseIndex{
		postings: make(map[string]map[string]float64),
		docs:     make(map[string]struct{}),
	}
}

// Add stores a document's term-weight vector, replacing any previous vector
// for the same id.
func (s *MemSparseIndex) Add(ctx context.Context, docID string, termWeights map[string]float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("sparse index is closed")
	}

	if _, exists := s.docs[docID]; exists {
		for _, byDoc := range s.postings {
			delete(byDoc, docID)
		}
	}
	s.docs[docID] = struct{}{}

	for term, weight := range termWeights {
		if weight <= 0 {
			continue
		}
		byDoc, ok := s.postings[term]
		if !ok {
			byDoc = make(map[string]float64)
			s.postings[term] = byDoc
		}
		byDoc[docID] = weight
	}

	return nil
}

// Search scores documents by dot product against the query term weights and
// returns the topN, ordered by score descending with doc id ascending on ties
// so repeated searches are reproducible.
func (s *MemSparseIndex) Search(ctx context.Context, termWeights map[string]float64, topN int) ([]Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("sparse index is closed")
	}

	if len(termWeights) == 0 {
		return []Candidate{}, nil
	}

	scores := make(map[string]float64)
	for term, qw := range termWeights {
		if qw <= 0 {
			continue
		}
		for docID, dw := range s.postings[term] {
			scores[docID] += qw * dw
		}
	}

	candidates := make([]Candidate, 0, len(scores))
	for docID, score := range scores {
		candidates = append(candidates, Candidate{DocID: docID, Score: score})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].DocID < candidates[j].DocID
	})

	if topN > 0 && len(candidates) > topN {
		candidates = candidates[:topN]
	}

	return candidates, nil
}

// Count returns the number of indexed documents.
func (s *MemSparseIndex) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

// Close releases the index.
func (s *MemSparseIndex) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

var _ SparseIndex = (*MemSparseIndex)(nil)
