package backend

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/coder/hnsw"
)

// HNSWDenseIndex implements DenseIndex using the coder/hnsw pure Go HNSW
// graph with cosine similarity. In-memory only; the production dense backend
// is an external nearest-neighbor service.
type HNSWDenseIndex struct {
	mu         sync.RWMutex
	graph      *hnsw.Graph[uint64]
	dimensions int

	// ID mapping (string <-> uint64)
	idMap   map[string]uint64
	keyMap  map[uint64]string
	nextKey uint64

	closed bool
}

// NewHNSWDenseIndex creates a dense index for vectors of the given dimension.
func NewHNSWDenseIndex(dimensions int) (*HNSWDenseIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive, got %d", dimensions)
	}

	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = 16
	graph.EfSearch = 20
	graph.Ml = 0.25

	return &HNSWDenseIndex{
		graph:      graph,
		dimensions: dimensions,
		idMap:      make(map[string]uint64),
		keyMap:     make(map[uint64]string),
	}, nil
}

// Add inserts vectors with their IDs. Existing IDs are lazily replaced: the
// old graph node is orphaned rather than deleted, which sidesteps coder/hnsw
// issues with removing the last node.
func (s *HNSWDenseIndex) Add(ctx context.Context, ids []string, vectors [][]float32) error {
	if len(ids) == 0 {
		return nil
	}
	if len(ids) != len(vectors) {
		return fmt.Errorf("ids and vectors length mismatch: %d vs %d", len(ids), len(vectors))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("dense index is closed")
	}

	for _, v := range vectors {
		if len(v) != s.dimensions {
			return fmt.Errorf("vector dimension mismatch: expected %d, got %d", s.dimensions, len(v))
		}
	}

	for i, id := range ids {
		if existingKey, exists := s.idMap[id]; exists {
			delete(s.keyMap, existingKey)
			delete(s.idMap, id)
		}

		key := s.nextKey
		s.nextKey++

		vec := make([]float32, len(vectors[i]))
		copy(vec, vectors[i])
		normalizeVectorInPlace(vec)

		s.graph.Add(hnsw.MakeNode(key, vec))
		s.idMap[id] = key
		s.keyMap[key] = id
	}

	return nil
}

// Search finds the topN nearest neighbors, ordered by descending similarity.
func (s *HNSWDenseIndex) Search(ctx context.Context, embedding []float32, topN int) ([]Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("dense index is closed")
	}

	if len(embedding) != s.dimensions {
		return nil, fmt.Errorf("query dimension mismatch: expected %d, got %d", s.dimensions, len(embedding))
	}

	if s.graph.Len() == 0 {
		return []Candidate{}, nil
	}

	query := make([]float32, len(embedding))
	copy(query, embedding)
	normalizeVectorInPlace(query)

	nodes := s.graph.Search(query, topN)

	candidates := make([]Candidate, 0, len(nodes))
	for _, node := range nodes {
		id, exists := s.keyMap[node.Key]
		if !exists {
			// Orphaned by a lazy replace.
			continue
		}

		distance := s.graph.Distance(query, node.Value)
		candidates = append(candidates, Candidate{
			DocID: id,
			Score: 1.0 - float64(distance), // cosine distance -> similarity
		})
	}

	return candidates, nil
}

// Count returns the number of live vectors in the index.
func (s *HNSWDenseIndex) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.idMap)
}

// Close releases the index.
func (s *HNSWDenseIndex) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// normalizeVectorInPlace scales a vector to unit length.
func normalizeVectorInPlace(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	norm := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= norm
	}
}

var _ DenseIndex = (*HNSWDenseIndex)(nil)
