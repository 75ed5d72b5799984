package backend

import (
	"context"
	"hash/fnv"
	"math"
	"regexp"
	"strings"
)

// StaticDimensions is the embedding width of the hash-based embedder.
const StaticDimensions = 256

// encodeTokenRegex matches alphanumeric sequences.
var encodeTokenRegex = regexp.MustCompile(`[a-zA-Z0-9]+`)

// StaticEmbedder generates deterministic hash-based embeddings. No network,
// no model download; reduced semantic quality. Used by tests and the demo CLI
// in place of a real embedding model.
type StaticEmbedder struct{}

// NewStaticEmbedder creates a new static embedder.
func NewStaticEmbedder() *StaticEmbedder {
	return &StaticEmbedder{}
}

// Embed generates an embedding for a single text.
func (e *StaticEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vector := make([]float32, StaticDimensions)

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return vector, nil
	}

	// Unigram buckets plus character trigram buckets; trigrams give partial
	// credit for morphological variants the unigram hash misses.
	for _, token := range encodeTokens(trimmed) {
		vector[hashToIndex(token, StaticDimensions)] += 0.7
	}
	for _, ngram := range characterNgrams(strings.ToLower(trimmed), 3) {
		vector[hashToIndex(ngram, StaticDimensions)] += 0.3
	}

	normalizeVectorInPlace(vector)
	return vector, nil
}

// Dimensions returns the embedding width.
func (e *StaticEmbedder) Dimensions() int {
	return StaticDimensions
}

// StaticSparseEncoder produces a term-weight vector from raw token counts,
// dampened by log scaling. Stands in for a learned sparse encoder.
type StaticSparseEncoder struct{}

// NewStaticSparseEncoder creates a new static sparse encoder.
func NewStaticSparseEncoder() *StaticSparseEncoder {
	return &StaticSparseEncoder{}
}

// Encode returns term weights for the text.
func (e *StaticSparseEncoder) Encode(ctx context.Context, text string) (map[string]float64, error) {
	counts := make(map[string]int)
	for _, token := range encodeTokens(text) {
		counts[token]++
	}

	weights := make(map[string]float64, len(counts))
	for term, count := range counts {
		weights[term] = 1.0 + math.Log(float64(count))
	}
	return weights, nil
}

// encodeTokens lowercases and splits text into alphanumeric tokens.
func encodeTokens(text string) []string {
	words := encodeTokenRegex.FindAllString(text, -1)
	tokens := make([]string, 0, len(words))
	for _, w := range words {
		lower := strings.ToLower(w)
		if len(lower) >= 2 {
			tokens = append(tokens, lower)
		}
	}
	return tokens
}

// characterNgrams extracts sliding character n-grams.
func characterNgrams(text string, n int) []string {
	runes := []rune(text)
	if len(runes) < n {
		return nil
	}
	grams := make([]string, 0, len(runes)-n+1)
	for i := 0; i+n <= len(runes); i++ {
		grams = append(grams, string(runes[i:i+n]))
	}
	return grams
}

// hashToIndex maps a string to a vector index via FNV-1a.
func hashToIndex(s string, dimensions int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return int(h.Sum32() % uint32(dimensions))
}

var (
	_ Embedder      = (*StaticEmbedder)(nil)
	_ SparseEncoder = (*StaticSparseEncoder)(nil)
)
