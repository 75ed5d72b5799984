package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMethodWeightsValidate(t *testing.T) {
	tests := []struct {
		name    string
		weights MethodWeights
		wantErr bool
	}{
		{"defaults", DefaultMethodWeights(), false},
		{"exact sum", MethodWeights{Lexical: 0.5, Dense: 0.25, Sparse: 0.25}, false},
		{"within tolerance", MethodWeights{Lexical: 0.5, Dense: 0.3, Sparse: 0.2 - 5e-7}, false},
		{"sum too low", MethodWeights{Lexical: 0.3, Dense: 0.3, Sparse: 0.3}, true},
		{"sum too high", MethodWeights{Lexical: 0.5, Dense: 0.5, Sparse: 0.1}, true},
		{"negative weight", MethodWeights{Lexical: -0.1, Dense: 0.6, Sparse: 0.5}, true},
		{"all zero", MethodWeights{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.weights.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestStaticEstimatorIgnoresQuery(t *testing.T) {
	est := NewStaticEstimator()
	a := est.Estimate(NewQuery("how does photosynthesis work"))
	b := est.Estimate(NewQuery(`"exact phrase"`))
	assert.Equal(t, a, b)
	assert.Equal(t, DefaultMethodWeights(), a)
}

func TestHeuristicEstimatorFeatures(t *testing.T) {
	est := NewHeuristicEstimator(nil)

	tests := []struct {
		name  string
		query string
		check func(t *testing.T, w MethodWeights)
	}{
		{
			name:  "quoted phrase favors lexical",
			query: `"the name of the rose"`,
			check: func(t *testing.T, w MethodWeights) {
				assert.Greater(t, w.Lexical, w.Dense)
				assert.Greater(t, w.Lexical, w.Sparse)
			},
		},
		{
			name:  "identifier favors lexical",
			query: "9780441013593",
			check: func(t *testing.T, w MethodWeights) {
				assert.Greater(t, w.Lexical, 0.5)
			},
		},
		{
			name:  "question favors dense",
			query: "how do compilers optimize loops",
			check: func(t *testing.T, w MethodWeights) {
				assert.Greater(t, w.Dense, w.Lexical)
				assert.Greater(t, w.Dense, w.Sparse)
			},
		},
		{
			name:  "long query favors dense",
			query: "novels set in medieval monasteries with unreliable narrators",
			check: func(t *testing.T, w MethodWeights) {
				assert.Greater(t, w.Dense, w.Lexical)
			},
		},
		{
			name:  "short keywords favor lexical and sparse",
			query: "rust compiler",
			check: func(t *testing.T, w MethodWeights) {
				assert.Greater(t, w.Lexical, w.Dense)
				assert.Greater(t, w.Sparse, w.Dense)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := est.Estimate(NewQuery(tt.query))
			assert.InDelta(t, 1.0, w.Sum(), WeightTolerance, "weights must sum to 1.0")
			require.NoError(t, w.Validate())
			tt.check(t, w)
		})
	}
}

func TestHeuristicEstimatorRareTokensShiftSparse(t *testing.T) {
	vocab := []string{"history", "of", "science", "modern", "ancient"}
	est := NewHeuristicEstimator(vocab)

	common := est.Estimate(NewQuery("history of science"))
	rare := est.Estimate(NewQuery("xylography incunabula festschrift"))

	assert.Greater(t, rare.Sparse, common.Sparse)
	assert.InDelta(t, 1.0, rare.Sum(), WeightTolerance)
}

func TestHeuristicEstimatorIsDeterministic(t *testing.T) {
	est := NewHeuristicEstimator([]string{"library"})
	q := NewQuery("where can I find rare manuscripts")

	first := est.Estimate(q)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, est.Estimate(q))
	}
}

func TestHeuristicEstimatorEmptyQuery(t *testing.T) {
	est := NewHeuristicEstimator(nil)
	assert.Equal(t, DefaultMethodWeights(), est.Estimate(NewQuery("   ")))
}

func TestNormalizeWeights(t *testing.T) {
	w := normalizeWeights(MethodWeights{Lexical: 2, Dense: 1, Sparse: 1})
	assert.InDelta(t, 0.5, w.Lexical, 1e-9)
	assert.InDelta(t, 0.25, w.Dense, 1e-9)
	assert.InDelta(t, 0.25, w.Sparse, 1e-9)

	// Degenerate input falls back to the defaults.
	assert.Equal(t, DefaultMethodWeights(), normalizeWeights(MethodWeights{}))
}
