package cmd

import (
	"context"
	"strings"

	"github.com/shelfsearch/shelfsearch/internal/backend"
)

// lexicalOverlapScorer is a stand-in cross encoder for the demo CLI: it
// scores a (query, document) pair by token-set Jaccard overlap. Real
// deployments inject a model-backed scorer instead.
type lexicalOverlapScorer struct{}

func newLexicalOverlapScorer() *lexicalOverlapScorer {
	return &lexicalOverlapScorer{}
}

func (s *lexicalOverlapScorer) Score(_ context.Context, query, documentText string) (float64, error) {
	queryTokens := tokenSet(query)
	docTokens := tokenSet(documentText)
	if len(queryTokens) == 0 || len(docTokens) == 0 {
		return 0, nil
	}

	overlap := 0
	for tok := range queryTokens {
		if _, ok := docTokens[tok]; ok {
			overlap++
		}
	}
	union := len(queryTokens) + len(docTokens) - overlap
	return float64(overlap) / float64(union), nil
}

func tokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range strings.Fields(strings.ToLower(s)) {
		tok = strings.Trim(tok, ".,;:!?\"'()[]")
		if tok != "" {
			set[tok] = struct{}{}
		}
	}
	return set
}

var _ backend.CrossEncoder = (*lexicalOverlapScorer)(nil)
