package search

import (
	serrors "github.com/shelfsearch/shelfsearch/internal/errors"

	"github.com/shelfsearch/shelfsearch/internal/backend"
)

// MaxPageLimit caps the page size.
const MaxPageLimit = 100

// ValidatePage checks offset/limit bounds before any retrieval work starts.
func ValidatePage(offset, limit int) error {
	if offset < 0 {
		return serrors.New(serrors.ErrCodeInvalidPage, "offset must be >= 0", nil).
			WithDetail("offset", formatFloat(float64(offset)))
	}
	if limit < 1 || limit > MaxPageLimit {
		return serrors.New(serrors.ErrCodeInvalidPage, "limit must be in [1,100]", nil).
			WithDetail("limit", formatFloat(float64(limit)))
	}
	return nil
}

// Present slices the final ranking into a contiguous page and attaches
// snippets from resolved metadata. total is always the distinct document
// count of the whole pool so clients can paginate.
func Present(
	ranked []*FusedCandidate,
	resolved map[string]*backend.DocumentMeta,
	offset, limit int,
) ([]*ResultItem, int) {
	total := len(ranked)

	if offset >= total {
		return []*ResultItem{}, total
	}

	end := offset + limit
	if end > total {
		end = total
	}

	items := make([]*ResultItem, 0, end-offset)
	for _, fc := range ranked[offset:end] {
		item := &ResultItem{
			DocID:      fc.DocID,
			Score:      fc.Score,
			Ranks:      fc.Ranks,
			CrossScore: fc.CrossScore,
			Reranked:   fc.Reranked,
		}
		if meta, ok := resolved[fc.DocID]; ok {
			item.Snippet = meta.Snippet
		}
		items = append(items, item)
	}

	return items, total
}

// PageContributions counts how many documents on the page each method
// retrieved. A degraded method therefore shows up with a zero count.
func PageContributions(items []*ResultItem) map[Method]int {
	contributions := make(map[Method]int, 3)
	for _, m := range Methods() {
		contributions[m] = 0
	}
	for _, item := range items {
		for m := range item.Ranks {
			contributions[m]++
		}
	}
	return contributions
}
