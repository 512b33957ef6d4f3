package retrieve

import (
	"context"
	"sort"

	ragerr "github.com/Aman-CERP/amanrag/internal/errors"
	"github.com/Aman-CERP/amanrag/internal/store"
)

// FulltextSource retrieves by full-text match with a configurable term
// operator (any term vs all terms).
type FulltextSource struct {
	index store.TextIndex
	meta  store.MetadataStore
}

var _ Source = (*FulltextSource)(nil)

// NewFulltextSource creates a full-text candidate source.
func NewFulltextSource(index store.TextIndex, meta store.MetadataStore) *FulltextSource {
	return &FulltextSource{index: index, meta: meta}
}

// Retrieve implements Source.
func (s *FulltextSource) Retrieve(ctx context.Context, req Request, k int) ([]*Result, error) {
	queryTokens := store.Tokenize(req.Query)
	if len(queryTokens) == 0 {
		return []*Result{}, nil
	}

	op := req.Operator
	if op == "" {
		op = store.MatchAny
	}

	hits, err := s.index.MatchSearch(ctx, req.Tenant, req.Query, op, k)
	if err != nil {
		return nil, ragerr.Collaborator(ragerr.ErrCodeSearchFailed, "fulltext search failed", err)
	}
	if len(hits) == 0 {
		return []*Result{}, nil
	}

	ids := make([]string, len(hits))
	for i, hit := range hits {
		ids[i] = hit.ID
	}
	chunks, err := s.meta.GetChunks(ctx, ids)
	if err != nil {
		return nil, ragerr.Collaborator(ragerr.ErrCodeStorageFailed, "failed to load chunks", err)
	}

	results := make([]*Result, 0, len(chunks))
	for _, ch := range chunks {
		score := fulltextScore(queryTokens, ch.Content)
		if score <= 0 {
			continue
		}
		results = append(results, resultFromChunk(ch, score))
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	return results, nil
}

// fulltextScore weights the fraction of query tokens present by how often
// they occur: matchRatio * (1 + totalMatches/len(queryTokens)).
func fulltextScore(queryTokens []string, content string) float64 {
	counts := make(map[string]int)
	for _, tok := range store.Tokenize(content) {
		counts[tok]++
	}

	matchedTokens := 0
	totalMatches := 0
	for _, tok := range queryTokens {
		if n := counts[tok]; n > 0 {
			matchedTokens++
			totalMatches += n
		}
	}
	if matchedTokens == 0 {
		return 0
	}

	matchRatio := float64(matchedTokens) / float64(len(queryTokens))
	return matchRatio * (1.0 + float64(totalMatches)/float64(len(queryTokens)))
}
