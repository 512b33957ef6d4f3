package retrieve

import (
	"context"
	"sort"
	"strings"

	ragerr "github.com/Aman-CERP/amanrag/internal/errors"
	"github.com/Aman-CERP/amanrag/internal/store"
)

// tfNorm damps term frequency by content length: a token occurrence in a
// short chunk counts for more than one in a long chunk.
const tfNorm = 100.0

// KeywordSource retrieves by token overlap. The text index supplies
// candidate rows; scoring is a TF-style formula over the chunk tokens, not
// the index's own BM25 score, so results are comparable across backends.
type KeywordSource struct {
	index store.TextIndex
	meta  store.MetadataStore
}

var _ Source = (*KeywordSource)(nil)

// NewKeywordSource creates a keyword candidate source.
func NewKeywordSource(index store.TextIndex, meta store.MetadataStore) *KeywordSource {
	return &KeywordSource{index: index, meta: meta}
}

// Retrieve implements Source.
func (s *KeywordSource) Retrieve(ctx context.Context, req Request, k int) ([]*Result, error) {
	queryTokens := store.Tokenize(req.Query)
	if len(queryTokens) == 0 {
		return []*Result{}, nil
	}

	hits, err := s.index.Search(ctx, req.Tenant, req.Query, k)
	if err != nil {
		return nil, ragerr.Collaborator(ragerr.ErrCodeSearchFailed, "text index search failed", err)
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
		score := keywordScore(queryTokens, ch.Content, req.MinMatchCount)
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

// keywordScore sums per-token occurrence counts damped by content length,
// normalized by the query token count. Candidates matching fewer than
// minMatchCount of the query tokens score zero: a single token repeated
// many times does not satisfy a multi-token minimum.
func keywordScore(queryTokens []string, content string, minMatchCount int) float64 {
	contentTokens := store.Tokenize(content)
	if len(contentTokens) == 0 {
		return 0
	}

	counts := make(map[string]int, len(contentTokens))
	for _, tok := range contentTokens {
		counts[tok]++
	}

	damping := 1.0 / (1.0 + float64(len(contentTokens))/tfNorm)

	matched := 0
	var score float64
	for _, tok := range queryTokens {
		count := counts[strings.ToLower(tok)]
		if count > 0 {
			matched++
			score += float64(count) * damping
		}
	}
	if matched == 0 || matched < minMatchCount {
		return 0
	}

	return score / float64(len(queryTokens))
}
