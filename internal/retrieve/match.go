package retrieve

import (
	"context"
	"sort"
	"strings"

	ragerr "github.com/Aman-CERP/amanrag/internal/errors"
	"github.com/Aman-CERP/amanrag/internal/store"
)

// TextMatchSource retrieves by literal matching of the whole query string.
// Exact mode scores 1.0 only when the chunk content equals the query; fuzzy
// mode counts substring occurrences of the query, damped by how late in the
// chunk the first occurrence appears.
type TextMatchSource struct {
	meta store.MetadataStore
}

var _ Source = (*TextMatchSource)(nil)

// NewTextMatchSource creates a text-match candidate source.
func NewTextMatchSource(meta store.MetadataStore) *TextMatchSource {
	return &TextMatchSource{meta: meta}
}

// Retrieve implements Source.
func (s *TextMatchSource) Retrieve(ctx context.Context, req Request, k int) ([]*Result, error) {
	query := strings.ToLower(strings.TrimSpace(req.Query))
	if query == "" {
		return []*Result{}, nil
	}

	// The LIKE candidates are a superset for both modes; scoring narrows
	// exact mode down to whole-content equality. Over-fetch so the score
	// sort sees more than a page of candidates.
	chunks, err := s.meta.QueryChunks(ctx, req.Tenant, []string{query}, 2*k)
	if err != nil {
		return nil, ragerr.Collaborator(ragerr.ErrCodeStorageFailed, "chunk query failed", err)
	}

	results := make([]*Result, 0, len(chunks))
	for _, ch := range chunks {
		var score float64
		if req.Fuzzy {
			score = fuzzyMatchScore(query, ch.Content)
		} else if strings.EqualFold(query, ch.Content) {
			score = 1.0
		}
		if score <= 0 {
			continue
		}
		results = append(results, resultFromChunk(ch, score))
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// fuzzyMatchScore counts occurrences of the whole query damped by the first
// match position: occurrences * 1/(1+firstPos/100), positions in runes.
func fuzzyMatchScore(query, content string) float64 {
	lowered := strings.ToLower(content)

	idx := strings.Index(lowered, query)
	if idx < 0 {
		return 0
	}

	occurrences := strings.Count(lowered, query)
	firstPos := len([]rune(lowered[:idx]))

	return float64(occurrences) / (1.0 + float64(firstPos)/100.0)
}

// PhraseMatchSource retrieves chunks containing the query terms as a
// contiguous phrase. The text index supplies phrase candidates; the score
// rewards early and repeated occurrences and phrase coverage of the chunk.
type PhraseMatchSource struct {
	index store.TextIndex
	meta  store.MetadataStore
}

var _ Source = (*PhraseMatchSource)(nil)

// NewPhraseMatchSource creates a phrase-match candidate source.
func NewPhraseMatchSource(index store.TextIndex, meta store.MetadataStore) *PhraseMatchSource {
	return &PhraseMatchSource{index: index, meta: meta}
}

// Retrieve implements Source.
func (s *PhraseMatchSource) Retrieve(ctx context.Context, req Request, k int) ([]*Result, error) {
	phrase := strings.TrimSpace(req.Query)
	if phrase == "" {
		return []*Result{}, nil
	}

	hits, err := s.index.PhraseSearch(ctx, req.Tenant, phrase, k)
	if err != nil {
		return nil, ragerr.Collaborator(ragerr.ErrCodeSearchFailed, "phrase search failed", err)
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
		score := phraseScore(phrase, ch.Content)
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

// phraseScore is occurrences * positionScore * (1 + len(phrase)/len(content)),
// with positionScore = 1/(1+firstPos/100) and lengths in runes.
func phraseScore(phrase, content string) float64 {
	loweredContent := strings.ToLower(content)
	loweredPhrase := strings.ToLower(phrase)

	occurrences := strings.Count(loweredContent, loweredPhrase)
	if occurrences == 0 {
		return 0
	}

	firstPos := len([]rune(loweredContent[:strings.Index(loweredContent, loweredPhrase)]))
	positionScore := 1.0 / (1.0 + float64(firstPos)/100.0)
	coverage := 1.0 + float64(len([]rune(phrase)))/float64(len([]rune(content)))

	return float64(occurrences) * positionScore * coverage
}
