package retrieve

import "sort"

// FusionFunc combines two independently-ranked candidate lists into one
// ranking, truncated to topK. Custom implementations may be registered on
// the hybrid source; only this contract is assumed.
type FusionFunc func(semantic, keyword []*Result, topK int) []*Result

// DefaultRRFK is the default reciprocal rank fusion smoothing constant.
const DefaultRRFK = 60

// NewRRFFusion builds a reciprocal rank fusion function: each item
// contributes weight/(k+rank) per source list it appears in (1-based rank),
// merged by chunk ID. Fused scores are not bounded to [0,1].
func NewRRFFusion(k int, semanticWeight, keywordWeight float64) FusionFunc {
	if k <= 0 {
		k = DefaultRRFK
	}
	return func(semantic, keyword []*Result, topK int) []*Result {
		m := newFusionMerge()
		for rank, r := range semantic {
			m.add(r, semanticWeight/float64(k+rank+1))
		}
		for rank, r := range keyword {
			m.add(r, keywordWeight/float64(k+rank+1))
		}
		return m.ranked(topK)
	}
}

// NewWeightedFusion builds a weighted-sum fusion function: each source list
// is min-max normalized to [0,1] independently, scaled by its weight, and
// summed per chunk ID.
func NewWeightedFusion(semanticWeight, keywordWeight float64) FusionFunc {
	return func(semantic, keyword []*Result, topK int) []*Result {
		semantic = cloneResults(semantic)
		keyword = cloneResults(keyword)
		NormalizeScores(semantic)
		NormalizeScores(keyword)

		m := newFusionMerge()
		for _, r := range semantic {
			m.add(r, r.Score*semanticWeight)
		}
		for _, r := range keyword {
			m.add(r, r.Score*keywordWeight)
		}
		return m.ranked(topK)
	}
}

func cloneResults(results []*Result) []*Result {
	out := make([]*Result, len(results))
	for i, r := range results {
		out[i] = r.clone()
	}
	return out
}

// fusionMerge accumulates per-chunk contributions preserving first-seen
// insertion order for stable tie-breaking.
type fusionMerge struct {
	order  []*Result
	scores map[string]float64
	seen   map[string]bool
}

func newFusionMerge() *fusionMerge {
	return &fusionMerge{
		scores: make(map[string]float64),
		seen:   make(map[string]bool),
	}
}

func (m *fusionMerge) add(r *Result, contribution float64) {
	if !m.seen[r.ChunkID] {
		m.seen[r.ChunkID] = true
		m.order = append(m.order, r.clone())
	}
	m.scores[r.ChunkID] += contribution
}

func (m *fusionMerge) ranked(topK int) []*Result {
	for _, r := range m.order {
		r.Score = m.scores[r.ChunkID]
	}

	sort.SliceStable(m.order, func(i, j int) bool {
		return m.order[i].Score > m.order[j].Score
	})

	if topK > 0 && len(m.order) > topK {
		m.order = m.order[:topK]
	}
	return m.order
}
