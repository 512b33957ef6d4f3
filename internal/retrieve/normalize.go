package retrieve

// NormalizeScores rescales scores to [0,1] with min-max normalization, in
// place. The degenerate all-equal case sets every score to 1.0 ("all equally
// relevant") unless the scores are already exactly 1.0; downstream threshold
// filtering depends on this exact behavior.
func NormalizeScores(results []*Result) {
	if len(results) == 0 {
		return
	}

	minScore, maxScore := results[0].Score, results[0].Score
	for _, r := range results[1:] {
		if r.Score < minScore {
			minScore = r.Score
		}
		if r.Score > maxScore {
			maxScore = r.Score
		}
	}

	if maxScore == minScore {
		if minScore == 1.0 {
			return
		}
		for _, r := range results {
			r.Score = 1.0
		}
		return
	}

	span := maxScore - minScore
	for _, r := range results {
		r.Score = (r.Score - minScore) / span
	}
}

// ApplyThreshold drops results scoring below threshold. A zero (or negative)
// threshold disables filtering.
func ApplyThreshold(results []*Result, threshold float64) []*Result {
	if threshold <= 0 {
		return results
	}

	kept := results[:0]
	for _, r := range results {
		if r.Score >= threshold {
			kept = append(kept, r)
		}
	}
	return kept
}
