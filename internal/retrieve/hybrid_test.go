package retrieve

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ragerr "github.com/Aman-CERP/amanrag/internal/errors"
)

func TestHybridSourceFusesBothLists(t *testing.T) {
	semantic := &stubSource{results: ranked("A", "B", "C")}
	keyword := &stubSource{results: ranked("B", "C", "D")}
	h := NewHybridSource(semantic, keyword, NewRRFFusion(60, 0.5, 0.5), nil)

	results, err := h.Retrieve(context.Background(), Request{Query: "q"}, 10)
	require.NoError(t, err)
	require.NotEmpty(t, results)

	assert.Equal(t, "B", results[0].ChunkID, "chunk ranked by both sources wins")
	assert.Equal(t, 20, semantic.lastK, "sub-retrievals run at 2*topK")
	assert.Equal(t, 20, keyword.lastK)
}

func TestHybridSourceOneSubFailureDegrades(t *testing.T) {
	backendErr := ragerr.Collaborator(ragerr.ErrCodeSearchFailed, "vector store down", errors.New("boom"))
	semantic := &stubSource{err: backendErr}
	keyword := &stubSource{results: ranked("X", "Y")}
	h := NewHybridSource(semantic, keyword, NewRRFFusion(60, 0.5, 0.5), nil)

	results, err := h.Retrieve(context.Background(), Request{Query: "q"}, 10)
	require.NoError(t, err, "one healthy sub-retrieval is enough")
	assert.Equal(t, []string{"X", "Y"}, idsOf(results))
}

func TestHybridSourceBothSubsFailing(t *testing.T) {
	semantic := &stubSource{err: ragerr.Collaborator(ragerr.ErrCodeSearchFailed, "down", nil)}
	keyword := &stubSource{err: ragerr.Collaborator(ragerr.ErrCodeSearchFailed, "down", nil)}
	h := NewHybridSource(semantic, keyword, NewRRFFusion(60, 0.5, 0.5), nil)

	_, err := h.Retrieve(context.Background(), Request{Query: "q"}, 10)
	require.Error(t, err)
	assert.Equal(t, ragerr.ErrCodeSearchFailed, ragerr.GetCode(err))
}

func TestHybridSourceSurfacesMissingEmbedding(t *testing.T) {
	semantic := &stubSource{err: ragerr.InvalidInput("semantic retrieval requires a query embedding")}
	keyword := &stubSource{results: ranked("X")}
	h := NewHybridSource(semantic, keyword, NewRRFFusion(60, 0.5, 0.5), nil)

	_, err := h.Retrieve(context.Background(), Request{Query: "q"}, 10)
	require.Error(t, err)
	assert.True(t, ragerr.IsInvalidInput(err))
}

func TestHybridSourceCustomFusion(t *testing.T) {
	semantic := &stubSource{results: ranked("A")}
	keyword := &stubSource{results: ranked("B")}

	// A fusion that always prefers the keyword list.
	keywordFirst := func(_, keyword []*Result, topK int) []*Result {
		if len(keyword) > topK {
			keyword = keyword[:topK]
		}
		return keyword
	}
	h := NewHybridSource(semantic, keyword, keywordFirst, nil)

	results, err := h.Retrieve(context.Background(), Request{Query: "q"}, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"B"}, idsOf(results))
}

func TestHybridSourceThroughPipelineNormalizesFusedScores(t *testing.T) {
	semantic := &stubSource{results: ranked("A", "B")}
	keyword := &stubSource{results: ranked("B", "C")}
	h := NewHybridSource(semantic, keyword, NewRRFFusion(60, 0.5, 0.5), nil)

	p := NewPipeline(PipelineConfig{TopK: 10}, nil, nil)
	resp, err := p.Run(context.Background(), h, Request{Query: "q"})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)

	// Fused RRF scores are small reciprocals until the pipeline min-maxes
	// them like every other mode's.
	assert.Equal(t, "B", resp.Results[0].ChunkID)
	assert.Equal(t, 1.0, resp.Results[0].Score)
	last := resp.Results[len(resp.Results)-1]
	assert.Equal(t, 0.0, last.Score)
}

func TestHybridSourceThroughPipelineThresholdKeepsTopHits(t *testing.T) {
	semantic := &stubSource{results: ranked("A", "B", "C")}
	keyword := &stubSource{results: ranked("B", "C", "D")}
	h := NewHybridSource(semantic, keyword, NewRRFFusion(60, 0.5, 0.5), nil)

	p := NewPipeline(PipelineConfig{TopK: 10, SimilarityThreshold: 0.5}, nil, nil)
	resp, err := p.Run(context.Background(), h, Request{Query: "q"})
	require.NoError(t, err)

	// A threshold compares normalized fused scores, so the best fused hit
	// (normalized to 1.0) always survives.
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, "B", resp.Results[0].ChunkID)
	for _, r := range resp.Results {
		assert.GreaterOrEqual(t, r.Score, 0.5)
	}
}
