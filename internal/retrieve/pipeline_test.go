package retrieve

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ragerr "github.com/Aman-CERP/amanrag/internal/errors"
)

// stubSource returns canned results and records the k it was asked for.
type stubSource struct {
	results []*Result
	err     error
	lastK   int
}

func (s *stubSource) Retrieve(_ context.Context, _ Request, k int) ([]*Result, error) {
	s.lastK = k
	if s.err != nil {
		return nil, s.err
	}
	// Fresh copies: the pipeline re-scores in place.
	return cloneResults(s.results), nil
}

// stubReranker reverses the list or fails.
type stubReranker struct {
	err    error
	called bool
}

func (r *stubReranker) Rerank(_ context.Context, _ string, results []*Result, topK int) ([]*Result, error) {
	r.called = true
	if r.err != nil {
		return nil, r.err
	}
	reversed := make([]*Result, len(results))
	for i, res := range results {
		reversed[len(results)-1-i] = res
	}
	if len(reversed) > topK {
		reversed = reversed[:topK]
	}
	return reversed, nil
}

func TestPipelineRejectsEmptyQuery(t *testing.T) {
	p := NewPipeline(PipelineConfig{}, nil, nil)

	for _, query := range []string{"", "   ", "\t\n"} {
		_, err := p.Run(context.Background(), &stubSource{}, Request{Query: query})
		require.Error(t, err)
		assert.True(t, ragerr.IsInvalidInput(err))
	}
}

func TestPipelineNormalizesAndTruncates(t *testing.T) {
	source := &stubSource{results: scored(3.0, 7.0, 5.0, 1.0)}
	p := NewPipeline(PipelineConfig{TopK: 2}, nil, nil)

	resp, err := p.Run(context.Background(), source, Request{Query: "q"})
	require.NoError(t, err)
	require.Nil(t, resp.SourceErr)

	require.Len(t, resp.Results, 2)
	// Normalized over the full candidate list, then truncated in order.
	assert.InDelta(t, 1.0/3.0, resp.Results[0].Score, 1e-9)
	assert.InDelta(t, 1.0, resp.Results[1].Score, 1e-9)
}

func TestPipelineSourceFailureDegrades(t *testing.T) {
	backendErr := ragerr.Collaborator(ragerr.ErrCodeSearchFailed, "backend down", errors.New("boom"))
	source := &stubSource{err: backendErr}
	p := NewPipeline(PipelineConfig{TopK: 5}, nil, nil)

	resp, err := p.Run(context.Background(), source, Request{Query: "q"})
	require.NoError(t, err, "collaborator failures degrade, not propagate")

	assert.Empty(t, resp.Results)
	require.Error(t, resp.SourceErr, "typed error kept so callers can tell no-matches from backend-down")
	assert.Equal(t, ragerr.ErrCodeSearchFailed, ragerr.GetCode(resp.SourceErr))
}

func TestPipelineSurfacesInvalidInputFromSource(t *testing.T) {
	source := &stubSource{err: ragerr.InvalidInput("missing query embedding")}
	p := NewPipeline(PipelineConfig{TopK: 5}, nil, nil)

	_, err := p.Run(context.Background(), source, Request{Query: "q"})
	require.Error(t, err)
	assert.True(t, ragerr.IsInvalidInput(err))
}

func TestPipelineThresholdFilter(t *testing.T) {
	source := &stubSource{results: scored(1.0, 0.6, 0.4, 0.0)}
	p := NewPipeline(PipelineConfig{TopK: 10, SimilarityThreshold: 0.5}, nil, nil)

	resp, err := p.Run(context.Background(), source, Request{Query: "q"})
	require.NoError(t, err)

	assert.Equal(t, []float64{1.0, 0.6}, scoresOf(resp.Results))
}

func TestPipelineCandidateExpansionOnlyWithRerank(t *testing.T) {
	source := &stubSource{results: scored(1.0)}

	p := NewPipeline(PipelineConfig{TopK: 4, CandidateMultiplier: 5}, nil, nil)
	_, err := p.Run(context.Background(), source, Request{Query: "q"})
	require.NoError(t, err)
	assert.Equal(t, 4, source.lastK, "no rerank: candidateK == topK")

	p = NewPipeline(PipelineConfig{TopK: 4, CandidateMultiplier: 5, RerankEnabled: true}, &stubReranker{}, nil)
	_, err = p.Run(context.Background(), source, Request{Query: "q"})
	require.NoError(t, err)
	assert.Equal(t, 20, source.lastK, "rerank widens the candidate pool")
}

func TestPipelineRerankReorders(t *testing.T) {
	source := &stubSource{results: ranked("A", "B", "C")}
	reranker := &stubReranker{}
	p := NewPipeline(PipelineConfig{TopK: 3, RerankEnabled: true}, reranker, nil)

	resp, err := p.Run(context.Background(), source, Request{Query: "q"})
	require.NoError(t, err)
	assert.True(t, reranker.called)
	assert.Equal(t, []string{"C", "B", "A"}, idsOf(resp.Results))
}

func TestPipelineRerankFailurePassthrough(t *testing.T) {
	source := &stubSource{results: ranked("A", "B", "C")}
	reranker := &stubReranker{err: ragerr.Collaborator(ragerr.ErrCodeRerankFailed, "model down", nil)}
	p := NewPipeline(PipelineConfig{TopK: 3, RerankEnabled: true}, reranker, nil)

	resp, err := p.Run(context.Background(), source, Request{Query: "q"})
	require.NoError(t, err)

	// Pre-rerank order kept unchanged.
	assert.Equal(t, []string{"A", "B", "C"}, idsOf(resp.Results))
}

func TestPipelineNilRerankerDisablesRerank(t *testing.T) {
	source := &stubSource{results: ranked("A", "B")}
	p := NewPipeline(PipelineConfig{TopK: 2, RerankEnabled: true}, nil, nil)

	resp, err := p.Run(context.Background(), source, Request{Query: "q"})
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, idsOf(resp.Results))
	assert.Equal(t, 2, source.lastK, "candidate pool not widened without a reranker")
}

func TestPipelineRequestTopKOverridesDefault(t *testing.T) {
	source := &stubSource{results: ranked("A", "B", "C", "D")}
	p := NewPipeline(PipelineConfig{TopK: 10}, nil, nil)

	resp, err := p.Run(context.Background(), source, Request{Query: "q", TopK: 2})
	require.NoError(t, err)
	assert.Len(t, resp.Results, 2)
}

func TestPipelineIdempotent(t *testing.T) {
	source := &stubSource{results: ranked("A", "B", "C")}
	reranker := &stubReranker{}
	p := NewPipeline(PipelineConfig{TopK: 3, RerankEnabled: true}, reranker, nil)

	first, err := p.Run(context.Background(), source, Request{Query: "q"})
	require.NoError(t, err)
	second, err := p.Run(context.Background(), source, Request{Query: "q"})
	require.NoError(t, err)

	require.Len(t, second.Results, len(first.Results))
	for i := range first.Results {
		assert.Equal(t, first.Results[i].ChunkID, second.Results[i].ChunkID)
		assert.Equal(t, first.Results[i].Score, second.Results[i].Score)
	}
}
