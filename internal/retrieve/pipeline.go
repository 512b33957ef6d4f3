package retrieve

import (
	"context"
	"log/slog"
	"strings"

	ragerr "github.com/Aman-CERP/amanrag/internal/errors"
)

// PipelineConfig parameterizes the shared retrieval pipeline.
type PipelineConfig struct {
	// TopK is the default result cap when the request does not set one.
	TopK int

	// SimilarityThreshold drops normalized candidates scoring below it.
	// Zero disables the filter.
	SimilarityThreshold float64

	// CandidateMultiplier widens the candidate pool before reranking.
	CandidateMultiplier int

	// RerankEnabled toggles the cross-encoder stage.
	RerankEnabled bool
}

// Pipeline is the fixed stage sequence every mode shares: candidate
// expansion, normalization, threshold filter, rerank, truncate. Sources are
// composed in rather than subclassed, so no mode can skip a stage.
type Pipeline struct {
	cfg      PipelineConfig
	reranker Reranker
	logger   *slog.Logger
}

// NewPipeline builds a pipeline. A nil reranker disables reranking
// regardless of configuration.
func NewPipeline(cfg PipelineConfig, reranker Reranker, logger *slog.Logger) *Pipeline {
	if cfg.TopK <= 0 {
		cfg.TopK = 10
	}
	if cfg.CandidateMultiplier <= 0 {
		cfg.CandidateMultiplier = 5
	}
	if reranker == nil {
		cfg.RerankEnabled = false
		reranker = NoopReranker{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{cfg: cfg, reranker: reranker, logger: logger}
}

// Run executes the pipeline for one request. Invalid input is surfaced as an
// error; a candidate source failure degrades to an empty result list with
// the typed error retained on the response.
func (p *Pipeline) Run(ctx context.Context, source Source, req Request) (*Response, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, ragerr.InvalidInput("query must not be empty")
	}

	topK := req.TopK
	if topK <= 0 {
		topK = p.cfg.TopK
	}

	candidateK := topK
	if p.cfg.RerankEnabled {
		candidateK = topK * p.cfg.CandidateMultiplier
	}

	results, err := source.Retrieve(ctx, req, candidateK)
	if err != nil {
		if ragerr.IsInvalidInput(err) {
			return nil, err
		}
		p.logger.Warn("candidate source failed, returning empty results", "error", err)
		return &Response{Results: []*Result{}, SourceErr: err}, nil
	}

	// Fused and raw scores alike are min-maxed here, so the threshold
	// always compares against [0,1] regardless of mode.
	NormalizeScores(results)

	results = ApplyThreshold(results, p.cfg.SimilarityThreshold)

	if p.cfg.RerankEnabled && len(results) > 0 {
		reranked, rerankErr := p.reranker.Rerank(ctx, req.Query, results, topK)
		if rerankErr != nil {
			// Degrade to the pre-rerank list unchanged: not re-sorted, not
			// truncated here (the final truncate below still applies).
			p.logger.Warn("rerank failed, keeping pre-rerank order", "error", rerankErr)
		} else {
			results = reranked
		}
	}

	if len(results) > topK {
		results = results[:topK]
	}

	return &Response{Results: results}, nil
}
