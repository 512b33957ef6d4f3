package retrieve

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	ragerr "github.com/Aman-CERP/amanrag/internal/errors"
)

// HybridSource fuses semantic and keyword sub-retrievals. The sub-retrievals
// run concurrently at a widened candidate pool with thresholding and
// reranking left to the outer pipeline, so each filter applies exactly once.
type HybridSource struct {
	semantic Source
	keyword  Source
	fuse     FusionFunc
	logger   *slog.Logger
}

var _ Source = (*HybridSource)(nil)

// NewHybridSource composes the two sub-sources with a fusion function.
func NewHybridSource(semantic, keyword Source, fuse FusionFunc, logger *slog.Logger) *HybridSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &HybridSource{semantic: semantic, keyword: keyword, fuse: fuse, logger: logger}
}

// Retrieve implements Source. A failed sub-retrieval degrades to an empty
// list for that source; both failing surfaces the semantic error.
func (h *HybridSource) Retrieve(ctx context.Context, req Request, k int) ([]*Result, error) {
	subK := 2 * k

	var semanticResults, keywordResults []*Result
	var semanticErr, keywordErr error

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		semanticResults, semanticErr = h.semantic.Retrieve(gctx, req, subK)
		return nil
	})
	g.Go(func() error {
		keywordResults, keywordErr = h.keyword.Retrieve(gctx, req, subK)
		return nil
	})
	_ = g.Wait()

	// Invalid input is the caller's bug, not a degradable backend failure.
	if semanticErr != nil && ragerr.IsInvalidInput(semanticErr) {
		return nil, semanticErr
	}

	if semanticErr != nil {
		h.logger.Warn("semantic sub-retrieval failed, fusing keyword only",
			"error", semanticErr)
		semanticResults = nil
	}
	if keywordErr != nil {
		h.logger.Warn("keyword sub-retrieval failed, fusing semantic only",
			"error", keywordErr)
		keywordResults = nil
	}
	if semanticErr != nil && keywordErr != nil {
		return nil, ragerr.Collaborator(ragerr.ErrCodeSearchFailed,
			"both hybrid sub-retrievals failed", semanticErr)
	}

	NormalizeScores(semanticResults)
	NormalizeScores(keywordResults)

	return h.fuse(semanticResults, keywordResults, k), nil
}
