package retrieve

import (
	"context"

	ragerr "github.com/Aman-CERP/amanrag/internal/errors"
	"github.com/Aman-CERP/amanrag/internal/store"
)

// SemanticSource retrieves by vector similarity. The query embedding must be
// supplied on the request; the source never computes one.
type SemanticSource struct {
	vectors store.VectorStore
	meta    store.MetadataStore
}

var _ Source = (*SemanticSource)(nil)

// NewSemanticSource creates a vector-similarity candidate source.
func NewSemanticSource(vectors store.VectorStore, meta store.MetadataStore) *SemanticSource {
	return &SemanticSource{vectors: vectors, meta: meta}
}

// Retrieve implements Source.
func (s *SemanticSource) Retrieve(ctx context.Context, req Request, k int) ([]*Result, error) {
	if len(req.QueryVector) == 0 {
		return nil, ragerr.InvalidInput("semantic retrieval requires a query embedding")
	}

	hits, err := s.vectors.Search(ctx, req.Tenant, req.QueryVector, k)
	if err != nil {
		return nil, ragerr.Collaborator(ragerr.ErrCodeSearchFailed, "vector search failed", err)
	}
	if len(hits) == 0 {
		return []*Result{}, nil
	}

	ids := make([]string, len(hits))
	scoreByID := make(map[string]float64, len(hits))
	for i, hit := range hits {
		ids[i] = hit.ID
		scoreByID[hit.ID] = float64(hit.Score)
	}

	chunks, err := s.meta.GetChunks(ctx, ids)
	if err != nil {
		return nil, ragerr.Collaborator(ragerr.ErrCodeStorageFailed, "failed to load chunks", err)
	}

	results := make([]*Result, 0, len(chunks))
	for _, ch := range chunks {
		results = append(results, resultFromChunk(ch, scoreByID[ch.ID]))
	}
	return results, nil
}
