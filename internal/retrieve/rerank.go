package retrieve

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	ragerr "github.com/Aman-CERP/amanrag/internal/errors"
)

// Reranker re-scores results against the query with a cross-encoder.
// Implementations replace each result's score, sort descending, and truncate
// to topK. Reranked scores are not bounded to [0,1].
type Reranker interface {
	Rerank(ctx context.Context, query string, results []*Result, topK int) ([]*Result, error)
}

// NoopReranker returns its input unchanged.
type NoopReranker struct{}

func (NoopReranker) Rerank(_ context.Context, _ string, results []*Result, _ int) ([]*Result, error) {
	return results, nil
}

// DefaultRerankTimeout bounds one cross-encoder call.
const DefaultRerankTimeout = 30 * time.Second

// HTTPReranker scores (query, content) pairs via an HTTP cross-encoder
// endpoint speaking the /api/rerank JSON shape.
type HTTPReranker struct {
	endpoint string
	model    string
	client   *http.Client
}

var _ Reranker = (*HTTPReranker)(nil)

// NewHTTPReranker creates a reranker against the given base endpoint.
func NewHTTPReranker(endpoint, model string) *HTTPReranker {
	return &HTTPReranker{
		endpoint: endpoint,
		model:    model,
		client:   &http.Client{Timeout: DefaultRerankTimeout},
	}
}

// Available reports whether the rerank endpoint answers at all. Used for
// startup diagnostics; Rerank itself degrades on failure regardless.
func (r *HTTPReranker) Available(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.endpoint, nil)
	if err != nil {
		return false
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	return resp.StatusCode < http.StatusInternalServerError
}

type rerankRequest struct {
	Model     string   `json:"model"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
}

type rerankResponse struct {
	Scores []float64 `json:"scores"`
}

// Rerank implements Reranker.
func (r *HTTPReranker) Rerank(ctx context.Context, query string, results []*Result, topK int) ([]*Result, error) {
	if len(results) == 0 {
		return results, nil
	}

	documents := make([]string, len(results))
	for i, res := range results {
		documents[i] = res.Content
	}

	body, err := json.Marshal(rerankRequest{Model: r.model, Query: query, Documents: documents})
	if err != nil {
		return nil, ragerr.Collaborator(ragerr.ErrCodeRerankFailed, "failed to encode rerank request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint+"/api/rerank", bytes.NewReader(body))
	if err != nil {
		return nil, ragerr.Collaborator(ragerr.ErrCodeRerankFailed, "failed to build rerank request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, ragerr.Collaborator(ragerr.ErrCodeRerankFailed, "rerank endpoint unreachable", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, ragerr.Collaborator(ragerr.ErrCodeRerankFailed,
			fmt.Sprintf("rerank endpoint returned %d: %s", resp.StatusCode, payload), nil)
	}

	var parsed rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, ragerr.Collaborator(ragerr.ErrCodeRerankFailed, "failed to decode rerank response", err)
	}
	if len(parsed.Scores) != len(results) {
		return nil, ragerr.Collaborator(ragerr.ErrCodeRerankFailed,
			fmt.Sprintf("rerank score count mismatch: got %d for %d documents", len(parsed.Scores), len(results)), nil)
	}

	reranked := make([]*Result, len(results))
	for i, res := range results {
		c := res.clone()
		c.Score = parsed.Scores[i]
		reranked[i] = c
	}

	sort.SliceStable(reranked, func(i, j int) bool {
		return reranked[i].Score > reranked[j].Score
	})

	if topK > 0 && len(reranked) > topK {
		reranked = reranked[:topK]
	}
	return reranked, nil
}
