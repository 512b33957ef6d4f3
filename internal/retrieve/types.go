// Package retrieve implements the retrieval pipeline: per-mode candidate
// sources over the storage collaborators, score normalization, threshold
// filtering, fusion for the hybrid mode, and an optional cross-encoder
// rerank stage. The pipeline is composed around sources rather than
// inherited by them, so no mode can bypass a stage.
package retrieve

import (
	"context"

	"github.com/Aman-CERP/amanrag/internal/store"
)

// Mode identifies a retrieval mode.
type Mode string

const (
	ModeSemantic    Mode = "semantic"
	ModeKeyword     Mode = "keyword"
	ModeHybrid      Mode = "hybrid"
	ModeFulltext    Mode = "fulltext"
	ModeTextMatch   Mode = "text_match"
	ModePhraseMatch Mode = "phrase_match"
)

// AllModes lists every retrieval mode, whether or not the current deployment
// has the collaborators to serve it.
func AllModes() []Mode {
	return []Mode{ModeSemantic, ModeKeyword, ModeHybrid, ModeFulltext, ModeTextMatch, ModePhraseMatch}
}

// Request is one retrieval call. Fields beyond Query/TopK/Tenant are
// mode-specific arguments; unused ones are ignored by the other modes.
type Request struct {
	Query  string
	TopK   int
	Tenant string

	// QueryVector is the precomputed query embedding, required by the
	// semantic and hybrid modes. The pipeline never computes embeddings.
	QueryVector []float32

	// Operator selects or/and term combination for the fulltext mode.
	Operator store.MatchOperator

	// Fuzzy switches the text_match mode from whole-content equality to
	// substring matching with position damping.
	Fuzzy bool

	// MinMatchCount zeroes keyword-mode candidates matching fewer distinct
	// query tokens than this. Zero means no minimum.
	MinMatchCount int
}

// Result is one ranked retrieval hit. Results are value objects: stages
// copy and re-score them freely, and list order is the primary signal.
type Result struct {
	ChunkID    string            `json:"chunk_id"`
	DocumentID string            `json:"document_id"`
	Content    string            `json:"content"`
	Score      float64           `json:"score"`
	Metadata   map[string]string `json:"metadata"`
}

// clone returns a copy safe for independent re-scoring.
func (r *Result) clone() *Result {
	c := *r
	return &c
}

// Response is the pipeline output. SourceErr carries the typed collaborator
// failure when the pipeline degraded to an empty or partial list, so callers
// can tell "no matches" from "backend down".
type Response struct {
	Results   []*Result
	SourceErr error
}

// Source produces raw scored candidates for one mode. Candidate expansion
// only: no normalization, filtering, or truncation beyond the k cap.
type Source interface {
	Retrieve(ctx context.Context, req Request, k int) ([]*Result, error)
}

// resultFromChunk projects a stored chunk into a result with the given score.
func resultFromChunk(ch *store.ChunkRecord, score float64) *Result {
	return &Result{
		ChunkID:    ch.ID,
		DocumentID: ch.DocumentID,
		Content:    ch.Content,
		Score:      score,
		Metadata:   ch.Metadata,
	}
}
