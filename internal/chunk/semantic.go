package chunk

import (
	"context"
	"log/slog"
	"math"
	"strconv"
	"strings"

	ragerr "github.com/Aman-CERP/amanrag/internal/errors"
)

// SemanticChunker splits text into sentences and greedily accumulates them
// into chunks, inserting a boundary before the most recent sentence when the
// embedding cosine similarity between the two latest sentences drops below
// SimilarityThreshold.
//
// The embedding model is an external collaborator. When it is absent or fails
// mid-run, the chunker degrades deterministically to pure size-based sentence
// accumulation; chunks produced on the degraded path carry the metadata tag
// fallback=size.
//
// The chunker keeps no mutable state between runs, so a single instance is
// safe for concurrent use.
type SemanticChunker struct {
	embedder  Embedder
	threshold float64
	minSize   int
	maxSize   int
	logger    *slog.Logger
}

var _ Chunker = (*SemanticChunker)(nil)

// NewSemanticChunker creates a semantic chunker from cfg. A nil embedder is
// allowed and selects the size-based fallback from the start.
func NewSemanticChunker(cfg Config, embedder Embedder, logger *slog.Logger) (*SemanticChunker, error) {
	if cfg.MaxChunkSize <= 0 {
		return nil, ragerr.ConfigError("max_chunk_size must be positive", nil)
	}
	if cfg.MinChunkSize < 0 || cfg.MinChunkSize > cfg.MaxChunkSize {
		return nil, ragerr.ConfigError("min_chunk_size must be in [0, max_chunk_size]", nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SemanticChunker{
		embedder:  embedder,
		threshold: cfg.SimilarityThreshold,
		minSize:   cfg.MinChunkSize,
		maxSize:   cfg.MaxChunkSize,
		logger:    logger,
	}, nil
}

// Strategy implements Chunker.
func (c *SemanticChunker) Strategy() Strategy { return StrategySemantic }

// semanticRun holds the per-run accumulation state, so the chunker itself
// stays immutable and concurrency-safe.
type semanticRun struct {
	chunks     []*Chunk
	sentences  []string
	text       strings.Builder
	index      int
	startIndex int
	totalRunes int
	fallback   bool
}

// Chunk implements Chunker.
func (c *SemanticChunker) Chunk(ctx context.Context, text string) ([]*Chunk, error) {
	if err := validateText(text); err != nil {
		return nil, err
	}

	cleaned := Clean(text)
	totalRunes := len([]rune(cleaned))
	sentences := SplitSentences(cleaned)
	if len(sentences) == 0 {
		return nil, nil
	}

	run := &semanticRun{totalRunes: totalRunes, fallback: c.embedder == nil}

	// Short text: one chunk, no model call.
	if totalRunes <= c.maxSize {
		return []*Chunk{{
			Content:    cleaned,
			Index:      0,
			StartIndex: 0,
			EndIndex:   totalRunes,
			Metadata: map[string]string{
				MetaStrategy:      string(StrategySemantic),
				MetaSentenceCount: strconv.Itoa(len(sentences)),
			},
		}}, nil
	}

	for _, sentence := range sentences {
		sentenceLen := len([]rune(sentence))

		// Adding this sentence would exceed the size limit: close the
		// current chunk first.
		if run.text.Len() > 0 && run.runeLen()+sentenceLen > c.maxSize {
			c.emit(run, "")
		}

		run.sentences = append(run.sentences, sentence)
		run.text.WriteString(sentence)
		run.text.WriteString(" ")

		if run.fallback || run.runeLen() < c.minSize || len(run.sentences) < 2 {
			continue
		}

		prev := run.sentences[len(run.sentences)-2]
		curr := run.sentences[len(run.sentences)-1]
		similarity, err := c.sentenceSimilarity(ctx, prev, curr)
		if err != nil {
			// Degrade for the remainder of the run; size-based accumulation
			// keeps going without similarity checks.
			c.logger.Warn("embedding collaborator failed, degrading to size-based chunking",
				"error", err)
			run.fallback = true
			continue
		}

		if similarity < c.threshold {
			// Boundary before the last sentence: emit everything accumulated
			// so far except it, then restart with the last sentence.
			last := run.sentences[len(run.sentences)-1]
			run.sentences = run.sentences[:len(run.sentences)-1]
			boundaryText := strings.Join(run.sentences, " ")
			run.text.Reset()
			run.text.WriteString(boundaryText)
			c.emit(run, strconv.FormatFloat(similarity, 'f', 4, 64))

			run.sentences = append(run.sentences, last)
			run.text.WriteString(last)
			run.text.WriteString(" ")
		}
	}

	if strings.TrimSpace(run.text.String()) != "" {
		c.emit(run, "")
	}

	return run.chunks, nil
}

// runeLen returns the rune length of the accumulated chunk text.
func (r *semanticRun) runeLen() int {
	return len([]rune(r.text.String()))
}

// emit closes the current accumulation into a chunk. similarity is recorded
// in metadata when the boundary came from a similarity drop.
func (c *SemanticChunker) emit(run *semanticRun, similarity string) {
	content := strings.TrimSpace(run.text.String())
	if content == "" {
		return
	}

	end := run.startIndex + run.runeLen()
	if end > run.totalRunes {
		end = run.totalRunes
	}

	metadata := map[string]string{
		MetaStrategy:      string(StrategySemantic),
		MetaSentenceCount: strconv.Itoa(len(run.sentences)),
	}
	if similarity != "" {
		metadata[MetaSimilarity] = similarity
	}
	if run.fallback {
		metadata[MetaFallback] = "size"
	}

	run.chunks = append(run.chunks, &Chunk{
		Content:    content,
		Index:      run.index,
		StartIndex: run.startIndex,
		EndIndex:   end,
		Metadata:   metadata,
	})

	run.index++
	run.startIndex = end
	run.sentences = nil
	run.text.Reset()
}

// sentenceSimilarity embeds both sentences and returns their cosine
// similarity.
func (c *SemanticChunker) sentenceSimilarity(ctx context.Context, a, b string) (float64, error) {
	va, err := c.embedder.Embed(ctx, a)
	if err != nil {
		return 0, ragerr.Collaborator(ragerr.ErrCodeEmbeddingFailed, "failed to embed sentence", err)
	}
	vb, err := c.embedder.Embed(ctx, b)
	if err != nil {
		return 0, ragerr.Collaborator(ragerr.ErrCodeEmbeddingFailed, "failed to embed sentence", err)
	}
	return cosineSimilarity(va, vb), nil
}

// cosineSimilarity computes the cosine similarity of two vectors.
// Returns 0 when either vector has zero magnitude or lengths differ.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
