package chunk

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ragerr "github.com/Aman-CERP/amanrag/internal/errors"
)

// topicEmbedder returns one of two orthogonal vectors depending on whether
// the sentence mentions "omega", so topic shifts are clean similarity drops.
type topicEmbedder struct{}

func (topicEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if strings.Contains(text, "omega") {
		return []float32{0, 1}, nil
	}
	return []float32{1, 0}, nil
}

type failingEmbedder struct{}

func (failingEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, errors.New("model unavailable")
}

func semanticConfig(minSize, maxSize int) Config {
	cfg := DefaultConfig()
	cfg.MinChunkSize = minSize
	cfg.MaxChunkSize = maxSize
	cfg.SimilarityThreshold = 0.7
	return cfg
}

const topicShiftText = "alpha number one. alpha number two. alpha number three. " +
	"omega number four. omega number five. omega number six. " +
	"omega number seven. omega number eight."

func TestNewSemanticChunker_RejectsBadConfig(t *testing.T) {
	tests := []struct {
		name    string
		minSize int
		maxSize int
	}{
		{"zero max size", 10, 0},
		{"min above max", 200, 100},
		{"negative min", -1, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSemanticChunker(semanticConfig(tt.minSize, tt.maxSize), nil, nil)
			require.Error(t, err)
			assert.Equal(t, ragerr.ErrCodeConfigInvalid, ragerr.GetCode(err))
		})
	}
}

func TestSemanticChunker_ShortTextSingleChunk(t *testing.T) {
	c, err := NewSemanticChunker(semanticConfig(100, 1000), nil, nil)
	require.NoError(t, err)

	chunks, err := c.Chunk(context.Background(), "One sentence. Two.")
	require.NoError(t, err)
	require.Len(t, chunks, 1)

	assert.Equal(t, "One sentence. Two.", chunks[0].Content)
	assert.Equal(t, "2", chunks[0].Metadata[MetaSentenceCount])
	assert.NotContains(t, chunks[0].Metadata, MetaFallback)
}

func TestSemanticChunker_BoundaryAtTopicShift(t *testing.T) {
	c, err := NewSemanticChunker(semanticConfig(10, 120), topicEmbedder{}, nil)
	require.NoError(t, err)

	chunks, err := c.Chunk(context.Background(), topicShiftText)
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	assert.Equal(t, "alpha number one alpha number two alpha number three", chunks[0].Content)
	assert.Equal(t, "3", chunks[0].Metadata[MetaSentenceCount])
	assert.Equal(t, "0.0000", chunks[0].Metadata[MetaSimilarity])
	assert.NotContains(t, chunks[0].Metadata, MetaFallback)

	assert.NotContains(t, chunks[0].Content, "omega")
	assert.NotContains(t, chunks[1].Content, "alpha")
	assert.Equal(t, "5", chunks[1].Metadata[MetaSentenceCount])
}

func TestSemanticChunker_NilEmbedderFallsBackToSize(t *testing.T) {
	c, err := NewSemanticChunker(semanticConfig(10, 120), nil, nil)
	require.NoError(t, err)

	chunks, err := c.Chunk(context.Background(), topicShiftText)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(chunks), 2)

	for _, ch := range chunks {
		assert.Equal(t, "size", ch.Metadata[MetaFallback])
		assert.NotContains(t, ch.Metadata, MetaSimilarity)
		assert.LessOrEqual(t, len([]rune(ch.Content)), 120)
	}
}

func TestSemanticChunker_EmbedderFailureDegradesRun(t *testing.T) {
	c, err := NewSemanticChunker(semanticConfig(10, 120), failingEmbedder{}, nil)
	require.NoError(t, err)

	chunks, err := c.Chunk(context.Background(), topicShiftText)
	require.NoError(t, err, "collaborator failure must degrade, not fail the run")
	require.GreaterOrEqual(t, len(chunks), 2)

	for _, ch := range chunks {
		assert.Equal(t, "size", ch.Metadata[MetaFallback])
	}
}

func TestSemanticChunker_Deterministic(t *testing.T) {
	c, err := NewSemanticChunker(semanticConfig(10, 120), topicEmbedder{}, nil)
	require.NoError(t, err)

	first, err := c.Chunk(context.Background(), topicShiftText)
	require.NoError(t, err)
	second, err := c.Chunk(context.Background(), topicShiftText)
	require.NoError(t, err)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, *first[i], *second[i])
	}
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"zero vector", []float32{0, 0}, []float32{1, 1}, 0},
		{"length mismatch", []float32{1}, []float32{1, 0}, 0},
		{"empty", nil, nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, cosineSimilarity(tt.a, tt.b), 1e-9)
		})
	}
}
