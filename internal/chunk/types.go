// Package chunk implements the segmentation engine: splitting document text
// into addressable chunks under several strategies (fixed window,
// parent-child, title-based, semantic).
//
// All sizes and offsets are measured in runes over the cleaned input text, so
// CJK and ASCII content chunk identically. Chunks are created once and never
// mutated after emission; ownership passes to the storage layer.
package chunk

import "context"

// Strategy identifies a segmentation strategy.
type Strategy string

const (
	StrategyFixed       Strategy = "fixed"
	StrategyParentChild Strategy = "parent_child"
	StrategyTitle       Strategy = "title"
	StrategySemantic    Strategy = "semantic"
)

// Metadata keys used by the built-in strategies.
const (
	MetaStrategy      = "strategy"
	MetaChunkSize     = "chunk_size"
	MetaChunkType     = "chunk_type" // "parent" or "child"
	MetaTitle         = "title"
	MetaTitleLevel    = "title_level"
	MetaSentenceCount = "sentence_count"
	MetaSimilarity    = "similarity"
	MetaFallback      = "fallback" // "size" when the semantic chunker degraded
)

// Chunk is a retrievable unit of segmented text.
//
// StartIndex/EndIndex are rune offsets into the cleaned source text with
// StartIndex <= EndIndex <= len(source). ParentIndex is set only by
// hierarchical strategies and references the chunk_index of a parent chunk
// emitted earlier in the same run; a child's [StartIndex, EndIndex) lies
// within its parent's range.
type Chunk struct {
	Content     string            `json:"content"`
	Index       int               `json:"chunk_index"`
	StartIndex  int               `json:"start_index"`
	EndIndex    int               `json:"end_index"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	ParentIndex *int              `json:"parent_chunk_id,omitempty"`
}

// Config carries the knobs shared by all strategies. Each strategy reads the
// subset it cares about.
type Config struct {
	ChunkSize    int
	ChunkOverlap int

	ParentSize   int
	ChildSize    int
	ChildOverlap int

	MaxDepth       int
	IncludeHeaders bool

	SimilarityThreshold float64
	MinChunkSize        int
	MaxChunkSize        int

	// MinContentRatio is the fraction of the window below which boundary
	// snapping (sentence or paragraph) is skipped.
	MinContentRatio float64
}

// DefaultConfig returns the default segmentation configuration.
func DefaultConfig() Config {
	return Config{
		ChunkSize:           512,
		ChunkOverlap:        50,
		ParentSize:          2000,
		ChildSize:           512,
		ChildOverlap:        50,
		MaxDepth:            6,
		IncludeHeaders:      true,
		SimilarityThreshold: 0.7,
		MinChunkSize:        100,
		MaxChunkSize:        1000,
		MinContentRatio:     0.5,
	}
}

// Chunker is the interface for splitting text into chunks.
type Chunker interface {
	// Chunk splits text into an ordered list of chunks.
	Chunk(ctx context.Context, text string) ([]*Chunk, error)

	// Strategy returns the strategy this chunker implements.
	Strategy() Strategy
}

// Embedder is the embedding collaborator consumed by the semantic strategy.
// It is satisfied by the embed package's implementations.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
