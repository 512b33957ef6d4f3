// Package store provides the storage collaborators behind the retrieval
// pipeline: SQLite metadata persistence, a Bleve text index, and an HNSW
// vector store. Tenant is an opaque partition key on every record.
package store

import (
	"context"
	"fmt"
	"time"
)

// Document represents an indexed source document.
type Document struct {
	ID          string    // SHA256(tenant + path)
	Tenant      string    // Opaque partition key
	Path        string    // Source path or logical name
	ContentHash string    // SHA256 of the parsed text
	IndexedAt   time.Time // When last indexed
}

// ChunkRecord is a persisted segmentation chunk.
type ChunkRecord struct {
	ID            string            // SHA256(document_id + chunk_index + content hash)
	DocumentID    string            // Owning document
	Tenant        string            // Opaque partition key
	ChunkIndex    int               // Position within the document
	Content       string            // Chunk text
	StartIndex    int               // Rune offset into the cleaned document text
	EndIndex      int               // Exclusive rune offset
	ParentChunkID *int              // chunk_index of the owning parent, parent_child only
	Metadata      map[string]string // Strategy metadata
	CreatedAt     time.Time
}

// MetadataStore persists documents and chunks in SQLite.
type MetadataStore interface {
	// Document operations
	SaveDocument(ctx context.Context, doc *Document) error
	GetDocument(ctx context.Context, id string) (*Document, error)
	GetDocumentByPath(ctx context.Context, tenant, path string) (*Document, error)
	ListDocuments(ctx context.Context, tenant string) ([]*Document, error)
	DeleteDocument(ctx context.Context, id string) error // cascades to chunks

	// Chunk operations
	SaveChunks(ctx context.Context, chunks []*ChunkRecord) error
	GetChunk(ctx context.Context, id string) (*ChunkRecord, error)
	GetChunks(ctx context.Context, ids []string) ([]*ChunkRecord, error)
	GetChunksByDocument(ctx context.Context, documentID string) ([]*ChunkRecord, error)
	DeleteChunksByDocument(ctx context.Context, documentID string) error

	// QueryChunks returns up to limit chunks in the tenant partition whose
	// content contains any of the given terms (candidate rows for the
	// text_match and keyword sources; scoring happens in the caller).
	QueryChunks(ctx context.Context, tenant string, terms []string, limit int) ([]*ChunkRecord, error)

	// CountChunks returns the number of chunks in the tenant partition.
	CountChunks(ctx context.Context, tenant string) (int, error)

	// State operations (key-value store for index-level state)
	GetState(ctx context.Context, key string) (string, error)
	SetState(ctx context.Context, key, value string) error

	// Lifecycle
	Close() error
}

// State keys recorded alongside the index.
const (
	// StateKeyIndexDimension stores the embedding dimension used for the index
	StateKeyIndexDimension = "index_embedding_dimension"
	// StateKeyIndexModel stores the embedding model name used for the index
	StateKeyIndexModel = "index_embedding_model"
)

// TextDoc is a chunk projected into the text index.
type TextDoc struct {
	ID      string // Chunk ID
	Tenant  string // Partition key, matched exactly
	Content string // Chunk text
}

// TextResult is a single text index hit.
type TextResult struct {
	ID    string
	Score float64
}

// MatchOperator selects how multi-term fulltext queries combine terms.
type MatchOperator string

const (
	MatchAny MatchOperator = "or"
	MatchAll MatchOperator = "and"
)

// TextIndex provides keyword, fulltext, and phrase search over chunks.
type TextIndex interface {
	// Index adds or replaces documents.
	Index(ctx context.Context, docs []*TextDoc) error

	// Search scores documents in the tenant partition against query with
	// BM25 (serves the keyword mode's backend candidates).
	Search(ctx context.Context, tenant, query string, limit int) ([]*TextResult, error)

	// MatchSearch runs a fulltext match with the given operator.
	MatchSearch(ctx context.Context, tenant, query string, op MatchOperator, limit int) ([]*TextResult, error)

	// PhraseSearch matches the query terms as a contiguous phrase.
	PhraseSearch(ctx context.Context, tenant, phrase string, limit int) ([]*TextResult, error)

	// Delete removes documents by ID.
	Delete(ctx context.Context, ids []string) error

	// Count returns the number of indexed documents.
	Count() (int, error)

	Close() error
}

// VectorResult is a single vector search hit.
type VectorResult struct {
	ID       string  // Chunk ID
	Distance float32 // Cosine distance, 0 (identical) to 2 (opposite)
	Score    float32 // Normalized similarity in [0,1]
}

// VectorStoreConfig configures the vector store.
type VectorStoreConfig struct {
	// Dimensions is the vector dimension (0 = fixed on first Add)
	Dimensions int

	// M is HNSW max connections per layer (default: 16)
	M int

	// EfSearch is HNSW query-time search width (default: 20)
	EfSearch int
}

// DefaultVectorStoreConfig returns sensible defaults.
func DefaultVectorStoreConfig(dimensions int) VectorStoreConfig {
	return VectorStoreConfig{
		Dimensions: dimensions,
		M:          16,
		EfSearch:   20,
	}
}

// VectorStore provides semantic search, partitioned by tenant.
type VectorStore interface {
	// Add inserts vectors into the tenant partition. Existing IDs are replaced.
	Add(ctx context.Context, tenant string, ids []string, vectors [][]float32) error

	// Search finds the k nearest neighbors within the tenant partition.
	Search(ctx context.Context, tenant string, query []float32, k int) ([]*VectorResult, error)

	// Delete removes vectors by ID from the tenant partition.
	Delete(ctx context.Context, tenant string, ids []string) error

	// Count returns the number of vectors in the tenant partition.
	Count(tenant string) int

	// Save persists all partitions under dir.
	Save(dir string) error

	// Load restores all partitions from dir.
	Load(dir string) error

	Close() error
}

// ErrDimensionMismatch indicates a vector dimension mismatch.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d (reindex with the current embedding model)", e.Expected, e.Got)
}
