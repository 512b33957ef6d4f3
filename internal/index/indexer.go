// Package index orchestrates document ingestion: parse, chunk, embed, and
// persist into the metadata store, text index, and vector store. Indexing is
// incremental by content hash and degrades gracefully when the embedding
// collaborator is unavailable.
package index

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/Aman-CERP/amanrag/internal/chunk"
	"github.com/Aman-CERP/amanrag/internal/embed"
	ragerr "github.com/Aman-CERP/amanrag/internal/errors"
	"github.com/Aman-CERP/amanrag/internal/parse"
	"github.com/Aman-CERP/amanrag/internal/store"
)

// DefaultMaxFileSize caps indexable files at 10MB; larger files are skipped
// with a warning.
const DefaultMaxFileSize int64 = 10 * 1024 * 1024

// Config wires the indexer.
type Config struct {
	// Tenant is the partition key for everything this indexer writes.
	Tenant string

	// Strategy and ChunkConfig select the segmentation behavior.
	Strategy    chunk.Strategy
	ChunkConfig chunk.Config

	// MaxFileSize caps indexable files in bytes (default 10MB).
	MaxFileSize int64
}

// Stats summarizes one indexing run.
type Stats struct {
	Indexed  int // documents written
	Skipped  int // unchanged documents
	Failed   int // documents that errored
	Chunks   int // chunks written
	Embedded int // chunks with vectors
}

// Indexer ingests documents into the three storage collaborators.
type Indexer struct {
	cfg      Config
	meta     store.MetadataStore
	text     store.TextIndex
	vectors  store.VectorStore
	embedder embed.Embedder // nil disables vector indexing
	parsers  *parse.Registry
	logger   *slog.Logger
}

// New creates an indexer. A nil embedder disables the vector index; semantic
// retrieval then degrades until the documents are re-indexed with one.
func New(cfg Config, meta store.MetadataStore, text store.TextIndex, vectors store.VectorStore, embedder embed.Embedder, parsers *parse.Registry, logger *slog.Logger) *Indexer {
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = DefaultMaxFileSize
	}
	if parsers == nil {
		parsers = parse.NewRegistry()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{
		cfg:      cfg,
		meta:     meta,
		text:     text,
		vectors:  vectors,
		embedder: embedder,
		parsers:  parsers,
		logger:   logger,
	}
}

// IndexDir walks root and indexes every regular file with a registered
// extension. Per-file failures are logged and counted, not fatal.
func (ix *Indexer) IndexDir(ctx context.Context, root string) (*Stats, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", root, err)
	}

	supported := make(map[string]bool)
	for _, ext := range ix.parsers.Extensions() {
		supported[ext] = true
	}

	stats := &Stats{}
	walkErr := filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != absRoot {
				return filepath.SkipDir
			}
			return nil
		}
		if !supported[strings.ToLower(filepath.Ext(path))] {
			return nil
		}

		fileStats, err := ix.IndexFile(ctx, absRoot, path)
		if err != nil {
			ix.logger.Warn("failed to index file", "path", path, "error", err)
			stats.Failed++
			return nil
		}
		stats.merge(fileStats)
		return nil
	})
	if walkErr != nil {
		return stats, fmt.Errorf("walk failed: %w", walkErr)
	}

	ix.logger.Info("indexing run complete",
		"root", absRoot,
		"indexed", stats.Indexed,
		"skipped", stats.Skipped,
		"failed", stats.Failed,
		"chunks", stats.Chunks)
	return stats, nil
}

// IndexFile indexes one file, keyed by its path relative to root.
// Unchanged content (same hash) is skipped.
func (ix *Indexer) IndexFile(ctx context.Context, root, path string) (*Stats, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, ragerr.Wrap(ragerr.ErrCodeFileNotFound, err)
	}
	if info.Size() > ix.cfg.MaxFileSize {
		ix.logger.Warn("skipping oversized file", "path", path, "size", info.Size())
		return &Stats{Skipped: 1}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, ragerr.Wrap(ragerr.ErrCodeFileNotFound, err)
	}

	relPath, err := filepath.Rel(root, path)
	if err != nil {
		relPath = path
	}

	return ix.IndexDocument(ctx, relPath, filepath.Base(path), data)
}

// IndexDocument ingests one document given its logical path and raw bytes.
func (ix *Indexer) IndexDocument(ctx context.Context, logicalPath, filename string, data []byte) (*Stats, error) {
	text, fileMeta, err := ix.parsers.Parse(ctx, filename, data)
	if err != nil {
		return nil, err
	}

	contentHash := hashHex(text)
	docID := documentID(ix.cfg.Tenant, logicalPath)

	existing, err := ix.meta.GetDocument(ctx, docID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, ragerr.Collaborator(ragerr.ErrCodeStorageFailed, "document lookup failed", err)
	}
	if existing != nil && existing.ContentHash == contentHash {
		return &Stats{Skipped: 1}, nil
	}

	// Replacing: clear the previous chunks from all three indexes first.
	if existing != nil {
		if err := ix.removeChunks(ctx, docID); err != nil {
			return nil, err
		}
	}

	chunks, err := chunk.Segment(ctx, text, ix.cfg.Strategy, ix.cfg.ChunkConfig, chunk.Deps{
		Embedder: ix.embedder,
		Logger:   ix.logger,
	})
	if err != nil {
		return nil, err
	}

	records := make([]*store.ChunkRecord, len(chunks))
	textDocs := make([]*store.TextDoc, len(chunks))
	now := time.Now().UTC()
	for i, ch := range chunks {
		metadata := make(map[string]string, len(ch.Metadata)+len(fileMeta))
		for k, v := range fileMeta {
			metadata[k] = v
		}
		for k, v := range ch.Metadata {
			metadata[k] = v
		}

		id := chunkID(docID, ch.Index)
		records[i] = &store.ChunkRecord{
			ID:            id,
			DocumentID:    docID,
			Tenant:        ix.cfg.Tenant,
			ChunkIndex:    ch.Index,
			Content:       ch.Content,
			StartIndex:    ch.StartIndex,
			EndIndex:      ch.EndIndex,
			ParentChunkID: ch.ParentIndex,
			Metadata:      metadata,
			CreatedAt:     now,
		}
		textDocs[i] = &store.TextDoc{ID: id, Tenant: ix.cfg.Tenant, Content: ch.Content}
	}

	if err := ix.meta.SaveDocument(ctx, &store.Document{
		ID:          docID,
		Tenant:      ix.cfg.Tenant,
		Path:        logicalPath,
		ContentHash: contentHash,
		IndexedAt:   now,
	}); err != nil {
		return nil, ragerr.Collaborator(ragerr.ErrCodeStorageFailed, "failed to save document", err)
	}
	if err := ix.meta.SaveChunks(ctx, records); err != nil {
		return nil, ragerr.Collaborator(ragerr.ErrCodeStorageFailed, "failed to save chunks", err)
	}
	if err := ix.text.Index(ctx, textDocs); err != nil {
		return nil, ragerr.Collaborator(ragerr.ErrCodeStorageFailed, "failed to index text", err)
	}

	stats := &Stats{Indexed: 1, Chunks: len(chunks)}

	embedded, err := ix.embedChunks(ctx, records)
	if err != nil {
		// Vector indexing is best effort: keyword and literal retrieval
		// still work without it.
		ix.logger.Warn("embedding failed, document indexed without vectors",
			"path", logicalPath, "error", err)
	}
	stats.Embedded = embedded

	return stats, nil
}

// embedChunks computes and stores vectors for the given chunk records.
func (ix *Indexer) embedChunks(ctx context.Context, records []*store.ChunkRecord) (int, error) {
	if ix.embedder == nil || ix.vectors == nil || len(records) == 0 {
		return 0, nil
	}

	if err := ix.checkIndexState(ctx); err != nil {
		return 0, err
	}

	texts := make([]string, len(records))
	ids := make([]string, len(records))
	for i, rec := range records {
		texts[i] = rec.Content
		ids[i] = rec.ID
	}

	vectors, err := ix.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, err
	}

	if err := ix.vectors.Add(ctx, ix.cfg.Tenant, ids, vectors); err != nil {
		return 0, ragerr.Collaborator(ragerr.ErrCodeStorageFailed, "failed to store vectors", err)
	}
	return len(ids), nil
}

// checkIndexState verifies the vector index was built with the current
// embedding model and dimension, recording them on first use.
func (ix *Indexer) checkIndexState(ctx context.Context) error {
	dims := strconv.Itoa(ix.embedder.Dimensions())
	model := ix.embedder.ModelName()

	storedDims, err := ix.meta.GetState(ctx, store.StateKeyIndexDimension)
	switch {
	case errors.Is(err, store.ErrNotFound):
		if err := ix.meta.SetState(ctx, store.StateKeyIndexDimension, dims); err != nil {
			return ragerr.Collaborator(ragerr.ErrCodeStorageFailed, "failed to record index dimension", err)
		}
		if err := ix.meta.SetState(ctx, store.StateKeyIndexModel, model); err != nil {
			return ragerr.Collaborator(ragerr.ErrCodeStorageFailed, "failed to record index model", err)
		}
		return nil
	case err != nil:
		return ragerr.Collaborator(ragerr.ErrCodeStorageFailed, "failed to read index state", err)
	}

	if storedDims != dims {
		return ragerr.New(ragerr.ErrCodeDimensionMismatch,
			fmt.Sprintf("index was built with %s dimensions, embedder produces %s; re-index with the current model", storedDims, dims), nil)
	}
	return nil
}

// RemoveDocument deletes a document and its chunks from all three indexes.
// Removing an unknown path is a no-op.
func (ix *Indexer) RemoveDocument(ctx context.Context, logicalPath string) error {
	docID := documentID(ix.cfg.Tenant, logicalPath)

	_, err := ix.meta.GetDocument(ctx, docID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return ragerr.Collaborator(ragerr.ErrCodeStorageFailed, "document lookup failed", err)
	}

	if err := ix.removeChunks(ctx, docID); err != nil {
		return err
	}
	if err := ix.meta.DeleteDocument(ctx, docID); err != nil {
		return ragerr.Collaborator(ragerr.ErrCodeStorageFailed, "failed to delete document", err)
	}
	return nil
}

// removeChunks clears one document's chunks from the text and vector indexes
// and the metadata store.
func (ix *Indexer) removeChunks(ctx context.Context, docID string) error {
	chunks, err := ix.meta.GetChunksByDocument(ctx, docID)
	if err != nil {
		return ragerr.Collaborator(ragerr.ErrCodeStorageFailed, "failed to load chunks", err)
	}
	if len(chunks) == 0 {
		return nil
	}

	ids := make([]string, len(chunks))
	for i, ch := range chunks {
		ids[i] = ch.ID
	}

	if err := ix.text.Delete(ctx, ids); err != nil {
		return ragerr.Collaborator(ragerr.ErrCodeStorageFailed, "failed to delete text docs", err)
	}
	if ix.vectors != nil {
		if err := ix.vectors.Delete(ctx, ix.cfg.Tenant, ids); err != nil {
			return ragerr.Collaborator(ragerr.ErrCodeStorageFailed, "failed to delete vectors", err)
		}
	}
	return ix.meta.DeleteChunksByDocument(ctx, docID)
}

func (s *Stats) merge(other *Stats) {
	s.Indexed += other.Indexed
	s.Skipped += other.Skipped
	s.Failed += other.Failed
	s.Chunks += other.Chunks
	s.Embedded += other.Embedded
}

// documentID derives a stable ID from the tenant and logical path.
func documentID(tenant, path string) string {
	return hashHex(tenant + "\x00" + filepath.ToSlash(path))[:16]
}

// chunkID derives a stable ID from the document and chunk index.
func chunkID(docID string, index int) string {
	return docID + "-" + strconv.Itoa(index)
}

func hashHex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
