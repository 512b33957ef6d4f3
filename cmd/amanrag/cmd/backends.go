package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/Aman-CERP/amanrag/internal/config"
	"github.com/Aman-CERP/amanrag/internal/store"
)

// backends bundles the three storage collaborators living under the index
// directory: metadata.db (SQLite), text.bleve (full-text), and the HNSW
// vector files.
type backends struct {
	meta    *store.SQLiteMetadataStore
	text    *store.BleveTextIndex
	vectors *store.HNSWStore
	dir     string
}

// openBackends opens or creates all three stores under cfg.Paths.IndexDir
// and loads any persisted vectors. Callers must call close when done.
func openBackends(cfg *config.Config) (*backends, error) {
	dir := cfg.Paths.IndexDir
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create index directory: %w", err)
	}

	meta, err := store.NewSQLiteMetadataStore(filepath.Join(dir, "metadata.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to open metadata store: %w", err)
	}

	text, err := store.NewBleveTextIndex(filepath.Join(dir, "text.bleve"))
	if err != nil {
		_ = meta.Close()
		return nil, fmt.Errorf("failed to open text index: %w", err)
	}

	vectors, err := store.NewHNSWStore(store.DefaultVectorStoreConfig(cfg.Embeddings.Dimensions))
	if err != nil {
		_ = text.Close()
		_ = meta.Close()
		return nil, fmt.Errorf("failed to create vector store: %w", err)
	}
	if err := vectors.Load(dir); err != nil {
		_ = text.Close()
		_ = meta.Close()
		return nil, fmt.Errorf("failed to load vector store: %w", err)
	}

	return &backends{meta: meta, text: text, vectors: vectors, dir: dir}, nil
}

// saveVectors persists the in-memory vector graphs back to the index dir.
func (b *backends) saveVectors() error {
	return b.vectors.Save(b.dir)
}

func (b *backends) close() {
	if err := b.vectors.Close(); err != nil {
		slog.Warn("failed to close vector store", "error", err)
	}
	if err := b.text.Close(); err != nil {
		slog.Warn("failed to close text index", "error", err)
	}
	if err := b.meta.Close(); err != nil {
		slog.Warn("failed to close metadata store", "error", err)
	}
}
