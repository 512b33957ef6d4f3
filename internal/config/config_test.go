package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ragerr "github.com/Aman-CERP/amanrag/internal/errors"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "fixed", cfg.Chunking.Strategy)
	assert.Equal(t, 512, cfg.Chunking.ChunkSize)
	assert.Equal(t, "hybrid", cfg.Retrieval.Mode)
	assert.Equal(t, 60, cfg.Fusion.RRFK)
	assert.Equal(t, 0.5, cfg.Fusion.SemanticWeight)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Chunking.ChunkSize, cfg.Chunking.ChunkSize)
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
chunking:
  strategy: title
  chunk_size: 256
retrieval:
  mode: semantic
  top_k: 5
fusion:
  method: weighted
  rrf_k: 30
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "title", cfg.Chunking.Strategy)
	assert.Equal(t, 256, cfg.Chunking.ChunkSize)
	assert.Equal(t, "semantic", cfg.Retrieval.Mode)
	assert.Equal(t, 5, cfg.Retrieval.TopK)
	assert.Equal(t, "weighted", cfg.Fusion.Method)
	assert.Equal(t, 30, cfg.Fusion.RRFK)

	// Untouched sections keep defaults
	assert.Equal(t, 50, cfg.Chunking.ChunkOverlap)
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("retrieval:\n  top_k: 5\n"), 0o644))

	t.Setenv("AMANRAG_TOP_K", "25")
	t.Setenv("AMANRAG_SEARCH_MODE", "keyword")
	t.Setenv("AMANRAG_RERANK_ENABLED", "true")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 25, cfg.Retrieval.TopK)
	assert.Equal(t, "keyword", cfg.Retrieval.Mode)
	assert.True(t, cfg.Rerank.Enabled)
}

func TestLoad_MalformedYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("chunking: [not a map"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Equal(t, ragerr.ErrCodeConfigInvalid, ragerr.GetCode(err))
}

func TestValidate_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero chunk size", func(c *Config) { c.Chunking.ChunkSize = 0 }},
		{"overlap >= size", func(c *Config) { c.Chunking.ChunkOverlap = c.Chunking.ChunkSize }},
		{"child overlap >= child size", func(c *Config) { c.Chunking.ChildOverlap = c.Chunking.ChildSize }},
		{"ratio out of range", func(c *Config) { c.Chunking.MinContentRatio = 1.5 }},
		{"zero top_k", func(c *Config) { c.Retrieval.TopK = 0 }},
		{"threshold above 1", func(c *Config) { c.Retrieval.SimilarityThreshold = 1.1 }},
		{"zero multiplier", func(c *Config) { c.Retrieval.CandidateMultiplier = 0 }},
		{"bad fusion method", func(c *Config) { c.Fusion.Method = "mean" }},
		{"zero rrf k", func(c *Config) { c.Fusion.RRFK = 0 }},
		{"negative weight", func(c *Config) { c.Fusion.KeywordWeight = -0.1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Equal(t, ragerr.ErrCodeConfigInvalid, ragerr.GetCode(err))
		})
	}
}

func TestSaveAndReload_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "config.yaml")

	cfg := Default()
	cfg.Chunking.Strategy = "parent_child"
	cfg.Retrieval.SimilarityThreshold = 0.4
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "parent_child", loaded.Chunking.Strategy)
	assert.Equal(t, 0.4, loaded.Retrieval.SimilarityThreshold)
}
