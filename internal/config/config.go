// Package config loads amanrag configuration from YAML with environment
// variable overrides. The resulting Config value is passed explicitly to
// constructors; there is no global settings singleton. Per-request overrides
// travel as parameters on the retrieval request, not as mutated config.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	ragerr "github.com/Aman-CERP/amanrag/internal/errors"
)

// Config is the complete amanrag configuration.
type Config struct {
	Paths      PathsConfig      `yaml:"paths"`
	Chunking   ChunkingConfig   `yaml:"chunking"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Fusion     FusionConfig     `yaml:"fusion"`
	Rerank     RerankConfig     `yaml:"rerank"`
	Embeddings EmbeddingsConfig `yaml:"embeddings"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// PathsConfig configures on-disk locations.
type PathsConfig struct {
	// IndexDir is the directory holding the SQLite metadata store, the text
	// index, and the vector store. Guarded by a file lock during indexing.
	IndexDir string `yaml:"index_dir"`
}

// ChunkingConfig configures the segmentation engine.
type ChunkingConfig struct {
	// Strategy is the default segmentation strategy:
	// fixed, parent_child, title, semantic.
	Strategy string `yaml:"strategy"`

	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`

	// Parent-child strategy knobs.
	ParentSize   int `yaml:"parent_size"`
	ChildSize    int `yaml:"child_size"`
	ChildOverlap int `yaml:"child_overlap"`

	// Title strategy knobs.
	MaxDepth       int  `yaml:"max_depth"`
	IncludeHeaders bool `yaml:"include_headers"`

	// Semantic strategy knobs.
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	MinChunkSize        int     `yaml:"min_chunk_size"`
	MaxChunkSize        int     `yaml:"max_chunk_size"`

	// MinContentRatio is the fraction of the window below which
	// sentence/paragraph boundary snapping is skipped. A tunable, not a law.
	MinContentRatio float64 `yaml:"min_content_ratio"`
}

// RetrievalConfig configures the retrieval pipeline shared by all modes.
type RetrievalConfig struct {
	// Mode is the default retrieval mode:
	// semantic, keyword, hybrid, fulltext, text_match, phrase_match.
	Mode string `yaml:"mode"`

	TopK int `yaml:"top_k"`

	// SimilarityThreshold drops normalized candidates scoring below it.
	// Zero disables threshold filtering.
	SimilarityThreshold float64 `yaml:"similarity_threshold"`

	// CandidateMultiplier widens the candidate pool before filtering and
	// reranking: candidateK = topK * multiplier when reranking is on.
	CandidateMultiplier int `yaml:"candidate_multiplier"`

	// DefaultTenant partitions the index when no tenant id is supplied.
	DefaultTenant string `yaml:"default_tenant"`
}

// FusionConfig parameterizes hybrid-mode fusion.
type FusionConfig struct {
	// Method selects the fusion algorithm: rrf or weighted.
	Method string `yaml:"method"`

	// RRFK is the RRF smoothing constant (default: 60).
	RRFK int `yaml:"rrf_k"`

	SemanticWeight float64 `yaml:"semantic_weight"`
	KeywordWeight  float64 `yaml:"keyword_weight"`
}

// RerankConfig configures the cross-encoder reranker adapter.
type RerankConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Model    string `yaml:"model"`
	Endpoint string `yaml:"endpoint"`
}

// EmbeddingsConfig configures the embedding collaborator.
type EmbeddingsConfig struct {
	// Provider selects the embedder: ollama or static.
	Provider   string `yaml:"provider"`
	Model      string `yaml:"model"`
	Host       string `yaml:"host"`
	Dimensions int    `yaml:"dimensions"`
	BatchSize  int    `yaml:"batch_size"`
	CacheSize  int    `yaml:"cache_size"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level    string `yaml:"level"`
	FilePath string `yaml:"file_path"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Paths: PathsConfig{
			IndexDir: defaultIndexDir(),
		},
		Chunking: ChunkingConfig{
			Strategy:            "fixed",
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
		},
		Retrieval: RetrievalConfig{
			Mode:                "hybrid",
			TopK:                10,
			SimilarityThreshold: 0.0,
			CandidateMultiplier: 5,
			DefaultTenant:       "default",
		},
		Fusion: FusionConfig{
			Method:         "rrf",
			RRFK:           60,
			SemanticWeight: 0.5,
			KeywordWeight:  0.5,
		},
		Rerank: RerankConfig{
			Enabled:  false,
			Model:    "bge-reranker-v2-m3",
			Endpoint: "http://localhost:11434",
		},
		Embeddings: EmbeddingsConfig{
			Provider:   "ollama",
			Model:      "nomic-embed-text",
			Host:       "http://localhost:11434",
			Dimensions: 0, // auto-detect
			BatchSize:  32,
			CacheSize:  1000,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// DefaultPath returns the default config file location under the user home.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "amanrag", "config.yaml")
	}
	return filepath.Join(home, ".amanrag", "config.yaml")
}

func defaultIndexDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "amanrag", "index")
	}
	return filepath.Join(home, ".amanrag", "index")
}

// Load reads configuration from the given YAML path, falling back to defaults
// when the file does not exist, then applies AMANRAG_* environment overrides
// and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// Defaults apply
		case err != nil:
			return nil, ragerr.Wrap(ragerr.ErrCodeConfigNotFound, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, ragerr.ConfigError(fmt.Sprintf("failed to parse %s", path), err)
			}
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides applies AMANRAG_* environment variables on top of the
// loaded file. Env vars have the highest priority.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("AMANRAG_INDEX_DIR"); v != "" {
		cfg.Paths.IndexDir = v
	}
	if v := os.Getenv("AMANRAG_CHUNK_STRATEGY"); v != "" {
		cfg.Chunking.Strategy = v
	}
	if v, ok := envInt("AMANRAG_CHUNK_SIZE"); ok {
		cfg.Chunking.ChunkSize = v
	}
	if v, ok := envInt("AMANRAG_CHUNK_OVERLAP"); ok {
		cfg.Chunking.ChunkOverlap = v
	}
	if v := os.Getenv("AMANRAG_SEARCH_MODE"); v != "" {
		cfg.Retrieval.Mode = v
	}
	if v, ok := envInt("AMANRAG_TOP_K"); ok {
		cfg.Retrieval.TopK = v
	}
	if v, ok := envFloat("AMANRAG_SIMILARITY_THRESHOLD"); ok {
		cfg.Retrieval.SimilarityThreshold = v
	}
	if v, ok := envBool("AMANRAG_RERANK_ENABLED"); ok {
		cfg.Rerank.Enabled = v
	}
	if v := os.Getenv("AMANRAG_RERANK_MODEL"); v != "" {
		cfg.Rerank.Model = v
	}
	if v := os.Getenv("AMANRAG_FUSION_METHOD"); v != "" {
		cfg.Fusion.Method = v
	}
	if v, ok := envFloat("AMANRAG_SEMANTIC_WEIGHT"); ok {
		cfg.Fusion.SemanticWeight = v
	}
	if v, ok := envFloat("AMANRAG_KEYWORD_WEIGHT"); ok {
		cfg.Fusion.KeywordWeight = v
	}
	if v := os.Getenv("AMANRAG_OLLAMA_HOST"); v != "" {
		cfg.Embeddings.Host = v
	}
	if v := os.Getenv("AMANRAG_EMBED_PROVIDER"); v != "" {
		cfg.Embeddings.Provider = v
	}
	if v := os.Getenv("AMANRAG_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func envFloat(key string) (float64, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func envBool(key string) (bool, bool) {
	v := os.Getenv(key)
	if v == "" {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false
	}
	return b, true
}

// Validate checks configuration invariants and returns an actionable error
// for the first violation found.
func (c *Config) Validate() error {
	if c.Chunking.ChunkSize <= 0 {
		return ragerr.ConfigError("chunking.chunk_size must be positive", nil)
	}
	if c.Chunking.ChunkOverlap < 0 {
		return ragerr.ConfigError("chunking.chunk_overlap must not be negative", nil)
	}
	if c.Chunking.ChunkOverlap >= c.Chunking.ChunkSize {
		return ragerr.ConfigError(
			fmt.Sprintf("chunking.chunk_overlap (%d) must be smaller than chunk_size (%d)",
				c.Chunking.ChunkOverlap, c.Chunking.ChunkSize), nil)
	}
	if c.Chunking.ChildOverlap >= c.Chunking.ChildSize {
		return ragerr.ConfigError(
			fmt.Sprintf("chunking.child_overlap (%d) must be smaller than child_size (%d)",
				c.Chunking.ChildOverlap, c.Chunking.ChildSize), nil)
	}
	if c.Chunking.MinContentRatio < 0 || c.Chunking.MinContentRatio > 1 {
		return ragerr.ConfigError("chunking.min_content_ratio must be within [0, 1]", nil)
	}
	if c.Retrieval.TopK <= 0 {
		return ragerr.ConfigError("retrieval.top_k must be positive", nil)
	}
	if c.Retrieval.SimilarityThreshold < 0 || c.Retrieval.SimilarityThreshold > 1 {
		return ragerr.ConfigError("retrieval.similarity_threshold must be within [0, 1]", nil)
	}
	if c.Retrieval.CandidateMultiplier < 1 {
		return ragerr.ConfigError("retrieval.candidate_multiplier must be at least 1", nil)
	}
	if c.Fusion.Method != "rrf" && c.Fusion.Method != "weighted" {
		return ragerr.ConfigError(
			fmt.Sprintf("fusion.method must be rrf or weighted, got %q", c.Fusion.Method), nil)
	}
	if c.Fusion.RRFK <= 0 {
		return ragerr.ConfigError("fusion.rrf_k must be positive", nil)
	}
	if c.Fusion.SemanticWeight < 0 || c.Fusion.KeywordWeight < 0 {
		return ragerr.ConfigError("fusion weights must not be negative", nil)
	}
	return nil
}

// Save writes the configuration to the given path as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return ragerr.ConfigError("failed to marshal config", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return ragerr.ConfigError("failed to create config directory", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return ragerr.ConfigError("failed to write config file", err)
	}
	return nil
}
