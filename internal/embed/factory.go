package embed

import (
	"context"
	"log/slog"

	"github.com/Aman-CERP/amanrag/internal/config"
	ragerr "github.com/Aman-CERP/amanrag/internal/errors"
)

// Embedder provider names accepted in configuration.
const (
	ProviderOllama = "ollama"
	ProviderStatic = "static"
	ProviderNone   = "none"
)

// NewFromConfig constructs the configured embedder, wrapped in an LRU cache.
//
// Provider "none" returns nil without error: callers treat a nil embedder as
// "semantic features degrade to their fallbacks". An unreachable Ollama is an
// error here, not a silent degrade, so misconfiguration surfaces at startup.
func NewFromConfig(ctx context.Context, cfg config.EmbeddingsConfig, logger *slog.Logger) (Embedder, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.Provider {
	case ProviderNone, "":
		logger.Info("embeddings disabled, semantic features will degrade")
		return nil, nil

	case ProviderStatic:
		logger.Info("using static hash embedder", "dimensions", StaticDimensions)
		return NewCachedEmbedder(NewStaticEmbedder(), cfg.CacheSize), nil

	case ProviderOllama:
		ollamaCfg := DefaultOllamaConfig()
		if cfg.Host != "" {
			ollamaCfg.Host = cfg.Host
		}
		if cfg.Model != "" {
			ollamaCfg.Model = cfg.Model
		}
		ollamaCfg.Dimensions = cfg.Dimensions
		if cfg.BatchSize > 0 {
			ollamaCfg.BatchSize = cfg.BatchSize
		}

		inner, err := NewOllamaEmbedder(ctx, ollamaCfg)
		if err != nil {
			return nil, err
		}
		logger.Info("using ollama embedder",
			"model", inner.ModelName(),
			"dimensions", inner.Dimensions(),
			"host", ollamaCfg.Host)
		return NewCachedEmbedder(inner, cfg.CacheSize), nil

	default:
		return nil, ragerr.ConfigError("unknown embeddings provider: "+cfg.Provider, nil)
	}
}
