package chunk

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	ragerr "github.com/Aman-CERP/amanrag/internal/errors"
)

// Deps carries the collaborators a strategy may need. Only the semantic
// strategy uses them today.
type Deps struct {
	Embedder Embedder
	Logger   *slog.Logger
}

// Factory constructs a chunker for a strategy.
type Factory func(cfg Config, deps Deps) (Chunker, error)

// registry maps strategy names to constructors. Populated explicitly below;
// no reflection. Register extends it at startup.
var (
	registryMu sync.RWMutex
	registry   = map[Strategy]Factory{
		StrategyFixed: func(cfg Config, _ Deps) (Chunker, error) {
			return NewFixedChunker(cfg)
		},
		StrategyParentChild: func(cfg Config, _ Deps) (Chunker, error) {
			return NewParentChildChunker(cfg)
		},
		StrategyTitle: func(cfg Config, _ Deps) (Chunker, error) {
			return NewTitleChunker(cfg)
		},
		StrategySemantic: func(cfg Config, deps Deps) (Chunker, error) {
			return NewSemanticChunker(cfg, deps.Embedder, deps.Logger)
		},
	}
)

// Register adds or replaces a strategy constructor. Call at startup, before
// any New or Segment.
func Register(strategy Strategy, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[strategy] = factory
}

// New constructs the chunker for the named strategy.
// Unknown strategies fail at construction time.
func New(strategy Strategy, cfg Config, deps Deps) (Chunker, error) {
	registryMu.RLock()
	factory, ok := registry[strategy]
	registryMu.RUnlock()
	if !ok {
		return nil, ragerr.UnsupportedStrategy(string(strategy))
	}
	return factory(cfg, deps)
}

// Strategies returns the registered strategy names, sorted.
func Strategies() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(registry))
	for s := range registry {
		names = append(names, string(s))
	}
	sort.Strings(names)
	return names
}

// Segment is the package-level convenience entry point: it resolves the
// strategy, constructs the chunker, and runs it.
func Segment(ctx context.Context, text string, strategy Strategy, cfg Config, deps Deps) ([]*Chunk, error) {
	chunker, err := New(strategy, cfg, deps)
	if err != nil {
		return nil, err
	}
	return chunker.Chunk(ctx, text)
}
