package retrieve

import (
	"log/slog"
	"sort"
	"sync"

	ragerr "github.com/Aman-CERP/amanrag/internal/errors"
	"github.com/Aman-CERP/amanrag/internal/store"
)

// Registry maps mode names to candidate sources. An explicit typed mapping,
// extended with Register, resolved at call time.
type Registry struct {
	mu      sync.RWMutex
	sources map[Mode]Source
}

// NewRegistry wires the built-in modes over the storage collaborators. A nil
// vector store leaves the semantic and hybrid modes unregistered.
func NewRegistry(vectors store.VectorStore, index store.TextIndex, meta store.MetadataStore, fuse FusionFunc, logger *slog.Logger) *Registry {
	if fuse == nil {
		fuse = NewRRFFusion(DefaultRRFK, 0.5, 0.5)
	}

	r := &Registry{sources: make(map[Mode]Source)}

	keyword := NewKeywordSource(index, meta)
	r.sources[ModeKeyword] = keyword
	r.sources[ModeFulltext] = NewFulltextSource(index, meta)
	r.sources[ModeTextMatch] = NewTextMatchSource(meta)
	r.sources[ModePhraseMatch] = NewPhraseMatchSource(index, meta)

	if vectors != nil {
		semantic := NewSemanticSource(vectors, meta)
		r.sources[ModeSemantic] = semantic
		r.sources[ModeHybrid] = NewHybridSource(semantic, keyword, fuse, logger)
	}

	return r
}

// Get resolves a mode to its source.
func (r *Registry) Get(mode Mode) (Source, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	source, ok := r.sources[mode]
	if !ok {
		return nil, ragerr.UnsupportedMode(string(mode))
	}
	return source, nil
}

// Register adds or replaces a mode.
func (r *Registry) Register(mode Mode, source Source) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[mode] = source
}

// Modes returns the registered mode names, sorted.
func (r *Registry) Modes() []Mode {
	r.mu.RLock()
	defer r.mu.RUnlock()

	modes := make([]Mode, 0, len(r.sources))
	for mode := range r.sources {
		modes = append(modes, mode)
	}
	sort.Slice(modes, func(i, j int) bool { return modes[i] < modes[j] })
	return modes
}
