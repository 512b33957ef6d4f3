// Package parse turns raw document files into indexable text plus metadata.
// Parsers are registered by file extension; unknown extensions fall back to
// plain text so indexing never stalls on an exotic file.
package parse

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	ragerr "github.com/Aman-CERP/amanrag/internal/errors"
)

// Parser extracts text and metadata from one file format.
type Parser interface {
	// Parse returns the document text and any format-level metadata.
	Parse(ctx context.Context, filename string, data []byte) (string, map[string]string, error)
}

// Registry maps file extensions (with leading dot, lowercased) to parsers.
type Registry struct {
	mu      sync.RWMutex
	parsers map[string]Parser
	// fallback handles extensions with no registered parser.
	fallback Parser
}

// NewRegistry returns a registry with the built-in parsers.
func NewRegistry() *Registry {
	plain := &TextParser{}
	markdown := &MarkdownParser{}

	return &Registry{
		parsers: map[string]Parser{
			".txt":      plain,
			".md":       markdown,
			".markdown": markdown,
		},
		fallback: plain,
	}
}

// Register adds or replaces the parser for an extension.
func (r *Registry) Register(ext string, p Parser) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.parsers[strings.ToLower(ext)] = p
}

// Get resolves the parser for a filename, falling back to plain text.
func (r *Registry) Get(filename string) Parser {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ext := strings.ToLower(filepath.Ext(filename))
	if p, ok := r.parsers[ext]; ok {
		return p
	}
	return r.fallback
}

// Extensions returns the registered extensions, sorted.
func (r *Registry) Extensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	exts := make([]string, 0, len(r.parsers))
	for ext := range r.parsers {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Parse resolves and runs the parser for filename in one call.
func (r *Registry) Parse(ctx context.Context, filename string, data []byte) (string, map[string]string, error) {
	return r.Get(filename).Parse(ctx, filename, data)
}

// TextParser treats the file as UTF-8 plain text.
type TextParser struct{}

var _ Parser = (*TextParser)(nil)

func (*TextParser) Parse(_ context.Context, _ string, data []byte) (string, map[string]string, error) {
	return string(data), map[string]string{}, nil
}

// MarkdownParser strips YAML front matter into metadata and returns the
// document body unchanged.
type MarkdownParser struct{}

var _ Parser = (*MarkdownParser)(nil)

func (*MarkdownParser) Parse(_ context.Context, filename string, data []byte) (string, map[string]string, error) {
	body, front, err := splitFrontMatter(string(data))
	if err != nil {
		return "", nil, ragerr.New(ragerr.ErrCodeInvalidInput,
			fmt.Sprintf("invalid front matter in %s", filename), err)
	}

	metadata := make(map[string]string, len(front))
	for key, value := range front {
		metadata[key] = fmt.Sprintf("%v", value)
	}
	return body, metadata, nil
}

// splitFrontMatter separates a leading "---" YAML block from the body.
// Documents without front matter pass through whole.
func splitFrontMatter(text string) (string, map[string]any, error) {
	rest, found := strings.CutPrefix(text, "---\n")
	if !found {
		if text == "---" {
			return "", map[string]any{}, nil
		}
		return text, map[string]any{}, nil
	}

	block, body, found := strings.Cut(rest, "\n---")
	if !found {
		// Unterminated front matter: treat the whole file as body.
		return text, map[string]any{}, nil
	}
	// Consume the delimiter's own line ending.
	body = strings.TrimPrefix(body, "\n")

	front := make(map[string]any)
	if err := yaml.Unmarshal([]byte(block), &front); err != nil {
		return "", nil, err
	}
	return body, front, nil
}
