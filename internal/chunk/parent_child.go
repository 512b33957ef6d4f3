package chunk

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	ragerr "github.com/Aman-CERP/amanrag/internal/errors"
)

// ParentChildChunker emits large parent chunks carrying full context and
// small child chunks for precise matching. Parents split at paragraph breaks
// bounded by ParentSize; each parent's text is then split with the fixed
// window algorithm at ChildSize/ChildOverlap. Output interleaves each parent
// immediately followed by its children under one strictly increasing index
// sequence.
type ParentChildChunker struct {
	parentSize      int
	childSize       int
	childOverlap    int
	minContentRatio float64
}

var _ Chunker = (*ParentChildChunker)(nil)

// NewParentChildChunker creates a parent-child chunker from cfg.
func NewParentChildChunker(cfg Config) (*ParentChildChunker, error) {
	if cfg.ParentSize <= 0 {
		return nil, ragerr.ConfigError("parent_size must be positive", nil)
	}
	if cfg.ChildSize <= 0 {
		return nil, ragerr.ConfigError("child_size must be positive", nil)
	}
	if cfg.ChildOverlap < 0 || cfg.ChildOverlap >= cfg.ChildSize {
		return nil, ragerr.ConfigError(
			fmt.Sprintf("child_overlap (%d) must be in [0, child_size) (child_size=%d)",
				cfg.ChildOverlap, cfg.ChildSize), nil)
	}
	if cfg.ParentSize < cfg.ChildSize {
		return nil, ragerr.ConfigError(
			fmt.Sprintf("parent_size (%d) must not be smaller than child_size (%d)",
				cfg.ParentSize, cfg.ChildSize), nil)
	}
	return &ParentChildChunker{
		parentSize:      cfg.ParentSize,
		childSize:       cfg.ChildSize,
		childOverlap:    cfg.ChildOverlap,
		minContentRatio: cfg.MinContentRatio,
	}, nil
}

// Strategy implements Chunker.
func (c *ParentChildChunker) Strategy() Strategy { return StrategyParentChild }

// Chunk implements Chunker.
func (c *ParentChildChunker) Chunk(_ context.Context, text string) ([]*Chunk, error) {
	if err := validateText(text); err != nil {
		return nil, err
	}

	runes := []rune(Clean(text))
	parents, err := c.splitParents(runes)
	if err != nil {
		return nil, err
	}

	var chunks []*Chunk
	index := 0
	for _, p := range parents {
		parentIndex := index
		chunks = append(chunks, &Chunk{
			Content:    strings.TrimSpace(string(runes[p.start:p.end])),
			Index:      parentIndex,
			StartIndex: p.start,
			EndIndex:   p.end,
			Metadata: map[string]string{
				MetaStrategy:  string(StrategyParentChild),
				MetaChunkType: "parent",
				MetaChunkSize: strconv.Itoa(p.end - p.start),
			},
		})
		index++

		// Child offsets are computed over the parent's trimmed content and
		// translated into the coordinate space of the cleaned source text.
		parentContent := []rune(chunks[len(chunks)-1].Content)
		base := p.start
		windows, err := slideWindow(parentContent, c.childSize, c.childOverlap, c.minContentRatio)
		if err != nil {
			return nil, err
		}
		for _, w := range windows {
			pi := parentIndex
			chunks = append(chunks, &Chunk{
				Content:     strings.TrimSpace(string(parentContent[w.start:w.end])),
				Index:       index,
				StartIndex:  base + w.start,
				EndIndex:    base + w.end,
				ParentIndex: &pi,
				Metadata: map[string]string{
					MetaStrategy:  string(StrategyParentChild),
					MetaChunkType: "child",
					MetaChunkSize: strconv.Itoa(w.end - w.start),
				},
			})
			index++
		}
	}

	return chunks, nil
}

// splitParents cuts the text into parent spans at paragraph breaks, preferring
// the last "\n\n" past ParentSize*MinContentRatio within each window.
func (c *ParentChildChunker) splitParents(runes []rune) ([]window, error) {
	var parents []window
	maxIterations := len(runes)/c.parentSize + 10

	start := 0
	for iteration := 0; start < len(runes); iteration++ {
		if iteration >= maxIterations {
			return nil, ragerr.LoopGuard(fmt.Sprintf(
				"parent splitting exceeded %d iterations at offset %d (parent_size=%d)",
				maxIterations, start, c.parentSize))
		}

		end := start + c.parentSize
		if end > len(runes) {
			end = len(runes)
		}

		if end < len(runes) {
			if brk := lastParagraphBreak(runes[start:end]); float64(brk) > float64(c.parentSize)*c.minContentRatio {
				// Include the paragraph break in the parent.
				end = start + brk + 2
			}
		}

		parents = append(parents, window{start: start, end: end})
		start = end
	}

	return parents, nil
}

// lastParagraphBreak returns the index of the last "\n\n" in runes, or -1.
func lastParagraphBreak(runes []rune) int {
	for i := len(runes) - 2; i >= 0; i-- {
		if runes[i] == '\n' && runes[i+1] == '\n' {
			return i
		}
	}
	return -1
}
