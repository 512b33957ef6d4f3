package chunk

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	ragerr "github.com/Aman-CERP/amanrag/internal/errors"
)

// FixedChunker slides a fixed-size window over the text with configurable
// overlap, snapping window boundaries back to the last sentence delimiter
// when one lies past ChunkSize*MinContentRatio.
type FixedChunker struct {
	size            int
	overlap         int
	minContentRatio float64
}

var _ Chunker = (*FixedChunker)(nil)

// NewFixedChunker creates a fixed-window chunker from cfg.
// Returns an error when overlap is not smaller than the window.
func NewFixedChunker(cfg Config) (*FixedChunker, error) {
	if cfg.ChunkSize <= 0 {
		return nil, ragerr.ConfigError("chunk_size must be positive", nil)
	}
	if cfg.ChunkOverlap < 0 || cfg.ChunkOverlap >= cfg.ChunkSize {
		return nil, ragerr.ConfigError(
			fmt.Sprintf("chunk_overlap (%d) must be in [0, chunk_size) (chunk_size=%d)",
				cfg.ChunkOverlap, cfg.ChunkSize), nil)
	}
	return &FixedChunker{
		size:            cfg.ChunkSize,
		overlap:         cfg.ChunkOverlap,
		minContentRatio: cfg.MinContentRatio,
	}, nil
}

// Strategy implements Chunker.
func (c *FixedChunker) Strategy() Strategy { return StrategyFixed }

// Chunk implements Chunker.
func (c *FixedChunker) Chunk(_ context.Context, text string) ([]*Chunk, error) {
	if err := validateText(text); err != nil {
		return nil, err
	}

	runes := []rune(Clean(text))
	windows, err := slideWindow(runes, c.size, c.overlap, c.minContentRatio)
	if err != nil {
		return nil, err
	}

	chunks := make([]*Chunk, 0, len(windows))
	for i, w := range windows {
		chunks = append(chunks, &Chunk{
			Content:    strings.TrimSpace(string(runes[w.start:w.end])),
			Index:      i,
			StartIndex: w.start,
			EndIndex:   w.end,
			Metadata: map[string]string{
				MetaStrategy:  string(StrategyFixed),
				MetaChunkSize: strconv.Itoa(w.end - w.start),
			},
		})
	}
	return chunks, nil
}

// window is a half-open [start, end) rune span.
type window struct {
	start int
	end   int
}

// slideWindow produces the fixed-window span sequence shared by the fixed
// strategy and parent-child child splitting.
//
// Forward progress is guaranteed: a snapped or overlapped next start that
// does not advance past the current start is forced one rune forward. The
// iteration count is bounded by ceil(len/(size-overlap)) plus a constant;
// exceeding the bound is a loop-guard error, not an infinite loop.
func slideWindow(runes []rune, size, overlap int, minContentRatio float64) ([]window, error) {
	if len(runes) == 0 {
		return nil, nil
	}
	if len(runes) <= size {
		return []window{{start: 0, end: len(runes)}}, nil
	}

	step := size - overlap
	if step < 1 {
		step = 1
	}
	maxIterations := len(runes)/step + 10

	var windows []window
	start := 0
	for iteration := 0; start < len(runes); iteration++ {
		if iteration >= maxIterations {
			return nil, ragerr.LoopGuard(fmt.Sprintf(
				"window splitting exceeded %d iterations at offset %d (size=%d overlap=%d)",
				maxIterations, start, size, overlap))
		}

		end := start + size
		if end > len(runes) {
			end = len(runes)
		}

		// Snap back to a sentence boundary unless it would leave the window
		// under the minimum content ratio.
		if end < len(runes) && overlap > 0 {
			if snap := lastDelimiter(runes[start:end]); float64(snap) > float64(size)*minContentRatio {
				end = start + snap + 1
			}
		}

		if end <= start {
			end = start + 1
		}

		windows = append(windows, window{start: start, end: end})

		// Reached the end; stepping back by the overlap here would only emit
		// shrinking duplicates of the tail.
		if end >= len(runes) {
			break
		}

		next := end
		if overlap > 0 {
			next = end - overlap
		}
		if next <= start {
			next = start + 1
		}
		if next >= len(runes) {
			break
		}
		start = next
	}

	return windows, nil
}
