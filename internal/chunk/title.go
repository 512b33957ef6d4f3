package chunk

import (
	"context"
	"regexp"
	"strconv"
	"strings"
)

// headingPattern matches Markdown heading lines: # Title through ###### Title.
var headingPattern = regexp.MustCompile(`^(#{1,6})\s+(.+)$`)

// TitleChunker splits Markdown text on heading lines. Each chunk inherits the
// nearest preceding heading's text and level in metadata; content before any
// heading (or the whole text when no heading exists) is emitted as one chunk
// with an empty title and level 0.
type TitleChunker struct {
	maxDepth       int
	includeHeaders bool
}

var _ Chunker = (*TitleChunker)(nil)

// NewTitleChunker creates a title chunker from cfg. Headings deeper than
// MaxDepth do not open a new chunk and stay in the surrounding content.
func NewTitleChunker(cfg Config) (*TitleChunker, error) {
	depth := cfg.MaxDepth
	if depth <= 0 || depth > 6 {
		depth = 6
	}
	return &TitleChunker{
		maxDepth:       depth,
		includeHeaders: cfg.IncludeHeaders,
	}, nil
}

// Strategy implements Chunker.
func (c *TitleChunker) Strategy() Strategy { return StrategyTitle }

// Chunk implements Chunker.
func (c *TitleChunker) Chunk(_ context.Context, text string) ([]*Chunk, error) {
	if err := validateText(text); err != nil {
		return nil, err
	}

	cleaned := Clean(text)
	totalRunes := len([]rune(cleaned))
	lines := strings.Split(cleaned, "\n")

	var chunks []*Chunk
	var currentLines []string
	currentTitle := ""
	currentLevel := 0
	index := 0
	startIndex := 0
	pos := 0 // rune offset of the current line within cleaned

	flush := func(end int) {
		if len(currentLines) == 0 {
			return
		}
		content := strings.TrimSpace(strings.Join(currentLines, "\n"))
		if end > totalRunes {
			end = totalRunes
		}
		chunks = append(chunks, &Chunk{
			Content:    content,
			Index:      index,
			StartIndex: startIndex,
			EndIndex:   end,
			Metadata: map[string]string{
				MetaStrategy:   string(StrategyTitle),
				MetaTitle:      currentTitle,
				MetaTitleLevel: strconv.Itoa(currentLevel),
			},
		})
		index++
		startIndex = end
		currentLines = nil
	}

	for _, line := range lines {
		if m := headingPattern.FindStringSubmatch(line); m != nil && len(m[1]) <= c.maxDepth {
			flush(pos)

			currentTitle = strings.TrimSpace(m[2])
			currentLevel = len(m[1])
			if c.includeHeaders {
				currentLines = append(currentLines, line)
			}
		} else {
			currentLines = append(currentLines, line)
		}
		pos += len([]rune(line)) + 1 // +1 for the newline
	}
	flush(totalRunes)

	// No headings found and nothing flushed: emit the whole text as one chunk.
	if len(chunks) == 0 {
		chunks = append(chunks, &Chunk{
			Content:    cleaned,
			Index:      0,
			StartIndex: 0,
			EndIndex:   totalRunes,
			Metadata: map[string]string{
				MetaStrategy:   string(StrategyTitle),
				MetaTitle:      "",
				MetaTitleLevel: "0",
			},
		})
	}

	return chunks, nil
}
