package chunk

import (
	"strings"

	ragerr "github.com/Aman-CERP/amanrag/internal/errors"
)

// sentenceDelimiters are the characters a window boundary may snap back to.
// Newline is included so list- and line-structured text breaks cleanly.
const sentenceDelimiters = "。.!！?？\n"

// Clean normalizes text before segmentation: trims each line, collapses runs
// of spaces and tabs to a single space, and collapses three or more
// consecutive newlines to a paragraph break. Single newlines and paragraph
// breaks are preserved because the title and parent-child strategies depend
// on line and paragraph structure.
func Clean(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.Join(strings.Fields(line), " ")
	}

	var b strings.Builder
	b.Grow(len(text))
	blankRun := 0
	wroteAny := false
	for _, line := range lines {
		if line == "" {
			blankRun++
			continue
		}
		if wroteAny {
			if blankRun > 0 {
				b.WriteString("\n\n")
			} else {
				b.WriteString("\n")
			}
		}
		b.WriteString(line)
		blankRun = 0
		wroteAny = true
	}
	return b.String()
}

// validateText rejects empty or whitespace-only input.
func validateText(text string) error {
	if strings.TrimSpace(text) == "" {
		return ragerr.InvalidInput("input text is empty or whitespace-only")
	}
	return nil
}

// lastDelimiter returns the index of the last sentence delimiter in runes,
// or -1 when none is present.
func lastDelimiter(runes []rune) int {
	for i := len(runes) - 1; i >= 0; i-- {
		if strings.ContainsRune(sentenceDelimiters, runes[i]) {
			return i
		}
	}
	return -1
}

// SplitSentences splits text into sentences on CJK and ASCII sentence-ending
// punctuation, dropping the delimiters and surrounding whitespace. Used by
// the semantic strategy.
func SplitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	flush := func() {
		s := strings.TrimSpace(current.String())
		if s != "" {
			sentences = append(sentences, s)
		}
		current.Reset()
	}

	for _, r := range text {
		switch r {
		case '。', '！', '？', '.', '!', '?':
			flush()
		default:
			current.WriteRune(r)
		}
	}
	flush()

	return sentences
}
