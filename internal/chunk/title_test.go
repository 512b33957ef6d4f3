package chunk

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ragerr "github.com/Aman-CERP/amanrag/internal/errors"
)

func titleConfig(maxDepth int, includeHeaders bool) Config {
	cfg := DefaultConfig()
	cfg.MaxDepth = maxDepth
	cfg.IncludeHeaders = includeHeaders
	return cfg
}

func TestTitleChunker_SplitsOnHeadings(t *testing.T) {
	text := "intro text\n# One\nalpha body\n## Two\nbeta body"
	c, err := NewTitleChunker(titleConfig(6, true))
	require.NoError(t, err)

	chunks, err := c.Chunk(context.Background(), text)
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	assert.Equal(t, "intro text", chunks[0].Content)
	assert.Equal(t, "", chunks[0].Metadata[MetaTitle])
	assert.Equal(t, "0", chunks[0].Metadata[MetaTitleLevel])

	assert.Equal(t, "# One\nalpha body", chunks[1].Content)
	assert.Equal(t, "One", chunks[1].Metadata[MetaTitle])
	assert.Equal(t, "1", chunks[1].Metadata[MetaTitleLevel])

	assert.Equal(t, "## Two\nbeta body", chunks[2].Content)
	assert.Equal(t, "Two", chunks[2].Metadata[MetaTitle])
	assert.Equal(t, "2", chunks[2].Metadata[MetaTitleLevel])
}

func TestTitleChunker_OffsetsAreContiguous(t *testing.T) {
	text := "intro text\n# One\nalpha body\n## Two\nbeta body"
	c, err := NewTitleChunker(titleConfig(6, true))
	require.NoError(t, err)

	chunks, err := c.Chunk(context.Background(), text)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	assert.Equal(t, 0, chunks[0].StartIndex)
	for i := 1; i < len(chunks); i++ {
		assert.Equal(t, chunks[i-1].EndIndex, chunks[i].StartIndex)
	}
	assert.Equal(t, len([]rune(Clean(text))), chunks[len(chunks)-1].EndIndex)
}

func TestTitleChunker_MaxDepthKeepsDeepHeadingsInline(t *testing.T) {
	text := "# One\nalpha body\n### Deep\ngamma body"
	c, err := NewTitleChunker(titleConfig(2, true))
	require.NoError(t, err)

	chunks, err := c.Chunk(context.Background(), text)
	require.NoError(t, err)
	require.Len(t, chunks, 1)

	assert.Equal(t, "One", chunks[0].Metadata[MetaTitle])
	assert.Contains(t, chunks[0].Content, "### Deep")
	assert.Contains(t, chunks[0].Content, "gamma body")
}

func TestTitleChunker_ExcludeHeaders(t *testing.T) {
	text := "# One\nalpha body"
	c, err := NewTitleChunker(titleConfig(6, false))
	require.NoError(t, err)

	chunks, err := c.Chunk(context.Background(), text)
	require.NoError(t, err)
	require.Len(t, chunks, 1)

	assert.Equal(t, "alpha body", chunks[0].Content)
	assert.Equal(t, "One", chunks[0].Metadata[MetaTitle])
}

func TestTitleChunker_NoHeadingsSingleChunk(t *testing.T) {
	text := "plain prose with no structure at all"
	c, err := NewTitleChunker(titleConfig(6, true))
	require.NoError(t, err)

	chunks, err := c.Chunk(context.Background(), text)
	require.NoError(t, err)
	require.Len(t, chunks, 1)

	assert.Equal(t, text, chunks[0].Content)
	assert.Equal(t, "", chunks[0].Metadata[MetaTitle])
	assert.Equal(t, "0", chunks[0].Metadata[MetaTitleLevel])
}

func TestTitleChunker_CJKHeadings(t *testing.T) {
	text := "# 简介\n这是正文。\n## 细节\n更多内容。"
	c, err := NewTitleChunker(titleConfig(6, true))
	require.NoError(t, err)

	chunks, err := c.Chunk(context.Background(), text)
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	assert.Equal(t, "简介", chunks[0].Metadata[MetaTitle])
	assert.Equal(t, "细节", chunks[1].Metadata[MetaTitle])
}

func TestTitleChunker_EmptyTextRejected(t *testing.T) {
	c, err := NewTitleChunker(titleConfig(6, true))
	require.NoError(t, err)

	_, err = c.Chunk(context.Background(), "")
	require.Error(t, err)
	assert.True(t, ragerr.IsInvalidInput(err))
}
