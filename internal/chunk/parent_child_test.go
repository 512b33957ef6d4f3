package chunk

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ragerr "github.com/Aman-CERP/amanrag/internal/errors"
)

func parentChildConfig(parent, child, overlap int) Config {
	cfg := DefaultConfig()
	cfg.ParentSize = parent
	cfg.ChildSize = child
	cfg.ChildOverlap = overlap
	return cfg
}

func TestNewParentChildChunker_RejectsBadConfig(t *testing.T) {
	tests := []struct {
		name    string
		parent  int
		child   int
		overlap int
	}{
		{"zero parent size", 0, 10, 2},
		{"zero child size", 100, 0, 0},
		{"child overlap equals child size", 100, 10, 10},
		{"parent smaller than child", 10, 100, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewParentChildChunker(parentChildConfig(tt.parent, tt.child, tt.overlap))
			require.Error(t, err)
			assert.Equal(t, ragerr.ErrCodeConfigInvalid, ragerr.GetCode(err))
		})
	}
}

func TestParentChildChunker_ShortTextOneParentOneChild(t *testing.T) {
	c, err := NewParentChildChunker(parentChildConfig(2000, 512, 50))
	require.NoError(t, err)

	chunks, err := c.Chunk(context.Background(), "a single short paragraph")
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	parent, child := chunks[0], chunks[1]
	assert.Equal(t, "parent", parent.Metadata[MetaChunkType])
	assert.Nil(t, parent.ParentIndex)
	assert.Equal(t, "child", child.Metadata[MetaChunkType])
	require.NotNil(t, child.ParentIndex)
	assert.Equal(t, parent.Index, *child.ParentIndex)
	assert.Equal(t, parent.Content, child.Content)
}

func TestParentChildChunker_SplitsParentsAtParagraphBreaks(t *testing.T) {
	paraA := "Alpha paragraph first block ok" // 30 runes
	paraB := "Beta paragraph second block ok" // 30 runes
	text := paraA + "\n\n" + paraB

	c, err := NewParentChildChunker(parentChildConfig(40, 12, 3))
	require.NoError(t, err)

	chunks, err := c.Chunk(context.Background(), text)
	require.NoError(t, err)

	var parents []*Chunk
	for _, ch := range chunks {
		if ch.Metadata[MetaChunkType] == "parent" {
			parents = append(parents, ch)
		}
	}
	require.Len(t, parents, 2)
	assert.Equal(t, paraA, parents[0].Content)
	assert.Equal(t, paraB, parents[1].Content)
}

func TestParentChildChunker_ChildrenContainedAndInterleaved(t *testing.T) {
	text := "Alpha paragraph first block ok\n\nBeta paragraph second block ok"
	c, err := NewParentChildChunker(parentChildConfig(40, 12, 3))
	require.NoError(t, err)

	chunks, err := c.Chunk(context.Background(), text)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	byIndex := make(map[int]*Chunk, len(chunks))
	lastParent := -1
	for i, ch := range chunks {
		// One strictly increasing index sequence across parents and children.
		assert.Equal(t, i, ch.Index)
		byIndex[ch.Index] = ch

		switch ch.Metadata[MetaChunkType] {
		case "parent":
			lastParent = ch.Index
		case "child":
			require.NotNil(t, ch.ParentIndex)
			// Children immediately follow their own parent.
			assert.Equal(t, lastParent, *ch.ParentIndex)
		default:
			t.Fatalf("unexpected chunk_type %q", ch.Metadata[MetaChunkType])
		}
	}

	for _, ch := range chunks {
		if ch.ParentIndex == nil {
			continue
		}
		parent := byIndex[*ch.ParentIndex]
		require.NotNil(t, parent)
		assert.Equal(t, "parent", parent.Metadata[MetaChunkType])
		assert.Less(t, *ch.ParentIndex, ch.Index)
		assert.True(t, strings.Contains(parent.Content, ch.Content),
			"child %q not contained in parent %q", ch.Content, parent.Content)
		assert.GreaterOrEqual(t, ch.StartIndex, parent.StartIndex)
		assert.LessOrEqual(t, ch.EndIndex, parent.EndIndex)
	}
}

func TestParentChildChunker_EmptyTextRejected(t *testing.T) {
	c, err := NewParentChildChunker(parentChildConfig(2000, 512, 50))
	require.NoError(t, err)

	_, err = c.Chunk(context.Background(), "\n \t ")
	require.Error(t, err)
	assert.True(t, ragerr.IsInvalidInput(err))
}
