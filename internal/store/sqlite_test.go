package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMetadataStore(t *testing.T) *SQLiteMetadataStore {
	t.Helper()
	s, err := NewSQLiteMetadataStore("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testDocument(tenant, path string) *Document {
	return &Document{
		ID:          tenant + ":" + path,
		Tenant:      tenant,
		Path:        path,
		ContentHash: "hash-" + path,
		IndexedAt:   time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestSQLiteDocumentRoundtrip(t *testing.T) {
	s := newTestMetadataStore(t)
	ctx := context.Background()

	doc := testDocument("alpha", "notes/a.md")
	require.NoError(t, s.SaveDocument(ctx, doc))

	got, err := s.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc, got)

	byPath, err := s.GetDocumentByPath(ctx, "alpha", "notes/a.md")
	require.NoError(t, err)
	assert.Equal(t, doc.ID, byPath.ID)

	_, err = s.GetDocument(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.GetDocumentByPath(ctx, "beta", "notes/a.md")
	assert.ErrorIs(t, err, ErrNotFound, "path lookup is tenant scoped")
}

func TestSQLiteSaveDocumentUpsert(t *testing.T) {
	s := newTestMetadataStore(t)
	ctx := context.Background()

	doc := testDocument("alpha", "a.txt")
	require.NoError(t, s.SaveDocument(ctx, doc))

	doc.ContentHash = "hash-v2"
	require.NoError(t, s.SaveDocument(ctx, doc))

	got, err := s.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "hash-v2", got.ContentHash)

	docs, err := s.ListDocuments(ctx, "alpha")
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestSQLiteListDocuments(t *testing.T) {
	s := newTestMetadataStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveDocument(ctx, testDocument("alpha", "b.txt")))
	require.NoError(t, s.SaveDocument(ctx, testDocument("alpha", "a.txt")))
	require.NoError(t, s.SaveDocument(ctx, testDocument("beta", "c.txt")))

	docs, err := s.ListDocuments(ctx, "alpha")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "a.txt", docs[0].Path, "ordered by path")
	assert.Equal(t, "b.txt", docs[1].Path)
}

func testChunk(doc *Document, index int, content string) *ChunkRecord {
	return &ChunkRecord{
		ID:         doc.ID + ":" + string(rune('0'+index)),
		DocumentID: doc.ID,
		Tenant:     doc.Tenant,
		ChunkIndex: index,
		Content:    content,
		StartIndex: index * 10,
		EndIndex:   index*10 + len(content),
		Metadata:   map[string]string{"chunking_strategy": "fixed"},
		CreatedAt:  time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestSQLiteChunkRoundtrip(t *testing.T) {
	s := newTestMetadataStore(t)
	ctx := context.Background()

	doc := testDocument("alpha", "a.txt")
	require.NoError(t, s.SaveDocument(ctx, doc))

	parent := 0
	child := testChunk(doc, 1, "child content")
	child.ParentChunkID = &parent

	require.NoError(t, s.SaveChunks(ctx, []*ChunkRecord{
		testChunk(doc, 0, "parent content"),
		child,
	}))

	got, err := s.GetChunk(ctx, child.ID)
	require.NoError(t, err)
	assert.Equal(t, child.Content, got.Content)
	require.NotNil(t, got.ParentChunkID)
	assert.Equal(t, 0, *got.ParentChunkID)
	assert.Equal(t, map[string]string{"chunking_strategy": "fixed"}, got.Metadata)

	byDoc, err := s.GetChunksByDocument(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, byDoc, 2)
	assert.Equal(t, 0, byDoc[0].ChunkIndex)
	assert.Nil(t, byDoc[0].ParentChunkID)

	_, err = s.GetChunk(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteGetChunksPreservesOrder(t *testing.T) {
	s := newTestMetadataStore(t)
	ctx := context.Background()

	doc := testDocument("alpha", "a.txt")
	require.NoError(t, s.SaveDocument(ctx, doc))

	c0 := testChunk(doc, 0, "first")
	c1 := testChunk(doc, 1, "second")
	require.NoError(t, s.SaveChunks(ctx, []*ChunkRecord{c0, c1}))

	got, err := s.GetChunks(ctx, []string{c1.ID, "missing", c0.ID})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, c1.ID, got[0].ID, "requested order kept, missing skipped")
	assert.Equal(t, c0.ID, got[1].ID)
}

func TestSQLiteDeleteDocumentCascades(t *testing.T) {
	s := newTestMetadataStore(t)
	ctx := context.Background()

	doc := testDocument("alpha", "a.txt")
	require.NoError(t, s.SaveDocument(ctx, doc))
	require.NoError(t, s.SaveChunks(ctx, []*ChunkRecord{
		testChunk(doc, 0, "one"),
		testChunk(doc, 1, "two"),
	}))

	require.NoError(t, s.DeleteDocument(ctx, doc.ID))

	count, err := s.CountChunks(ctx, "alpha")
	require.NoError(t, err)
	assert.Equal(t, 0, count, "chunks cascade with the document")
}

func TestSQLiteQueryChunks(t *testing.T) {
	s := newTestMetadataStore(t)
	ctx := context.Background()

	doc := testDocument("alpha", "a.txt")
	other := testDocument("beta", "b.txt")
	require.NoError(t, s.SaveDocument(ctx, doc))
	require.NoError(t, s.SaveDocument(ctx, other))
	require.NoError(t, s.SaveChunks(ctx, []*ChunkRecord{
		testChunk(doc, 0, "the database connection pool"),
		testChunk(doc, 1, "http server configuration"),
		testChunk(other, 0, "database tips for another tenant"),
	}))

	// Any matching term qualifies a row; the tenant scope always applies.
	got, err := s.QueryChunks(ctx, "alpha", []string{"database", "missing"}, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Contains(t, got[0].Content, "connection pool")

	// No terms returns the whole partition up to the limit.
	got, err = s.QueryChunks(ctx, "alpha", nil, 10)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = s.QueryChunks(ctx, "alpha", nil, 1)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestSQLiteQueryChunksEscapesWildcards(t *testing.T) {
	s := newTestMetadataStore(t)
	ctx := context.Background()

	doc := testDocument("alpha", "a.txt")
	require.NoError(t, s.SaveDocument(ctx, doc))
	require.NoError(t, s.SaveChunks(ctx, []*ChunkRecord{
		testChunk(doc, 0, "utilization reached 100% today"),
		testChunk(doc, 1, "plain text without symbols"),
		testChunk(doc, 2, "snake_case identifiers"),
	}))

	// % and _ in a term match literally, not as LIKE wildcards.
	got, err := s.QueryChunks(ctx, "alpha", []string{"100%"}, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Contains(t, got[0].Content, "100%")

	got, err = s.QueryChunks(ctx, "alpha", []string{"%"}, 10)
	require.NoError(t, err)
	assert.Len(t, got, 1, "a bare %% is not a match-everything wildcard")

	got, err = s.QueryChunks(ctx, "alpha", []string{"snake_case"}, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Contains(t, got[0].Content, "snake_case")

	got, err = s.QueryChunks(ctx, "alpha", []string{"snakeXcase"}, 10)
	require.NoError(t, err)
	assert.Empty(t, got, "_ does not act as a single-character wildcard")
}

func TestSQLiteState(t *testing.T) {
	s := newTestMetadataStore(t)
	ctx := context.Background()

	_, err := s.GetState(ctx, StateKeyIndexDimension)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.SetState(ctx, StateKeyIndexDimension, "768"))
	require.NoError(t, s.SetState(ctx, StateKeyIndexDimension, "256"))

	value, err := s.GetState(ctx, StateKeyIndexDimension)
	require.NoError(t, err)
	assert.Equal(t, "256", value, "SetState replaces")
}

func TestSQLitePersistence(t *testing.T) {
	path := t.TempDir() + "/meta.db"
	ctx := context.Background()

	s, err := NewSQLiteMetadataStore(path)
	require.NoError(t, err)
	require.NoError(t, s.SaveDocument(ctx, testDocument("alpha", "a.txt")))
	require.NoError(t, s.Close())

	reopened, err := NewSQLiteMetadataStore(path)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	docs, err := reopened.ListDocuments(ctx, "alpha")
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}
