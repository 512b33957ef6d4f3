package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTextIndex(t *testing.T) *BleveTextIndex {
	t.Helper()
	idx, err := NewBleveTextIndex("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func seedTextIndex(t *testing.T, idx *BleveTextIndex) {
	t.Helper()
	err := idx.Index(context.Background(), []*TextDoc{
		{ID: "c1", Tenant: "alpha", Content: "the quick brown fox jumps over the lazy dog"},
		{ID: "c2", Tenant: "alpha", Content: "a slow green turtle walks under the bridge"},
		{ID: "c3", Tenant: "beta", Content: "the quick brown fox visits another tenant"},
	})
	require.NoError(t, err)
}

func TestBleveTextIndexSearch(t *testing.T) {
	idx := newTestTextIndex(t)
	seedTextIndex(t, idx)

	results, err := idx.Search(context.Background(), "alpha", "quick fox", 10)
	require.NoError(t, err)

	require.Len(t, results, 1, "tenant filter excludes c3")
	assert.Equal(t, "c1", results[0].ID)
	assert.Greater(t, results[0].Score, 0.0)
}

func TestBleveTextIndexTenantIsolation(t *testing.T) {
	idx := newTestTextIndex(t)
	seedTextIndex(t, idx)

	results, err := idx.Search(context.Background(), "beta", "quick fox", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "c3", results[0].ID)

	results, err = idx.Search(context.Background(), "gamma", "quick fox", 10)
	require.NoError(t, err)
	assert.Empty(t, results, "unknown tenant matches nothing")
}

func TestBleveTextIndexMatchSearch(t *testing.T) {
	idx := newTestTextIndex(t)
	seedTextIndex(t, idx)

	// OR matches both alpha chunks (each contains at least one term).
	anyResults, err := idx.MatchSearch(context.Background(), "alpha", "fox bridge", MatchAny, 10)
	require.NoError(t, err)
	assert.Len(t, anyResults, 2)

	// AND requires every term in the same chunk.
	allResults, err := idx.MatchSearch(context.Background(), "alpha", "fox bridge", MatchAll, 10)
	require.NoError(t, err)
	assert.Empty(t, allResults)

	allResults, err = idx.MatchSearch(context.Background(), "alpha", "quick fox", MatchAll, 10)
	require.NoError(t, err)
	require.Len(t, allResults, 1)
	assert.Equal(t, "c1", allResults[0].ID)
}

func TestBleveTextIndexPhraseSearch(t *testing.T) {
	idx := newTestTextIndex(t)
	seedTextIndex(t, idx)

	results, err := idx.PhraseSearch(context.Background(), "alpha", "quick brown fox", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "c1", results[0].ID)

	// Terms present but not contiguous.
	results, err = idx.PhraseSearch(context.Background(), "alpha", "quick fox", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestBleveTextIndexCJK(t *testing.T) {
	idx := newTestTextIndex(t)
	err := idx.Index(context.Background(), []*TextDoc{
		{ID: "jp1", Tenant: "docs", Content: "日本語のテキスト検索"},
		{ID: "jp2", Tenant: "docs", Content: "英語のドキュメント"},
	})
	require.NoError(t, err)

	// Unsegmented CJK queries still hit via per-rune tokens.
	results, err := idx.Search(context.Background(), "docs", "検索", 10)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "jp1", results[0].ID)
}

func TestBleveTextIndexEmptyQuery(t *testing.T) {
	idx := newTestTextIndex(t)
	seedTextIndex(t, idx)

	results, err := idx.Search(context.Background(), "alpha", "   ", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestBleveTextIndexDeleteAndCount(t *testing.T) {
	idx := newTestTextIndex(t)
	seedTextIndex(t, idx)

	count, err := idx.Count()
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	require.NoError(t, idx.Delete(context.Background(), []string{"c1", "c3"}))

	count, err = idx.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	results, err := idx.Search(context.Background(), "alpha", "quick fox", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestBleveTextIndexReindexReplaces(t *testing.T) {
	idx := newTestTextIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Index(ctx, []*TextDoc{
		{ID: "c1", Tenant: "alpha", Content: "original content about databases"},
	}))
	require.NoError(t, idx.Index(ctx, []*TextDoc{
		{ID: "c1", Tenant: "alpha", Content: "replacement content about networking"},
	}))

	count, err := idx.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	results, err := idx.Search(ctx, "alpha", "databases", 10)
	require.NoError(t, err)
	assert.Empty(t, results)

	results, err = idx.Search(ctx, "alpha", "networking", 10)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestBleveTextIndexPersistence(t *testing.T) {
	path := t.TempDir() + "/text.bleve"

	idx, err := NewBleveTextIndex(path)
	require.NoError(t, err)
	require.NoError(t, idx.Index(context.Background(), []*TextDoc{
		{ID: "c1", Tenant: "alpha", Content: "persisted chunk content"},
	}))
	require.NoError(t, idx.Close())

	reopened, err := NewBleveTextIndex(path)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	results, err := reopened.Search(context.Background(), "alpha", "persisted", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "c1", results[0].ID)
}

func TestBleveTextIndexClosed(t *testing.T) {
	idx := newTestTextIndex(t)
	require.NoError(t, idx.Close())

	err := idx.Index(context.Background(), []*TextDoc{{ID: "x", Tenant: "a", Content: "y"}})
	assert.Error(t, err)

	_, err = idx.Search(context.Background(), "a", "y", 10)
	assert.Error(t, err)
}
