package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/registry"
	"github.com/blevesearch/bleve/v2/search/query"
)

const (
	// TextTokenizerName is the name of the CJK-aware tokenizer.
	TextTokenizerName = "text_tokenizer"

	// TextAnalyzerName is the name of the content analyzer.
	TextAnalyzerName = "text_analyzer"
)

func init() {
	registry.RegisterTokenizer(TextTokenizerName, textTokenizerConstructor)
}

// BleveTextIndex implements TextIndex on Bleve v2. Content is analyzed with
// the CJK-aware tokenizer; tenant is indexed verbatim and applied as a term
// filter on every query.
type BleveTextIndex struct {
	mu     sync.RWMutex
	index  bleve.Index
	path   string
	closed bool
}

var _ TextIndex = (*BleveTextIndex)(nil)

// bleveTextDoc is the document shape handed to Bleve.
type bleveTextDoc struct {
	Content string `json:"content"`
	Tenant  string `json:"tenant"`
}

// NewBleveTextIndex opens or creates a text index at path.
// An empty path creates an in-memory index for testing.
func NewBleveTextIndex(path string) (*BleveTextIndex, error) {
	indexMapping, err := createIndexMapping()
	if err != nil {
		return nil, fmt.Errorf("failed to create index mapping: %w", err)
	}

	var idx bleve.Index
	if path == "" {
		idx, err = bleve.NewMemOnly(indexMapping)
	} else {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}

		idx, err = bleve.Open(path)
		if err == bleve.ErrorIndexPathDoesNotExist {
			idx, err = bleve.New(path, indexMapping)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create/open index: %w", err)
	}

	return &BleveTextIndex{index: idx, path: path}, nil
}

// createIndexMapping builds the Bleve mapping: analyzed content, verbatim
// tenant.
func createIndexMapping() (*mapping.IndexMappingImpl, error) {
	indexMapping := bleve.NewIndexMapping()

	err := indexMapping.AddCustomAnalyzer(TextAnalyzerName, map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     TextTokenizerName,
		"token_filters": []string{lowercase.Name},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add custom analyzer: %w", err)
	}

	contentField := bleve.NewTextFieldMapping()
	contentField.Analyzer = TextAnalyzerName

	tenantField := bleve.NewTextFieldMapping()
	tenantField.Analyzer = keyword.Name

	docMapping := bleve.NewDocumentMapping()
	docMapping.AddFieldMappingsAt("content", contentField)
	docMapping.AddFieldMappingsAt("tenant", tenantField)

	indexMapping.DefaultMapping = docMapping
	indexMapping.DefaultAnalyzer = TextAnalyzerName

	return indexMapping, nil
}

// Index adds or replaces documents.
func (b *BleveTextIndex) Index(_ context.Context, docs []*TextDoc) error {
	if len(docs) == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return fmt.Errorf("index is closed")
	}

	batch := b.index.NewBatch()
	for _, doc := range docs {
		if err := batch.Index(doc.ID, bleveTextDoc{Content: doc.Content, Tenant: doc.Tenant}); err != nil {
			return fmt.Errorf("failed to index document %s: %w", doc.ID, err)
		}
	}

	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to execute batch: %w", err)
	}

	return nil
}

// Search implements TextIndex using Bleve's BM25 match scoring.
func (b *BleveTextIndex) Search(ctx context.Context, tenant, queryStr string, limit int) ([]*TextResult, error) {
	matchQuery := bleve.NewMatchQuery(queryStr)
	matchQuery.SetField("content")
	return b.run(ctx, tenant, queryStr, matchQuery, limit)
}

// MatchSearch implements TextIndex with an explicit term operator.
func (b *BleveTextIndex) MatchSearch(ctx context.Context, tenant, queryStr string, op MatchOperator, limit int) ([]*TextResult, error) {
	matchQuery := bleve.NewMatchQuery(queryStr)
	matchQuery.SetField("content")
	if op == MatchAll {
		matchQuery.SetOperator(query.MatchQueryOperatorAnd)
	} else {
		matchQuery.SetOperator(query.MatchQueryOperatorOr)
	}
	return b.run(ctx, tenant, queryStr, matchQuery, limit)
}

// PhraseSearch implements TextIndex; terms must be contiguous.
func (b *BleveTextIndex) PhraseSearch(ctx context.Context, tenant, phrase string, limit int) ([]*TextResult, error) {
	phraseQuery := bleve.NewMatchPhraseQuery(phrase)
	phraseQuery.SetField("content")
	return b.run(ctx, tenant, phrase, phraseQuery, limit)
}

// run executes a content query scoped to the tenant partition.
func (b *BleveTextIndex) run(ctx context.Context, tenant, queryStr string, contentQuery query.Query, limit int) ([]*TextResult, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, fmt.Errorf("index is closed")
	}
	if strings.TrimSpace(queryStr) == "" {
		return []*TextResult{}, nil
	}
	if limit <= 0 {
		limit = 10
	}

	tenantQuery := bleve.NewTermQuery(tenant)
	tenantQuery.SetField("tenant")

	searchRequest := bleve.NewSearchRequest(bleve.NewConjunctionQuery(tenantQuery, contentQuery))
	searchRequest.Size = limit

	result, err := b.index.SearchInContext(ctx, searchRequest)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	results := make([]*TextResult, 0, len(result.Hits))
	for _, hit := range result.Hits {
		results = append(results, &TextResult{ID: hit.ID, Score: hit.Score})
	}
	return results, nil
}

// Delete removes documents by ID.
func (b *BleveTextIndex) Delete(_ context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return fmt.Errorf("index is closed")
	}

	batch := b.index.NewBatch()
	for _, id := range ids {
		batch.Delete(id)
	}

	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to delete documents: %w", err)
	}

	return nil
}

// Count returns the number of indexed documents.
func (b *BleveTextIndex) Count() (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return 0, fmt.Errorf("index is closed")
	}

	count, err := b.index.DocCount()
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

// Close closes the index.
func (b *BleveTextIndex) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	if b.index != nil {
		return b.index.Close()
	}
	return nil
}

// textTokenizerConstructor creates the CJK-aware tokenizer for Bleve.
func textTokenizerConstructor(_ map[string]interface{}, _ *registry.Cache) (analysis.Tokenizer, error) {
	return &bleveTextTokenizer{}, nil
}

// bleveTextTokenizer emits letter/digit runs as whole tokens and CJK
// ideographs one per token, with byte offsets for phrase positions.
type bleveTextTokenizer struct{}

// Tokenize implements analysis.Tokenizer.
func (t *bleveTextTokenizer) Tokenize(input []byte) analysis.TokenStream {
	var stream analysis.TokenStream
	pos := 1
	runStart := -1

	emit := func(start, end int) {
		stream = append(stream, &analysis.Token{
			Term:     input[start:end],
			Start:    start,
			End:      end,
			Position: pos,
			Type:     analysis.AlphaNumeric,
		})
		pos++
	}

	for i := 0; i < len(input); {
		r, size := utf8.DecodeRune(input[i:])
		switch {
		case isCJK(r):
			if runStart >= 0 {
				emit(runStart, i)
				runStart = -1
			}
			emit(i, i+size)
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if runStart < 0 {
				runStart = i
			}
		default:
			if runStart >= 0 {
				emit(runStart, i)
				runStart = -1
			}
		}
		i += size
	}
	if runStart >= 0 {
		emit(runStart, len(input))
	}

	return stream
}
