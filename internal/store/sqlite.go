package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // pure Go SQLite driver
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// SQLiteMetadataStore implements MetadataStore on modernc.org/sqlite.
type SQLiteMetadataStore struct {
	db *sql.DB
}

var _ MetadataStore = (*SQLiteMetadataStore)(nil)

// NewSQLiteMetadataStore opens (or creates) the metadata database at path.
// An empty path opens an in-memory database.
func NewSQLiteMetadataStore(path string) (*SQLiteMetadataStore, error) {
	if path == "" {
		path = ":memory:"
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// modernc.org/sqlite serializes access; a single connection avoids
	// table-locked errors under concurrent writers.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -65536",
		"PRAGMA temp_store = MEMORY",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma %q: %w", pragma, err)
		}
	}

	s := &SQLiteMetadataStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

func (s *SQLiteMetadataStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		id           TEXT PRIMARY KEY,
		tenant       TEXT NOT NULL,
		path         TEXT NOT NULL,
		content_hash TEXT NOT NULL,
		indexed_at   INTEGER NOT NULL
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_documents_tenant_path ON documents(tenant, path);

	CREATE TABLE IF NOT EXISTS chunks (
		id              TEXT PRIMARY KEY,
		document_id     TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
		tenant          TEXT NOT NULL,
		chunk_index     INTEGER NOT NULL,
		content         TEXT NOT NULL,
		start_index     INTEGER NOT NULL,
		end_index       INTEGER NOT NULL,
		parent_chunk_id INTEGER,
		metadata        TEXT NOT NULL DEFAULT '{}',
		created_at      INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks(document_id);
	CREATE INDEX IF NOT EXISTS idx_chunks_tenant ON chunks(tenant);

	CREATE TABLE IF NOT EXISTS state (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// SaveDocument inserts or replaces a document row.
func (s *SQLiteMetadataStore) SaveDocument(ctx context.Context, doc *Document) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (id, tenant, path, content_hash, indexed_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			tenant = excluded.tenant,
			path = excluded.path,
			content_hash = excluded.content_hash,
			indexed_at = excluded.indexed_at`,
		doc.ID, doc.Tenant, doc.Path, doc.ContentHash, doc.IndexedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to save document: %w", err)
	}
	return nil
}

// GetDocument retrieves a document by ID.
func (s *SQLiteMetadataStore) GetDocument(ctx context.Context, id string) (*Document, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, tenant, path, content_hash, indexed_at
		FROM documents WHERE id = ?`, id)
	return scanDocument(row)
}

// GetDocumentByPath retrieves a document by tenant and path.
func (s *SQLiteMetadataStore) GetDocumentByPath(ctx context.Context, tenant, path string) (*Document, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, tenant, path, content_hash, indexed_at
		FROM documents WHERE tenant = ? AND path = ?`, tenant, path)
	return scanDocument(row)
}

func scanDocument(row *sql.Row) (*Document, error) {
	var doc Document
	var indexedAt int64
	err := row.Scan(&doc.ID, &doc.Tenant, &doc.Path, &doc.ContentHash, &indexedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan document: %w", err)
	}
	doc.IndexedAt = time.Unix(indexedAt, 0).UTC()
	return &doc, nil
}

// ListDocuments returns all documents in the tenant partition, ordered by path.
func (s *SQLiteMetadataStore) ListDocuments(ctx context.Context, tenant string) ([]*Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant, path, content_hash, indexed_at
		FROM documents WHERE tenant = ? ORDER BY path`, tenant)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var docs []*Document
	for rows.Next() {
		var doc Document
		var indexedAt int64
		if err := rows.Scan(&doc.ID, &doc.Tenant, &doc.Path, &doc.ContentHash, &indexedAt); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		doc.IndexedAt = time.Unix(indexedAt, 0).UTC()
		docs = append(docs, &doc)
	}
	return docs, rows.Err()
}

// DeleteDocument removes a document; its chunks cascade.
func (s *SQLiteMetadataStore) DeleteDocument(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}

// SaveChunks upserts a batch of chunks in one transaction.
func (s *SQLiteMetadataStore) SaveChunks(ctx context.Context, chunks []*ChunkRecord) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, document_id, tenant, chunk_index, content,
			start_index, end_index, parent_chunk_id, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			content = excluded.content,
			start_index = excluded.start_index,
			end_index = excluded.end_index,
			parent_chunk_id = excluded.parent_chunk_id,
			metadata = excluded.metadata`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, ch := range chunks {
		metaJSON, err := json.Marshal(ch.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal chunk metadata: %w", err)
		}

		var parentID any
		if ch.ParentChunkID != nil {
			parentID = *ch.ParentChunkID
		}

		createdAt := ch.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}

		if _, err := stmt.ExecContext(ctx, ch.ID, ch.DocumentID, ch.Tenant,
			ch.ChunkIndex, ch.Content, ch.StartIndex, ch.EndIndex,
			parentID, string(metaJSON), createdAt.Unix()); err != nil {
			return fmt.Errorf("failed to save chunk %s: %w", ch.ID, err)
		}
	}

	return tx.Commit()
}

// GetChunk retrieves a chunk by ID.
func (s *SQLiteMetadataStore) GetChunk(ctx context.Context, id string) (*ChunkRecord, error) {
	rows, err := s.db.QueryContext(ctx, chunkSelect+` WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunk: %w", err)
	}
	defer func() { _ = rows.Close() }()

	chunks, err := scanChunks(rows)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, ErrNotFound
	}
	return chunks[0], nil
}

// GetChunks retrieves chunks by ID. Missing IDs are skipped; the result
// keeps the requested order.
func (s *SQLiteMetadataStore) GetChunks(ctx context.Context, ids []string) ([]*ChunkRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx,
		chunkSelect+` WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	found, err := scanChunks(rows)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*ChunkRecord, len(found))
	for _, ch := range found {
		byID[ch.ID] = ch
	}

	ordered := make([]*ChunkRecord, 0, len(found))
	for _, id := range ids {
		if ch, ok := byID[id]; ok {
			ordered = append(ordered, ch)
		}
	}
	return ordered, nil
}

// GetChunksByDocument returns a document's chunks ordered by chunk index.
func (s *SQLiteMetadataStore) GetChunksByDocument(ctx context.Context, documentID string) ([]*ChunkRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		chunkSelect+` WHERE document_id = ? ORDER BY chunk_index`, documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanChunks(rows)
}

// DeleteChunksByDocument removes all of a document's chunks.
func (s *SQLiteMetadataStore) DeleteChunksByDocument(ctx context.Context, documentID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = ?`, documentID); err != nil {
		return fmt.Errorf("failed to delete chunks: %w", err)
	}
	return nil
}

// QueryChunks returns up to limit chunks in the tenant partition whose
// content contains any of the given terms (case-insensitive). Empty terms
// match every chunk in the partition.
func (s *SQLiteMetadataStore) QueryChunks(ctx context.Context, tenant string, terms []string, limit int) ([]*ChunkRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	var sb strings.Builder
	sb.WriteString(chunkSelect)
	sb.WriteString(` WHERE tenant = ?`)
	args := []any{tenant}

	if len(terms) > 0 {
		sb.WriteString(` AND (`)
		for i, term := range terms {
			if i > 0 {
				sb.WriteString(` OR `)
			}
			sb.WriteString(`content LIKE '%' || ? || '%' ESCAPE '\'`)
			args = append(args, escapeLikeTerm(term))
		}
		sb.WriteString(`)`)
	}

	sb.WriteString(` ORDER BY document_id, chunk_index LIMIT ?`)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanChunks(rows)
}

// escapeLikeTerm neutralizes LIKE wildcards in user-supplied terms so a
// query containing % or _ matches those characters literally.
func escapeLikeTerm(term string) string {
	term = strings.ReplaceAll(term, `\`, `\\`)
	term = strings.ReplaceAll(term, `%`, `\%`)
	return strings.ReplaceAll(term, `_`, `\_`)
}

// CountChunks returns the number of chunks in the tenant partition.
func (s *SQLiteMetadataStore) CountChunks(ctx context.Context, tenant string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM chunks WHERE tenant = ?`, tenant).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return count, nil
}

// GetState returns the value for key, or ErrNotFound.
func (s *SQLiteMetadataStore) GetState(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM state WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get state: %w", err)
	}
	return value, nil
}

// SetState inserts or replaces a state entry.
func (s *SQLiteMetadataStore) SetState(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO state (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set state: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteMetadataStore) Close() error {
	return s.db.Close()
}

const chunkSelect = `
	SELECT id, document_id, tenant, chunk_index, content,
		start_index, end_index, parent_chunk_id, metadata, created_at
	FROM chunks`

func scanChunks(rows *sql.Rows) ([]*ChunkRecord, error) {
	var chunks []*ChunkRecord
	for rows.Next() {
		var ch ChunkRecord
		var parentID sql.NullInt64
		var metaJSON string
		var createdAt int64

		if err := rows.Scan(&ch.ID, &ch.DocumentID, &ch.Tenant, &ch.ChunkIndex,
			&ch.Content, &ch.StartIndex, &ch.EndIndex, &parentID,
			&metaJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}

		if parentID.Valid {
			v := int(parentID.Int64)
			ch.ParentChunkID = &v
		}
		if err := json.Unmarshal([]byte(metaJSON), &ch.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal chunk metadata: %w", err)
		}
		ch.CreatedAt = time.Unix(createdAt, 0).UTC()
		chunks = append(chunks, &ch)
	}
	return chunks, rows.Err()
}
