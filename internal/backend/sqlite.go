package backend

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)
)

// SQLiteMetadataStore persists document metadata in SQLite. It backs the
// resolve_metadata collaborator for facet counts and snippets.
type SQLiteMetadataStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	closed bool
}

const metadataSchema = `
CREATE TABLE IF NOT EXISTS documents (
	id                  TEXT PRIMARY KEY,
	classification_code TEXT NOT NULL DEFAULT '',
	content_type        TEXT NOT NULL DEFAULT '',
	language            TEXT NOT NULL DEFAULT '',
	read_status         TEXT NOT NULL DEFAULT '',
	subjects            TEXT NOT NULL DEFAULT '[]',
	snippet             TEXT NOT NULL DEFAULT ''
);
`

// NewSQLiteMetadataStore opens (or creates) a metadata store at path.
// Use ":memory:" for an ephemeral store in tests.
func NewSQLiteMetadataStore(path string) (*SQLiteMetadataStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open metadata store: %w", err)
	}

	// WAL must be set via PRAGMA for modernc.org/sqlite; DSN params are ignored.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if _, err := db.Exec(metadataSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLiteMetadataStore{db: db}, nil
}

// SaveDocuments upserts document metadata in a single transaction.
func (s *SQLiteMetadataStore) SaveDocuments(ctx context.Context, docs []*DocumentMeta) error {
	if len(docs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("metadata store is closed")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO documents (id, classification_code, content_type, language, read_status, subjects, snippet)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			classification_code = excluded.classification_code,
			content_type        = excluded.content_type,
			language            = excluded.language,
			read_status         = excluded.read_status,
			subjects            = excluded.subjects,
			snippet             = excluded.snippet`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, doc := range docs {
		subjects, err := json.Marshal(doc.Subjects)
		if err != nil {
			return fmt.Errorf("marshal subjects for %s: %w", doc.ID, err)
		}
		if _, err := stmt.ExecContext(ctx,
			doc.ID, doc.ClassificationCode, doc.ContentType, doc.Language,
			doc.ReadStatus, string(subjects), doc.Snippet,
		); err != nil {
			return fmt.Errorf("upsert document %s: %w", doc.ID, err)
		}
	}

	return tx.Commit()
}

// GetDocuments batch-resolves metadata for the given ids. Unknown ids are
// omitted from the result.
func (s *SQLiteMetadataStore) GetDocuments(ctx context.Context, ids []string) ([]*DocumentMeta, error) {
	if len(ids) == 0 {
		return []*DocumentMeta{}, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("metadata store is closed")
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, classification_code, content_type, language, read_status, subjects, snippet
		FROM documents WHERE id IN (%s)`, placeholders), args...)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	docs := make([]*DocumentMeta, 0, len(ids))
	for rows.Next() {
		var doc DocumentMeta
		var subjects string
		if err := rows.Scan(&doc.ID, &doc.ClassificationCode, &doc.ContentType,
			&doc.Language, &doc.ReadStatus, &subjects, &doc.Snippet); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		if err := json.Unmarshal([]byte(subjects), &doc.Subjects); err != nil {
			return nil, fmt.Errorf("unmarshal subjects for %s: %w", doc.ID, err)
		}
		docs = append(docs, &doc)
	}

	return docs, rows.Err()
}

// Close releases the database handle.
func (s *SQLiteMetadataStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

var _ MetadataStore = (*SQLiteMetadataStore)(nil)
