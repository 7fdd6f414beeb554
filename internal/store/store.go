// Package store persists assembled documents as ordered block rows in
// sqlite. Blocks carry both a document_index and prev/next links; the
// linked list is rebuilt on every save so editors that walk links and
// tools that sort by index agree.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/dgallion1/planmirror/internal/pmtree"
)

type Store struct {
	db *sql.DB
}

// Open opens (and migrates) the sqlite database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA foreign_keys=ON",
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=10000",
		"PRAGMA synchronous=NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func migrate(db *sql.DB) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS collections (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			collection_id TEXT NOT NULL REFERENCES collections(id),
			collection_index INTEGER NOT NULL,
			title TEXT NOT NULL,
			slug TEXT NOT NULL,
			source_pdf TEXT,
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS blocks (
			id TEXT PRIMARY KEY,
			document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
			document_index INTEGER NOT NULL,
			type TEXT NOT NULL,
			text TEXT,
			attrs TEXT,
			content TEXT,
			prev_block_id TEXT REFERENCES blocks(id),
			next_block_id TEXT REFERENCES blocks(id),
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_blocks_document ON blocks(document_id, document_index)`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// DocumentInfo is a stored document's header row.
type DocumentInfo struct {
	ID         string
	Collection string
	Title      string
	Slug       string
	SourcePDF  string
	CreatedAt  time.Time
}

// SaveDocument writes the document as one row per top-level node and
// returns the document id. The collection is created on first use;
// saving the same (collection, title, slug) again replaces the old
// blocks under the existing document id. Prev/next links are rebuilt
// from the index order in the same transaction.
func (s *Store) SaveDocument(ctx context.Context, collection, title, slug, sourcePDF string, doc *pmtree.Document) (string, error) {
	now := time.Now().UTC().Format(time.RFC3339)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	collID, err := getOrCreateCollection(ctx, tx, collection, now)
	if err != nil {
		return "", err
	}

	var docID string
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM documents WHERE collection_id = ? AND title = ? AND slug = ?`,
		collID, title, slug).Scan(&docID)
	switch {
	case err == sql.ErrNoRows:
		docID = uuid.NewString()
		var nextIndex int
		if err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(collection_index), 0) + 1 FROM documents WHERE collection_id = ?`,
			collID).Scan(&nextIndex); err != nil {
			return "", fmt.Errorf("next collection index: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO documents (id, collection_id, collection_index, title, slug, source_pdf, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			docID, collID, nextIndex, title, slug, sourcePDF, now); err != nil {
			return "", fmt.Errorf("insert document: %w", err)
		}
	case err != nil:
		return "", fmt.Errorf("query document: %w", err)
	default:
		// Re-save: drop the old blocks, keep the document row. Links are
		// cleared first so the self-referencing FKs allow the delete.
		if _, err := tx.ExecContext(ctx,
			`UPDATE blocks SET prev_block_id = NULL, next_block_id = NULL WHERE document_id = ?`,
			docID); err != nil {
			return "", fmt.Errorf("unlink blocks: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM blocks WHERE document_id = ?`, docID); err != nil {
			return "", fmt.Errorf("delete blocks: %w", err)
		}
	}

	ids := make([]string, len(doc.Content))
	for i, node := range doc.Content {
		ids[i] = uuid.NewString()

		var attrsJSON, contentJSON []byte
		if node.Attrs != nil {
			if attrsJSON, err = json.Marshal(node.Attrs); err != nil {
				return "", fmt.Errorf("marshal attrs: %w", err)
			}
		}
		if node.Content != nil {
			if contentJSON, err = json.Marshal(node.Content); err != nil {
				return "", fmt.Errorf("marshal content: %w", err)
			}
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO blocks (id, document_id, document_index, type, text, attrs, content, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			ids[i], docID, i, node.Type, node.PlainText(), nullable(attrsJSON), nullable(contentJSON), now); err != nil {
			return "", fmt.Errorf("insert block %d: %w", i, err)
		}
	}

	for i, id := range ids {
		var prev, next any
		if i > 0 {
			prev = ids[i-1]
		}
		if i < len(ids)-1 {
			next = ids[i+1]
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE blocks SET prev_block_id = ?, next_block_id = ? WHERE id = ?`,
			prev, next, id); err != nil {
			return "", fmt.Errorf("link block %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return docID, nil
}

func getOrCreateCollection(ctx context.Context, tx *sql.Tx, name, now string) (string, error) {
	var id string
	err := tx.QueryRowContext(ctx, `SELECT id FROM collections WHERE name = ?`, name).Scan(&id)
	if err == sql.ErrNoRows {
		id = uuid.NewString()
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO collections (id, name, created_at) VALUES (?, ?, ?)`,
			id, name, now); err != nil {
			return "", fmt.Errorf("insert collection: %w", err)
		}
		return id, nil
	}
	if err != nil {
		return "", fmt.Errorf("query collection: %w", err)
	}
	return id, nil
}

// LoadDocument reassembles a stored document in index order.
func (s *Store) LoadDocument(ctx context.Context, docID string) (*pmtree.Document, error) {
	var exists int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM documents WHERE id = ?`, docID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("query document: %w", err)
	}
	if exists == 0 {
		return nil, fmt.Errorf("document %s not found", docID)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT type, attrs, content, text FROM blocks WHERE document_id = ? ORDER BY document_index`,
		docID)
	if err != nil {
		return nil, fmt.Errorf("query blocks: %w", err)
	}
	defer rows.Close()

	doc := pmtree.NewDocument()
	for rows.Next() {
		var nodeType string
		var attrsJSON, contentJSON, text sql.NullString
		if err := rows.Scan(&nodeType, &attrsJSON, &contentJSON, &text); err != nil {
			return nil, fmt.Errorf("scan block: %w", err)
		}

		node := &pmtree.Node{Type: nodeType}
		if attrsJSON.Valid && attrsJSON.String != "" {
			node.Attrs = &pmtree.Attrs{}
			if err := json.Unmarshal([]byte(attrsJSON.String), node.Attrs); err != nil {
				return nil, fmt.Errorf("decode attrs: %w", err)
			}
		}
		if contentJSON.Valid && contentJSON.String != "" {
			if err := json.Unmarshal([]byte(contentJSON.String), &node.Content); err != nil {
				return nil, fmt.Errorf("decode content: %w", err)
			}
		} else if text.Valid {
			node.Text = text.String
		}
		doc.Content = append(doc.Content, node)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return doc, nil
}

// ListDocuments returns stored document headers, newest first.
func (s *Store) ListDocuments(ctx context.Context) ([]DocumentInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT d.id, c.name, d.title, d.slug, d.source_pdf, d.created_at
		 FROM documents d JOIN collections c ON c.id = d.collection_id
		 ORDER BY d.created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	var out []DocumentInfo
	for rows.Next() {
		var info DocumentInfo
		var created string
		if err := rows.Scan(&info.ID, &info.Collection, &info.Title, &info.Slug, &info.SourcePDF, &created); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		info.CreatedAt, _ = time.Parse(time.RFC3339, created)
		out = append(out, info)
	}
	return out, rows.Err()
}

// VerifyLinks checks the prev/next chain of a document against its index
// order. Useful after manual reorders.
func (s *Store) VerifyLinks(ctx context.Context, docID string) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, prev_block_id, next_block_id FROM blocks WHERE document_id = ? ORDER BY document_index`,
		docID)
	if err != nil {
		return err
	}
	defer rows.Close()

	var prevID sql.NullString
	var lastNext sql.NullString
	first := true
	for rows.Next() {
		var id string
		var prev, next sql.NullString
		if err := rows.Scan(&id, &prev, &next); err != nil {
			return err
		}
		if first {
			if prev.Valid {
				return fmt.Errorf("first block %s has prev link", id)
			}
			first = false
		} else {
			if !prev.Valid || prev.String != prevID.String {
				return fmt.Errorf("block %s prev link broken", id)
			}
			if !lastNext.Valid || lastNext.String != id {
				return fmt.Errorf("block %s not linked from predecessor", id)
			}
		}
		prevID = sql.NullString{String: id, Valid: true}
		lastNext = next
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if lastNext.Valid {
		return fmt.Errorf("last block has dangling next link")
	}
	return nil
}

func nullable(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
