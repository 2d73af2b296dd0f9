// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package corpus persists survey passages in SQLite and serves
// full-text retrieval for idea generation grounding. Requires
// mattn/go-sqlite3 built with the sqlite_fts5 tag (mage Build and
// Test pass it).
// Implements: prd008-ideation (R2.4, R6.1-R6.4).
package corpus

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/LiZaiyuan0619/IGen/pkg/types"
)

const dbFile = "corpus.db"

// maxPassageLen caps a single indexed passage; longer paragraphs are
// split on sentence-ish boundaries by the chunker.
const maxPassageLen = 1200

// Store manages the passage corpus SQLite database.
type Store struct {
	db         *sql.DB
	maxResults int
}

// NewStore opens or creates the corpus database at cfg.DBDir/corpus.db,
// creating the schema if needed.
func NewStore(cfg types.CorpusConfig) (*Store, error) {
	if err := os.MkdirAll(cfg.DBDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating corpus directory: %w", err)
	}

	dbPath := filepath.Join(cfg.DBDir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 5
	}

	s := &Store{db: db, maxResults: maxResults}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			title TEXT,
			source_path TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS passages (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			doc_id TEXT NOT NULL REFERENCES documents(id),
			section TEXT,
			content TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_passages_doc_id ON passages(doc_id)`,
		`CREATE TABLE IF NOT EXISTS indexing_status (
			doc_id TEXT PRIMARY KEY,
			content_hash TEXT
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}

	// FTS5 virtual table with triggers for sync.
	var ftsExists int
	if err := s.db.QueryRow(
		`SELECT count(*) FROM sqlite_master WHERE type='table' AND name='passages_fts'`,
	).Scan(&ftsExists); err != nil {
		return fmt.Errorf("checking FTS table: %w", err)
	}
	if ftsExists == 0 {
		ftsStatements := []string{
			`CREATE VIRTUAL TABLE passages_fts USING fts5(content, content=passages, content_rowid=rowid)`,
			`CREATE TRIGGER passages_ai AFTER INSERT ON passages BEGIN
				INSERT INTO passages_fts(rowid, content) VALUES (new.rowid, new.content);
			END`,
			`CREATE TRIGGER passages_ad AFTER DELETE ON passages BEGIN
				INSERT INTO passages_fts(passages_fts, rowid, content) VALUES('delete', old.rowid, old.content);
			END`,
			`CREATE TRIGGER passages_au AFTER UPDATE ON passages BEGIN
				INSERT INTO passages_fts(passages_fts, rowid, content) VALUES('delete', old.rowid, old.content);
				INSERT INTO passages_fts(rowid, content) VALUES (new.rowid, new.content);
			END`,
		}
		for _, stmt := range ftsStatements {
			if _, err := s.db.Exec(stmt); err != nil {
				return fmt.Errorf("creating FTS infrastructure: %w", err)
			}
		}
	}
	return nil
}

// IndexSummary holds counts from a corpus indexing run.
type IndexSummary struct {
	Indexed  int
	Updated  int
	Skipped  int
	Failed   int
	Passages int
}

// Total returns the number of documents processed.
func (s IndexSummary) Total() int {
	return s.Indexed + s.Updated + s.Skipped + s.Failed
}

// Index chunks each document's sections into passages and stores them.
// Unchanged documents, detected by content hash, are skipped so repeat
// runs are incremental. Per-document failures never abort the run.
func (s *Store) Index(ctx context.Context, docs []types.Document, w io.Writer) (IndexSummary, error) {
	var summary IndexSummary

	for _, doc := range docs {
		select {
		case <-ctx.Done():
			return summary, ctx.Err()
		default:
		}

		hash := docHash(doc)

		var storedHash string
		err := s.db.QueryRowContext(ctx,
			`SELECT content_hash FROM indexing_status WHERE doc_id = ?`, doc.ID,
		).Scan(&storedHash)
		if err == nil && storedHash == hash {
			fmt.Fprintf(w, "skipped %s\n", doc.ID)
			summary.Skipped++
			continue
		}
		isUpdate := err == nil

		passages := chunkDocument(doc)
		if err := s.indexDocument(ctx, doc, passages, hash, isUpdate); err != nil {
			fmt.Fprintf(w, "failed  %s: %v\n", doc.ID, err)
			summary.Failed++
			continue
		}

		summary.Passages += len(passages)
		if isUpdate {
			fmt.Fprintf(w, "updated %s (%d passages)\n", doc.ID, len(passages))
			summary.Updated++
		} else {
			fmt.Fprintf(w, "indexing %s (%d passages)\n", doc.ID, len(passages))
			summary.Indexed++
		}
	}

	fmt.Fprintf(w, "\nindexed: %d, updated: %d, skipped: %d, failed: %d\n",
		summary.Indexed, summary.Updated, summary.Skipped, summary.Failed)
	return summary, nil
}

func (s *Store) indexDocument(ctx context.Context, doc types.Document, passages []indexedPassage, hash string, isUpdate bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if isUpdate {
		if _, err := tx.ExecContext(ctx, `DELETE FROM passages WHERE doc_id = ?`, doc.ID); err != nil {
			return fmt.Errorf("deleting old passages: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO documents (id, title, source_path) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET title=excluded.title, source_path=excluded.source_path`,
		doc.ID, doc.Title, doc.SourcePath,
	)
	if err != nil {
		return fmt.Errorf("upserting document: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO passages (id, doc_id, section, content) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, p := range passages {
		if _, err := stmt.ExecContext(ctx, p.id, doc.ID, p.section, p.content); err != nil {
			return fmt.Errorf("inserting passage %s: %w", p.id, err)
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO indexing_status (doc_id, content_hash) VALUES (?, ?)
		 ON CONFLICT(doc_id) DO UPDATE SET content_hash=excluded.content_hash`,
		doc.ID, hash,
	)
	if err != nil {
		return fmt.Errorf("updating indexing status: %w", err)
	}

	return tx.Commit()
}

type indexedPassage struct {
	id      string
	section string
	content string
}

// chunkDocument splits a document's abstract and sections into
// paragraph-sized passages.
func chunkDocument(doc types.Document) []indexedPassage {
	var out []indexedPassage
	add := func(section, text string) {
		for _, para := range splitParagraphs(text) {
			seq := len(out)
			out = append(out, indexedPassage{
				id:      passageID(doc.ID, section, seq),
				section: section,
				content: para,
			})
		}
	}

	if doc.Abstract != "" {
		add("abstract", doc.Abstract)
	}
	for _, sec := range doc.Sections {
		add(sec.Heading, sec.Body)
	}
	return out
}

// splitParagraphs breaks text on blank lines, folding oversized
// paragraphs down to maxPassageLen at sentence boundaries.
func splitParagraphs(text string) []string {
	var out []string
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		for len(para) > maxPassageLen {
			cut := strings.LastIndex(para[:maxPassageLen], ". ")
			if cut <= 0 {
				cut = maxPassageLen
			} else {
				cut++ // keep the period
			}
			out = append(out, strings.TrimSpace(para[:cut]))
			para = strings.TrimSpace(para[cut:])
		}
		if para != "" {
			out = append(out, para)
		}
	}
	return out
}

// Query performs full-text retrieval and returns the top k passages by
// FTS5 rank. Free text is sanitized into a quoted-term OR query so
// punctuation in prompts cannot break the match expression. k <= 0 uses
// the store default.
func (s *Store) Query(ctx context.Context, text string, k int) ([]types.Passage, error) {
	if k <= 0 {
		k = s.maxResults
	}
	match := buildMatchQuery(text)
	if match == "" {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT p.id, p.content, d.title, p.section, passages_fts.rank
		FROM passages_fts
		JOIN passages p ON p.rowid = passages_fts.rowid
		LEFT JOIN documents d ON p.doc_id = d.id
		WHERE passages_fts MATCH ?
		ORDER BY passages_fts.rank
		LIMIT ?`, match, k)
	if err != nil {
		return nil, fmt.Errorf("querying corpus: %w", err)
	}
	defer rows.Close()

	var out []types.Passage
	for rows.Next() {
		var (
			p       types.Passage
			title   sql.NullString
			section sql.NullString
			rank    float64
		)
		if err := rows.Scan(&p.ID, &p.Text, &title, &section, &rank); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		source := title.String
		if section.Valid && section.String != "" {
			source = source + " § " + section.String
		}
		p.Source = strings.TrimSpace(strings.TrimPrefix(source, "§"))
		// FTS5 rank is more negative for better matches.
		p.Score = -rank
		out = append(out, p)
	}
	return out, rows.Err()
}

// buildMatchQuery turns free text into an FTS5 expression: each term is
// stripped to letters and digits, double-quoted, and joined with OR.
func buildMatchQuery(text string) string {
	fields := strings.Fields(text)
	terms := make([]string, 0, len(fields))
	seen := make(map[string]bool)
	for _, f := range fields {
		term := strings.Map(func(r rune) rune {
			if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '-' {
				return r
			}
			return -1
		}, f)
		term = strings.ToLower(strings.Trim(term, "-"))
		if len(term) < 2 || seen[term] {
			continue
		}
		seen[term] = true
		terms = append(terms, `"`+term+`"`)
	}
	return strings.Join(terms, " OR ")
}

func passageID(docID, section string, seq int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%d", docID, section, seq)))
	return hex.EncodeToString(sum[:])[:12]
}

// docHash fingerprints a document's indexable content for incremental
// runs.
func docHash(doc types.Document) string {
	h := sha256.New()
	io.WriteString(h, doc.Title)
	io.WriteString(h, "\x00")
	io.WriteString(h, doc.Abstract)
	for _, sec := range doc.Sections {
		io.WriteString(h, "\x00")
		io.WriteString(h, sec.Heading)
		io.WriteString(h, "\x00")
		io.WriteString(h, sec.Body)
	}
	return hex.EncodeToString(h.Sum(nil))
}
