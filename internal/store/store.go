// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store persists merged records in SQLite and serves queries and
// exports over them.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/lexengine/pkg/types"
)

const (
	extractedDir = "extracted"
	indexDir     = "index"
	dbFile       = "lexengine.db"

	resultSuffix = "-records.yaml"
)

const defaultMaxResults = 20

// Store manages the record database.
type Store struct {
	db         *sql.DB
	outputDir  string
	maxResults int
}

// NewStore opens or creates the SQLite database at outputDir/index/ and
// bootstraps the schema.
func NewStore(cfg types.StoreConfig) (*Store, error) {
	dbDir := filepath.Join(cfg.OutputDir, indexDir)
	if err := os.MkdirAll(dbDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}

	dbPath := filepath.Join(dbDir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}

	s := &Store{
		db:         db,
		outputDir:  cfg.OutputDir,
		maxResults: maxResults,
	}

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
			source_file TEXT,
			pages INTEGER
		)`,
		`CREATE TABLE IF NOT EXISTS records (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			kind TEXT NOT NULL,
			canonical_id TEXT,
			normalized_term TEXT,
			best_text TEXT NOT NULL,
			definition_text TEXT,
			refs TEXT,
			confidence REAL,
			fallback INTEGER NOT NULL DEFAULT 0,
			page INTEGER,
			document_id TEXT NOT NULL REFERENCES documents(id),
			review_status TEXT NOT NULL,
			corrected_text TEXT,
			reviewed_by TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_records_document_id ON records(document_id)`,
		`CREATE INDEX IF NOT EXISTS idx_records_kind ON records(kind)`,
		`CREATE INDEX IF NOT EXISTS idx_records_status ON records(review_status)`,
		`CREATE TABLE IF NOT EXISTS provenance (
			record_id TEXT NOT NULL REFERENCES records(id) ON DELETE CASCADE,
			seq INTEGER NOT NULL,
			document_id TEXT,
			page INTEGER,
			excerpt TEXT,
			method TEXT,
			confidence REAL,
			PRIMARY KEY (record_id, seq)
		)`,
		`CREATE TABLE IF NOT EXISTS indexing_status (
			document_id TEXT PRIMARY KEY,
			file_mod_time TEXT
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
		`SELECT count(*) FROM sqlite_master WHERE type='table' AND name='records_fts'`,
	).Scan(&ftsExists); err != nil {
		return fmt.Errorf("checking FTS table: %w", err)
	}

	if ftsExists == 0 {
		ftsStatements := []string{
			`CREATE VIRTUAL TABLE records_fts USING fts5(best_text, definition_text, content=records, content_rowid=rowid)`,
			`CREATE TRIGGER records_ai AFTER INSERT ON records BEGIN
				INSERT INTO records_fts(rowid, best_text, definition_text) VALUES (new.rowid, new.best_text, new.definition_text);
			END`,
			`CREATE TRIGGER records_ad AFTER DELETE ON records BEGIN
				INSERT INTO records_fts(records_fts, rowid, best_text, definition_text) VALUES('delete', old.rowid, old.best_text, old.definition_text);
			END`,
			`CREATE TRIGGER records_au AFTER UPDATE ON records BEGIN
				INSERT INTO records_fts(records_fts, rowid, best_text, definition_text) VALUES('delete', old.rowid, old.best_text, old.definition_text);
				INSERT INTO records_fts(rowid, best_text, definition_text) VALUES (new.rowid, new.best_text, new.definition_text);
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

// IngestSummary holds counts from a store indexing run.
type IngestSummary struct {
	Indexed int
	Updated int
	Skipped int
	Failed  int
}

// Total returns the number of result files processed.
func (s IngestSummary) Total() int {
	return s.Indexed + s.Updated + s.Skipped + s.Failed
}

// Ingest reads per-document result YAML files from outputDir/extracted/
// and populates the database. Unchanged files are skipped, changed
// documents are re-indexed in full. A bad file fails alone; the rest of
// the batch continues.
func (s *Store) Ingest(ctx context.Context, w io.Writer) (IngestSummary, error) {
	resultsDir := filepath.Join(s.outputDir, extractedDir)

	entries, err := os.ReadDir(resultsDir)
	if err != nil {
		return IngestSummary{}, fmt.Errorf("reading results directory %s: %w", resultsDir, err)
	}

	var summary IngestSummary

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), resultSuffix) {
			continue
		}

		select {
		case <-ctx.Done():
			return summary, ctx.Err()
		default:
		}

		docID := strings.TrimSuffix(entry.Name(), resultSuffix)
		filePath := filepath.Join(resultsDir, entry.Name())

		info, err := entry.Info()
		if err != nil {
			fmt.Fprintf(w, "failed  %s: %v\n", docID, err)
			summary.Failed++
			continue
		}
		modTime := info.ModTime().UTC().Format(time.RFC3339Nano)

		var storedModTime string
		err = s.db.QueryRowContext(ctx,
			`SELECT file_mod_time FROM indexing_status WHERE document_id = ?`, docID,
		).Scan(&storedModTime)

		if err == nil && storedModTime == modTime {
			fmt.Fprintf(w, "skipped %s\n", docID)
			summary.Skipped++
			continue
		}

		isUpdate := err == nil

		data, err := os.ReadFile(filePath)
		if err != nil {
			fmt.Fprintf(w, "failed  %s: %v\n", docID, err)
			summary.Failed++
			continue
		}

		var result types.DocumentResult
		if err := yaml.Unmarshal(data, &result); err != nil {
			fmt.Fprintf(w, "failed  %s: parse error: %v\n", docID, err)
			summary.Failed++
			continue
		}

		if err := s.SaveResult(ctx, &result, modTime, isUpdate); err != nil {
			fmt.Fprintf(w, "failed  %s: %v\n", docID, err)
			summary.Failed++
			continue
		}

		if isUpdate {
			fmt.Fprintf(w, "updated %s (%d records)\n", docID, len(result.Records))
			summary.Updated++
		} else {
			fmt.Fprintf(w, "indexed %s (%d records)\n", docID, len(result.Records))
			summary.Indexed++
		}
	}

	fmt.Fprintf(w, "\nindexed: %d, updated: %d, skipped: %d, failed: %d\n",
		summary.Indexed, summary.Updated, summary.Skipped, summary.Failed)

	return summary, nil
}

// SaveResult writes one document's merged records in a single
// transaction. An update replaces the document's previous records.
func (s *Store) SaveResult(ctx context.Context, result *types.DocumentResult, modTime string, isUpdate bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if isUpdate {
		if _, err := tx.ExecContext(ctx, `DELETE FROM records WHERE document_id = ?`, result.DocumentID); err != nil {
			return fmt.Errorf("deleting old records: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO documents (id, source_file, pages) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET source_file=excluded.source_file, pages=excluded.pages`,
		result.DocumentID, result.SourceFile, result.Pages,
	)
	if err != nil {
		return fmt.Errorf("upserting document: %w", err)
	}

	recStmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO records (id, kind, canonical_id, normalized_term, best_text,
			definition_text, refs, confidence, fallback, page, document_id,
			review_status, corrected_text, reviewed_by)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing record insert: %w", err)
	}
	defer recStmt.Close()

	provStmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO provenance (record_id, seq, document_id, page, excerpt, method, confidence)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing provenance insert: %w", err)
	}
	defer provStmt.Close()

	for _, rec := range result.Records {
		refsJSON, _ := json.Marshal(rec.References)
		fallback := 0
		if rec.Fallback {
			fallback = 1
		}
		_, err := recStmt.ExecContext(ctx,
			rec.ID, string(rec.Kind), rec.CanonicalID, rec.NormalizedTerm, rec.BestText,
			rec.DefinitionText, string(refsJSON), rec.Confidence, fallback, rec.Page,
			rec.DocumentID, string(rec.Status), rec.CorrectedText, rec.ReviewedBy,
		)
		if err != nil {
			return fmt.Errorf("inserting record %s: %w", rec.ID, err)
		}

		for seq, p := range rec.Provenance {
			_, err := provStmt.ExecContext(ctx,
				rec.ID, seq, p.DocumentID, p.Page, p.Excerpt, string(p.Method), p.Confidence,
			)
			if err != nil {
				return fmt.Errorf("inserting provenance for %s: %w", rec.ID, err)
			}
		}
	}

	if modTime != "" {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO indexing_status (document_id, file_mod_time) VALUES (?, ?)
			 ON CONFLICT(document_id) DO UPDATE SET file_mod_time=excluded.file_mod_time`,
			result.DocumentID, modTime,
		)
		if err != nil {
			return fmt.Errorf("updating indexing status: %w", err)
		}
	}

	return tx.Commit()
}

// UpdateReview persists a record's review outcome: status, reviewer, and
// the corrected display text when present.
func (s *Store) UpdateReview(ctx context.Context, rec *types.MergedRecord) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE records SET review_status = ?, corrected_text = ?, reviewed_by = ?, best_text = ?
		 WHERE id = ?`,
		string(rec.Status), rec.CorrectedText, rec.ReviewedBy, rec.BestText, rec.ID,
	)
	if err != nil {
		return fmt.Errorf("updating review status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking review update: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("record %s not found", rec.ID)
	}
	return nil
}
