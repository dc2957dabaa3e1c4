// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pdiddy/lexengine/pkg/types"
)

// QueryOptions holds parameters for record queries.
type QueryOptions struct {
	// Query is the FTS5 full-text search string over the display text and
	// definition body.
	Query string

	// Kind filters citations or definitions.
	Kind types.Kind

	// DocumentID filters by document.
	DocumentID string

	// Status filters by review status.
	Status types.ReviewStatus

	// MaxResults limits result count. Zero uses the store default.
	MaxResults int
}

// IsEmpty reports whether the query has no search terms or filters.
func (q QueryOptions) IsEmpty() bool {
	return q.Query == "" && q.Kind == "" && q.DocumentID == "" && q.Status == ""
}

// Retrieve queries records with optional full-text search and structured
// filters. Full-text queries rank by relevance; structured-only queries
// sort by document, page, then id. Provenance is loaded with each
// record.
func (s *Store) Retrieve(ctx context.Context, opts QueryOptions) ([]types.MergedRecord, error) {
	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = s.maxResults
	}

	var (
		qb     strings.Builder
		args   []any
		useFTS = opts.Query != ""
	)

	if useFTS {
		qb.WriteString(
			`SELECT r.id, r.kind, r.canonical_id, r.normalized_term, r.best_text,
				r.definition_text, r.refs, r.confidence, r.fallback, r.page,
				r.document_id, r.review_status, r.corrected_text, r.reviewed_by
			FROM records_fts
			JOIN records r ON r.rowid = records_fts.rowid
			WHERE records_fts MATCH ?`)
		args = append(args, opts.Query)
	} else {
		qb.WriteString(
			`SELECT r.id, r.kind, r.canonical_id, r.normalized_term, r.best_text,
				r.definition_text, r.refs, r.confidence, r.fallback, r.page,
				r.document_id, r.review_status, r.corrected_text, r.reviewed_by
			FROM records r
			WHERE 1=1`)
	}

	if opts.Kind != "" {
		qb.WriteString(` AND r.kind = ?`)
		args = append(args, string(opts.Kind))
	}

	if opts.DocumentID != "" {
		qb.WriteString(` AND r.document_id = ?`)
		args = append(args, opts.DocumentID)
	}

	if opts.Status != "" {
		qb.WriteString(` AND r.review_status = ?`)
		args = append(args, string(opts.Status))
	}

	if useFTS {
		qb.WriteString(` ORDER BY records_fts.rank`)
	} else {
		qb.WriteString(` ORDER BY r.document_id, r.page, r.id`)
	}

	qb.WriteString(` LIMIT ?`)
	args = append(args, maxResults)

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}
	defer rows.Close()

	var records []types.MergedRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range records {
		prov, err := s.provenanceFor(ctx, records[i].ID)
		if err != nil {
			return nil, err
		}
		records[i].Provenance = prov
	}

	return records, nil
}

func scanRecord(rows *sql.Rows) (types.MergedRecord, error) {
	var rec types.MergedRecord
	var kind, status string
	var canonicalID, normalizedTerm, definitionText, refsJSON, correctedText, reviewedBy sql.NullString
	var fallback int

	if err := rows.Scan(
		&rec.ID, &kind, &canonicalID, &normalizedTerm, &rec.BestText,
		&definitionText, &refsJSON, &rec.Confidence, &fallback, &rec.Page,
		&rec.DocumentID, &status, &correctedText, &reviewedBy,
	); err != nil {
		return rec, fmt.Errorf("scanning record: %w", err)
	}

	rec.Kind = types.Kind(kind)
	rec.Status = types.ReviewStatus(status)
	rec.CanonicalID = canonicalID.String
	rec.NormalizedTerm = normalizedTerm.String
	rec.DefinitionText = definitionText.String
	rec.CorrectedText = correctedText.String
	rec.ReviewedBy = reviewedBy.String
	rec.Fallback = fallback != 0
	if refsJSON.Valid {
		json.Unmarshal([]byte(refsJSON.String), &rec.References)
	}
	return rec, nil
}

func (s *Store) provenanceFor(ctx context.Context, recordID string) ([]types.ProvenanceEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT document_id, page, excerpt, method, confidence
		 FROM provenance WHERE record_id = ? ORDER BY seq`, recordID)
	if err != nil {
		return nil, fmt.Errorf("querying provenance: %w", err)
	}
	defer rows.Close()

	var entries []types.ProvenanceEntry
	for rows.Next() {
		var (
			p      types.ProvenanceEntry
			method string
		)
		if err := rows.Scan(&p.DocumentID, &p.Page, &p.Excerpt, &method, &p.Confidence); err != nil {
			return nil, fmt.Errorf("scanning provenance: %w", err)
		}
		p.Method = types.ExtractionMethod(method)
		entries = append(entries, p)
	}
	return entries, rows.Err()
}

// Documents lists the indexed documents in id order.
func (s *Store) Documents(ctx context.Context) ([]types.DocumentResult, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, source_file, pages FROM documents ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var docs []types.DocumentResult
	for rows.Next() {
		var d types.DocumentResult
		if err := rows.Scan(&d.DocumentID, &d.SourceFile, &d.Pages); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}
