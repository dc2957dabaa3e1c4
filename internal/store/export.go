// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/lexengine/pkg/types"
)

const exportLimit = 100000

// ExportYAML writes the full record set to index/export.yaml. It
// supports the same filters as Retrieve.
func (s *Store) ExportYAML(ctx context.Context, opts QueryOptions) error {
	opts.MaxResults = exportLimit
	records, err := s.Retrieve(ctx, opts)
	if err != nil {
		return fmt.Errorf("querying for export: %w", err)
	}

	path := filepath.Join(s.outputDir, indexDir, "export.yaml")
	data, err := yaml.Marshal(records)
	if err != nil {
		return fmt.Errorf("marshaling YAML: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// ExportCitation is one citation entry in the document-keyed export.
type ExportCitation struct {
	Text             string  `json:"text"`
	CanonicalID      string  `json:"canonical_id"`
	Page             int     `json:"page"`
	Confidence       float64 `json:"confidence"`
	ExtractionMethod string  `json:"extraction_method"`
}

// ExportDefinition is one definition entry in the document-keyed export.
type ExportDefinition struct {
	Term             string  `json:"term"`
	Definition       string  `json:"definition"`
	Page             int     `json:"page"`
	Confidence       float64 `json:"confidence"`
	ExtractionMethod string  `json:"extraction_method"`
}

// ExportMetadata is the per-document header of the export.
type ExportMetadata struct {
	DocID      string `json:"doc_id"`
	Pages      int    `json:"pages"`
	ExportDate string `json:"export_date"`
}

// ExportDocument groups one document's entries, keyed by source file.
type ExportDocument struct {
	Metadata        ExportMetadata     `json:"metadata"`
	Citations       []ExportCitation   `json:"citations"`
	TermDefinitions []ExportDefinition `json:"term_definitions"`
}

// ExportJSON writes the document-keyed export to index/export.json:
// each source file maps to its metadata, citations, and term
// definitions. Rejected records are excluded; corrected records carry
// the reviewer's text.
func (s *Store) ExportJSON(ctx context.Context) error {
	docs, err := s.Documents(ctx)
	if err != nil {
		return err
	}

	now := time.Now().UTC().Format(time.RFC3339)
	output := make(map[string]*ExportDocument, len(docs))

	for _, doc := range docs {
		records, err := s.Retrieve(ctx, QueryOptions{DocumentID: doc.DocumentID, MaxResults: exportLimit})
		if err != nil {
			return err
		}

		entry := &ExportDocument{
			Metadata: ExportMetadata{
				DocID:      doc.DocumentID,
				Pages:      doc.Pages,
				ExportDate: now,
			},
			Citations:       []ExportCitation{},
			TermDefinitions: []ExportDefinition{},
		}

		for _, rec := range records {
			if rec.Status == types.StatusRejected {
				continue
			}
			method := exportMethod(&rec)
			switch rec.Kind {
			case types.KindCitation:
				entry.Citations = append(entry.Citations, ExportCitation{
					Text:             rec.BestText,
					CanonicalID:      rec.CanonicalID,
					Page:             rec.Page,
					Confidence:       rec.Confidence,
					ExtractionMethod: method,
				})
			case types.KindDefinition:
				entry.TermDefinitions = append(entry.TermDefinitions, ExportDefinition{
					Term:             rec.BestText,
					Definition:       rec.DefinitionText,
					Page:             rec.Page,
					Confidence:       rec.Confidence,
					ExtractionMethod: method,
				})
			}
		}

		key := doc.SourceFile
		if key == "" {
			key = doc.DocumentID
		}
		output[key] = entry
	}

	path := filepath.Join(s.outputDir, indexDir, "export.json")
	data, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// exportMethod summarizes a record's extraction methods, joining
// multi-source records with "+".
func exportMethod(rec *types.MergedRecord) string {
	methods := rec.Methods()
	if len(methods) == 0 {
		return ""
	}
	out := string(methods[0])
	for _, m := range methods[1:] {
		out += "+" + string(m)
	}
	return out
}
