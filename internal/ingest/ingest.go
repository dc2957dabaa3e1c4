// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ingest loads page-text documents from disk. A document is a
// .txt file with form-feed page breaks, optionally accompanied by a
// .hints.yaml sidecar of layout-derived term hints keyed by page number.
package ingest

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/lexengine/internal/canonical"
	"github.com/pdiddy/lexengine/pkg/types"
)

const hintsSuffix = ".hints.yaml"

// LoadDocument reads one page-text file into a Document. The document ID
// is derived from the filename; layout hints from the sidecar attach to
// their pages when the sidecar exists.
func LoadDocument(path string) (types.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.Document{}, fmt.Errorf("reading document: %w", err)
	}

	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	if strings.TrimSpace(text) == "" {
		return types.Document{}, fmt.Errorf("document %s is empty", filepath.Base(path))
	}

	filename := filepath.Base(path)
	doc := types.Document{
		ID:         canonical.DocIDFromFilename(filename),
		SourceFile: filename,
	}

	for i, pageText := range strings.Split(text, "\f") {
		doc.Pages = append(doc.Pages, types.Page{
			Number: i + 1,
			Text:   strings.TrimRight(pageText, "\n"),
		})
	}

	hints, err := loadHints(strings.TrimSuffix(path, filepath.Ext(path)) + hintsSuffix)
	if err != nil {
		return types.Document{}, err
	}
	for i := range doc.Pages {
		doc.Pages[i].TermHints = hints[doc.Pages[i].Number]
	}

	return doc, nil
}

// loadHints reads a sidecar mapping page numbers to term hints. A
// missing sidecar is not an error; a malformed one is.
func loadHints(path string) (map[int][]types.TermHint, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading hints sidecar: %w", err)
	}

	hints := make(map[int][]types.TermHint)
	if err := yaml.Unmarshal(data, &hints); err != nil {
		return nil, fmt.Errorf("parsing hints sidecar %s: %w", filepath.Base(path), err)
	}
	return hints, nil
}

// LoadAll reads every .txt document in dir, in filename order. A file
// that fails to load is reported on w and skipped; the rest of the batch
// continues.
func LoadAll(dir string, w io.Writer) ([]types.Document, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading documents directory %s: %w", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".txt") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	var docs []types.Document
	for _, name := range names {
		doc, err := LoadDocument(filepath.Join(dir, name))
		if err != nil {
			fmt.Fprintf(w, "skipped %s: %v\n", name, err)
			continue
		}
		fmt.Fprintf(w, "loaded  %s (%d pages)\n", doc.ID, len(doc.Pages))
		docs = append(docs, doc)
	}
	return docs, nil
}
