// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ingest

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDocumentSplitsPages(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "Federal Decree-Law No. (7) of 2017.txt",
		"Page one text.\n\fPage two text.\n\fPage three text.\n")

	doc, err := LoadDocument(path)
	if err != nil {
		t.Fatalf("LoadDocument: %v", err)
	}
	if doc.ID != "federal_decree_law_7_2017" {
		t.Errorf("ID = %q, want the citation parse of the filename", doc.ID)
	}
	if doc.SourceFile != "Federal Decree-Law No. (7) of 2017.txt" {
		t.Errorf("SourceFile = %q", doc.SourceFile)
	}
	if len(doc.Pages) != 3 {
		t.Fatalf("pages = %d, want 3", len(doc.Pages))
	}
	if doc.Pages[0].Number != 1 || doc.Pages[2].Number != 3 {
		t.Errorf("page numbers = %d, %d", doc.Pages[0].Number, doc.Pages[2].Number)
	}
	if doc.Pages[1].Text != "Page two text." {
		t.Errorf("page 2 text = %q", doc.Pages[1].Text)
	}
}

func TestLoadDocumentSlugFallbackID(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "Excise Tax Guide.txt", "Some text.\n")

	doc, err := LoadDocument(path)
	if err != nil {
		t.Fatalf("LoadDocument: %v", err)
	}
	if doc.ID != "excise_tax_guide" {
		t.Errorf("ID = %q, want snake_case slug", doc.ID)
	}
}

func TestLoadDocumentEmptyFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "empty.txt", "  \n\n")

	if _, err := LoadDocument(path); err == nil {
		t.Fatal("expected error for empty document")
	}
}

func TestLoadDocumentAttachesHints(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "guide.txt", "Page one.\n\fPage two.\n")
	writeFile(t, dir, "guide.hints.yaml", `
2:
  - term: Digital Services
    definition: Services delivered over electronic networks.
    quality: 0.8
`)

	doc, err := LoadDocument(path)
	if err != nil {
		t.Fatalf("LoadDocument: %v", err)
	}
	if len(doc.Pages[0].TermHints) != 0 {
		t.Errorf("page 1 hints = %+v, want none", doc.Pages[0].TermHints)
	}
	hints := doc.Pages[1].TermHints
	if len(hints) != 1 {
		t.Fatalf("page 2 hints = %+v", hints)
	}
	if hints[0].Term != "Digital Services" || hints[0].Quality != 0.8 {
		t.Errorf("hint = %+v", hints[0])
	}
}

func TestLoadDocumentMalformedHints(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "guide.txt", "Page one.\n")
	writeFile(t, dir, "guide.hints.yaml", "not: [valid")

	if _, err := LoadDocument(path); err == nil {
		t.Fatal("expected error for malformed sidecar")
	}
}

func TestLoadAllSkipsBadFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "good.txt", "Text.\n")
	writeFile(t, dir, "empty.txt", "")
	writeFile(t, dir, "notes.md", "ignored")

	var buf bytes.Buffer
	docs, err := LoadAll(dir, &buf)
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if len(docs) != 1 || docs[0].ID != "good" {
		t.Fatalf("docs = %+v", docs)
	}
	if !strings.Contains(buf.String(), "skipped empty.txt") {
		t.Errorf("missing skip line:\n%s", buf.String())
	}
	if !strings.Contains(buf.String(), "loaded  good") {
		t.Errorf("missing loaded line:\n%s", buf.String())
	}
}

func TestLoadAllSortsByFilename(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.txt", "B.\n")
	writeFile(t, dir, "a.txt", "A.\n")

	var buf bytes.Buffer
	docs, err := LoadAll(dir, &buf)
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if len(docs) != 2 || docs[0].ID != "a" || docs[1].ID != "b" {
		t.Errorf("order = %v", []string{docs[0].ID, docs[1].ID})
	}
}
