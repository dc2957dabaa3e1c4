// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types holds the shared data model for the extraction pipeline:
// candidates, canonical keys, merged records, and stage configuration.
package types

// TermHint is a term/definition pairing inferred by the page-layout
// collaborator, typically from bold-run detection. Quality reflects the
// layout engine's certainty and scales the extractor's confidence.
type TermHint struct {
	Term       string  `json:"term" yaml:"term"`
	Definition string  `json:"definition" yaml:"definition"`
	Quality    float64 `json:"quality" yaml:"quality"`
}

// Page is one page of extracted text plus optional layout hints.
type Page struct {
	// Number is the 1-based page number.
	Number int `json:"number" yaml:"number"`

	// Text is the page's plain text as delivered by the page-extraction
	// collaborator.
	Text string `json:"text" yaml:"text"`

	// TermHints carries layout-derived term/definition pairs. May be nil.
	TermHints []TermHint `json:"term_hints,omitempty" yaml:"term_hints,omitempty"`
}

// Document is the unit of pipeline work: an ordered page sequence with a
// stable identifier. Each document is processed independently.
type Document struct {
	// ID is the canonical document identifier.
	ID string `json:"id" yaml:"id"`

	// SourceFile is the filename the document was ingested from.
	SourceFile string `json:"source_file" yaml:"source_file"`

	Pages []Page `json:"pages" yaml:"pages"`
}

// FullText joins all page text, separated by blank lines. Adapters that
// have no page resolution consume the document this way.
func (d *Document) FullText() string {
	var out string
	for i, p := range d.Pages {
		if i > 0 {
			out += "\n\n"
		}
		out += p.Text
	}
	return out
}
