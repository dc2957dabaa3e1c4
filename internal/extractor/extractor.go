// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package extractor scans page text for citation and definition
// candidates using deterministic lexical and layout rules. Scanning is a
// pure function of the page text: re-scanning a page yields the same
// candidates in the same order.
package extractor

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/pdiddy/lexengine/pkg/types"
)

// Extractor is the deterministic pattern extractor. One instance serves
// one document at a time; it carries no mutable state between pages
// except the detected document title.
type Extractor struct {
	lookahead int
	title     string
}

const defaultLookaheadLines = 3

// New constructs an extractor from configuration.
func New(cfg types.ExtractionConfig) *Extractor {
	lookahead := cfg.LookaheadLines
	if lookahead <= 0 {
		lookahead = defaultLookaheadLines
	}
	return &Extractor{lookahead: lookahead}
}

// ScanDocument runs both grammars over every page and returns all
// candidates in page order. A document with no matches yields an empty
// slice, not an error.
func (e *Extractor) ScanDocument(doc types.Document) []types.Candidate {
	e.title = documentTitle(doc.Pages)

	var out []types.Candidate
	defPages := e.definitionSectionPages(doc.Pages)

	for _, page := range doc.Pages {
		out = append(out, e.scanCitations(doc.ID, page)...)
		out = append(out, e.scanDefinitions(doc.ID, page, defPages[page.Number])...)
	}
	return out
}

// ScanPage scans a single page outside document context. Title-based
// self-citation suppression is inactive in this mode.
func (e *Extractor) ScanPage(docID string, page types.Page) []types.Candidate {
	out := e.scanCitations(docID, page)
	return append(out, e.scanDefinitions(docID, page, false)...)
}

// documentTitle returns the first few non-bullet lines of page one,
// which legal instruments use for their own name.
func documentTitle(pages []types.Page) string {
	if len(pages) == 0 {
		return ""
	}
	var titleLines []string
	for _, line := range strings.Split(pages[0].Text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "−") || strings.HasPrefix(line, "•") {
			continue
		}
		titleLines = append(titleLines, line)
		if len(titleLines) >= 3 {
			break
		}
	}
	return strings.Join(titleLines, " ")
}

// stripPageFurniture removes header and footer lines: leading short
// title-like lines and trailing page numbers or very short lines.
func stripPageFurniture(text string) string {
	lines := strings.Split(text, "\n")
	if len(lines) < 10 {
		return text
	}

	start := 0
	for i, line := range lines[:3] {
		trimmed := strings.TrimSpace(line)
		if len(trimmed) < 80 && !strings.HasSuffix(trimmed, ".") &&
			!strings.HasSuffix(trimmed, ";") && !strings.HasSuffix(trimmed, ":") {
			start = i + 1
		} else {
			break
		}
	}

	end := len(lines)
	for i := len(lines) - 1; i >= len(lines)-3 && i > 0; i-- {
		trimmed := strings.TrimSpace(lines[i])
		if isDigits(trimmed) || len(trimmed) < 10 {
			end = i
		} else {
			break
		}
	}

	if start >= end {
		return text
	}
	return strings.Join(lines[start:end], "\n")
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// contextWindow is the number of characters captured around a match.
const contextWindow = 40

// surroundingContext returns a snippet of text around [start, end),
// clamped to rune boundaries and trimmed to word boundaries.
func surroundingContext(text string, start, end int) string {
	ctxStart := start - contextWindow
	if ctxStart < 0 {
		ctxStart = 0
	}
	for ctxStart < len(text) && !utf8.RuneStart(text[ctxStart]) {
		ctxStart++
	}
	ctxEnd := end + contextWindow
	if ctxEnd > len(text) {
		ctxEnd = len(text)
	}
	for ctxEnd > ctxStart && ctxEnd < len(text) && !utf8.RuneStart(text[ctxEnd]) {
		ctxEnd--
	}
	snippet := text[ctxStart:ctxEnd]
	if ctxStart > 0 {
		if i := strings.IndexByte(snippet, ' '); i >= 0 && i < contextWindow {
			snippet = snippet[i+1:]
		}
	}
	if ctxEnd < len(text) {
		if i := strings.LastIndexByte(snippet, ' '); i >= 0 && i > len(snippet)-contextWindow {
			snippet = snippet[:i]
		}
	}
	return strings.TrimSpace(snippet)
}

// instrumentRefRe finds instrument mentions inside definition bodies so
// cross-references can be recorded on the candidate.
var instrumentRefRe = regexp.MustCompile(
	`(?i)(?:Federal Decree[-\s]?(?:by\s+)?Law|Decree[-\s]?Law|Federal Law|Cabinet Resolution|Ministerial (?:Resolution|Decision))\s+No\.?\s*\(?\d+\)?\s+of\s+\d{4}`)

// instrumentReferences lists distinct instrument citations inside text,
// in order of first appearance.
func instrumentReferences(text string) []string {
	seen := make(map[string]bool)
	var refs []string
	for _, m := range instrumentRefRe.FindAllString(text, -1) {
		m = strings.Join(strings.Fields(m), " ")
		if !seen[m] {
			seen[m] = true
			refs = append(refs, m)
		}
	}
	return refs
}
