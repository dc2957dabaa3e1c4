// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// citations.go implements the citation grammar: an instrument-type
// keyword followed by a number token and a year token, optionally
// followed by an amendment or title clause that may continue onto the
// next lines.
package extractor

import (
	"regexp"
	"strings"

	"github.com/pdiddy/lexengine/pkg/types"
)

// citState tracks the forward-looking citation scanner. The machine
// advances Idle → SawTypeKeyword → SawNumber → SawYear → Closing and
// emits from SawYear or Closing; a bounded line window forces emission
// so malformed text never buffers without limit.
type citState int

const (
	citIdle citState = iota
	citSawTypeKeyword
	citSawNumber
	citSawYear
	citClosing
)

var (
	// typeKeywordRe anchors the machine: one of the instrument-type
	// keywords, most specific alternative first.
	typeKeywordRe = regexp.MustCompile(
		`(?i)\b(?:Federal\s+Decree[-\s]?(?:by\s+)?Law|Decree[-\s]?Law|Federal\s+Law|Cabinet\s+Resolution|Ministerial\s+(?:Resolution|Decision)|Federal\s+Decree)\b`)

	// citNumberRe matches the number token after the keyword.
	citNumberRe = regexp.MustCompile(`(?i)(?:No\.?\s*)?\(?(\d{1,4})\)?(?:\s*/\s*((?:19|20)\d{2}))?`)

	// citYearRe matches the year token.
	citYearRe = regexp.MustCompile(`(?i)\bof\s+((?:19|20)\d{2})\b`)

	// titleClauseRe marks a title clause following the year.
	titleClauseRe = regexp.MustCompile(`(?i)^\s*(?:,?\s*as\s+amended|on|regarding|concerning|issuing|promulgating)\b`)

	// bulletPrefixRe strips list markers before a citation.
	bulletPrefixRe = regexp.MustCompile(`^[−–—•-]\s*`)

	// parenNumberRe detects a parenthesized number for the confidence boost.
	parenNumberRe = regexp.MustCompile(`\(\d+\)`)

	// fourDigitYearRe detects any 4-digit year for the confidence boost.
	fourDigitYearRe = regexp.MustCompile(`\b(?:19|20)\d{2}\b`)

	// clauseKeywordRe detects title-clause keywords for the confidence boost.
	clauseKeywordRe = regexp.MustCompile(`(?i)\b(?:on|regarding|concerning)\b`)

	// slashYearRe matches the compact number/year token for yearEnd.
	slashYearRe = regexp.MustCompile(`\d{1,4}\s*/\s*(?:19|20)\d{2}`)

	// danglingAndRe trims a trailing "; and" connector.
	danglingAndRe = regexp.MustCompile(`(?i);\s*and\s*$`)
)

const (
	minCitationLen = 20
	maxCitationLen = 250
)

// scanCitations runs the citation state machine over one page.
func (e *Extractor) scanCitations(docID string, page types.Page) []types.Candidate {
	text := stripPageFurniture(page.Text)
	lines := strings.Split(text, "\n")

	var out []types.Candidate
	seen := make(map[string]bool)

	for i := 0; i < len(lines); i++ {
		rest := lines[i]
		consumed := 0
		for {
			loc := typeKeywordRe.FindStringIndex(rest)
			if loc == nil {
				break
			}
			capt := e.capture(lines, i, consumed+loc[0])
			if capt.text != "" {
				cand, ok := e.citationCandidate(docID, page, text, capt)
				if ok && !seen[cand.RawText] {
					seen[cand.RawText] = true
					out = append(out, cand)
				}
			}
			// Resume after the keyword so overlapping matches on the
			// same line are still found.
			consumed += loc[1]
			rest = lines[i][consumed:]
		}
	}
	return out
}

// capturedCitation is the state machine's output for one keyword anchor.
type capturedCitation struct {
	text      string
	truncated bool
	sawYear   bool
}

// capture advances the state machine from the keyword at lines[startLine][startCol],
// consuming at most e.lookahead lines beyond the starting one.
func (e *Extractor) capture(lines []string, startLine, startCol int) capturedCitation {
	state := citSawTypeKeyword
	var buf strings.Builder
	buf.WriteString(lines[startLine][startCol:])

	// kwEnd is the buffer offset where the keyword match ends; tokens
	// are searched after it.
	kwLoc := typeKeywordRe.FindStringIndex(buf.String())
	if kwLoc == nil {
		return capturedCitation{}
	}
	kwEnd := kwLoc[1]

	line := startLine
	endOfInput := false
	for {
		text := buf.String()

		switch state {
		case citSawTypeKeyword:
			tail := text[kwEnd:]
			if m := citNumberRe.FindStringSubmatchIndex(tail); m != nil && strings.TrimSpace(tail[:m[0]]) == "" {
				if m[4] >= 0 {
					// Compact number/year form: both tokens at once.
					state = citSawYear
				} else {
					state = citSawNumber
				}
				continue
			}
		case citSawNumber:
			if citYearRe.MatchString(text[kwEnd:]) {
				state = citSawYear
				continue
			}
		case citSawYear:
			// A title clause keeps the machine open; otherwise close at
			// the current terminator.
			yearLoc := yearEnd(text, kwEnd)
			if yearLoc >= 0 && yearLoc < len(text) && titleClauseRe.MatchString(text[yearLoc:]) {
				state = citClosing
				continue
			}
			if term := terminatorAfter(text, yearLoc); term >= 0 {
				return capturedCitation{text: text[:term], sawYear: true}
			}
		case citClosing:
			if term := terminatorAfter(text, yearEnd(text, kwEnd)); term >= 0 {
				return capturedCitation{text: text[:term], sawYear: true}
			}
		}

		// Need more input: pull the next line into the window. A blank
		// line is a paragraph break and closes the capture.
		if line-startLine >= e.lookahead || line+1 >= len(lines) {
			endOfInput = line+1 >= len(lines)
			break
		}
		if strings.TrimSpace(lines[line+1]) == "" {
			break
		}
		line++
		buf.WriteString(" ")
		buf.WriteString(strings.TrimSpace(lines[line]))
	}

	// Window exhausted: forced emission with whatever was matched.
	switch state {
	case citSawYear, citClosing:
		return capturedCitation{text: buf.String(), sawYear: true, truncated: endOfInput}
	case citSawNumber:
		// Keyword and number but no year: emit truncated so the page
		// boundary does not silently lose the sighting.
		return capturedCitation{text: buf.String(), truncated: true}
	default:
		return capturedCitation{}
	}
}

// yearEnd returns the buffer offset just past the year token, or -1.
func yearEnd(text string, from int) int {
	if m := citYearRe.FindStringIndex(text[from:]); m != nil {
		return from + m[1]
	}
	if m := slashYearRe.FindStringIndex(text[from:]); m != nil {
		return from + m[1]
	}
	return -1
}

// terminatorAfter returns the offset of the first sentence terminator at
// or after from, or -1 when the buffer holds none.
func terminatorAfter(text string, from int) int {
	if from < 0 {
		from = 0
	}
	if i := strings.IndexAny(text[from:], ".;"); i >= 0 {
		return from + i
	}
	return -1
}

// citationCandidate cleans captured text and applies the page-level
// suppression rules. ok is false when the capture should be skipped.
func (e *Extractor) citationCandidate(docID string, page types.Page, pageText string, capt capturedCitation) (types.Candidate, bool) {
	text := cleanCitationText(capt.text)
	if len(text) < minCitationLen || len(text) > maxCitationLen {
		return types.Candidate{}, false
	}
	if e.isSelfCitation(text) || isHeaderPosition(text, pageText) {
		return types.Candidate{}, false
	}

	confidence := citationConfidence(text)
	if capt.truncated || !capt.sawYear {
		confidence = 0.5
	}

	var start int
	if idx := strings.Index(pageText, capt.text); idx >= 0 {
		start = idx
	}

	return types.Candidate{
		Kind:              types.KindCitation,
		RawText:           text,
		Page:              page.Number,
		DocumentID:        docID,
		Method:            types.MethodRegex,
		Confidence:        confidence,
		Context:           surroundingContext(pageText, start, start+len(capt.text)),
		PossiblyTruncated: capt.truncated,
	}, true
}

// cleanCitationText normalizes a captured citation: whitespace
// collapsed, bullet prefixes removed, dangling connectors trimmed.
func cleanCitationText(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	text = bulletPrefixRe.ReplaceAllString(text, "")
	text = strings.TrimRight(text, ",;: ")
	text = danglingAndRe.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

// citationConfidence scores a cleaned citation: 0.85 base, boosted for a
// parenthesized number, a 4-digit year, and a title clause. Capped at 1.0.
func citationConfidence(text string) float64 {
	confidence := 0.85
	if parenNumberRe.MatchString(text) {
		confidence += 0.05
	}
	if fourDigitYearRe.MatchString(text) {
		confidence += 0.05
	}
	if clauseKeywordRe.MatchString(text) {
		confidence += 0.05
	}
	if confidence > 1.0 {
		confidence = 1.0
	}
	return confidence
}

// numberYearRe extracts the "No. N of YYYY" core for self-citation
// comparison.
var numberYearRe = regexp.MustCompile(`(?i)no\.?\s*\(?\d+\)?\s+of\s+\d{4}`)

// isSelfCitation reports whether the citation is the document's own
// title: both carry the same number-and-year core.
func (e *Extractor) isSelfCitation(text string) bool {
	if e.title == "" || len(text) <= 50 {
		return false
	}
	citCore := numberYearRe.FindString(strings.ToLower(text))
	titleCore := numberYearRe.FindString(strings.ToLower(e.title))
	return citCore != "" && citCore == titleCore
}

// isHeaderPosition reports whether the citation sits in the first 200
// characters of the page with nothing substantial before it, which marks
// a running header rather than body text.
func isHeaderPosition(text, pageText string) bool {
	pos := strings.Index(pageText, text)
	if pos < 0 || pos >= 200 {
		return false
	}
	before := strings.TrimSpace(pageText[:pos])
	if before == "" || len(before) < 50 {
		return true
	}
	return false
}
