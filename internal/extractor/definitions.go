// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// definitions.go implements the definition grammar: colon-delimited
// term/definition pairs, "means"-style pairs, and layout-derived pairs
// supplied by the page-layout collaborator.
package extractor

import (
	"regexp"
	"strings"

	"github.com/pdiddy/lexengine/pkg/types"
)

// Definition-section header patterns. A page matching any of these, or
// showing a high density of definition-shaped lines, is treated as part
// of the definitions section and its pairs score higher.
var defSectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)Article\s*\(?\s*(?:1|One)\s*\)?\s*[\x{2013}\x{2014}:-]*\s*Definitions?`),
	regexp.MustCompile(`(?i)Definitions?\s+and\s+Interpretations?`),
	regexp.MustCompile(`(?i)Meaning\s+of\s+Terms`),
	regexp.MustCompile(`(?i)Interpretation\s+of\s+Terms`),
	regexp.MustCompile(`(?i)(?:Chapter|Section|Part)\s+(?:\d+|One)\s*[\x{2013}\x{2014}:-]*\s*Definitions`),
	regexp.MustCompile(`(?m)^\s*DEFINITIONS?\s*$`),
	regexp.MustCompile(`(?i)For\s+the\s+purposes?\s+of\s+(?:this|applying)\s`),
}

var (
	// colonPairRe matches "Term: definition". The term class carries no
	// digits, so clock times and article numbers do not trigger it.
	// Definition bodies may continue onto lines that do not open a new
	// pair.
	colonPairRe = regexp.MustCompile(
		`(?m)^\s*([A-Z][A-Za-z\s&(),"']{1,80}?)\s*[:\x{2013}\x{2014}]\s*(.+(?:\n(?![A-Z][A-Za-z\s&(),"']{1,80}\s*[:\x{2013}\x{2014}]).+)*)`)

	// meansPairRe matches "Term means definition" and the "shall mean"
	// variant.
	meansPairRe = regexp.MustCompile(
		`(?m)^\s*([A-Z][A-Za-z\s&(),"']{1,80}?)\s+(?:shall\s+mean|means)\s+(.+(?:\n(?![A-Z][A-Za-z\s&(),"']{1,80}\s+(?:shall\s+mean|means)).+)*)`)

	// quotedPairRe matches `"Term": definition` and `"Term" means definition`.
	quotedPairRe = regexp.MustCompile(
		`(?m)^\s*"([^"\n]{2,80})"\s*(?:[:\x{2013}\x{2014}]|means|shall\s+mean)\s*(.+)`)

	// meansDensityRe and colonDensityRe detect definition-shaped lines
	// for section inference on pages without an explicit header.
	meansDensityRe = regexp.MustCompile(`\b[A-Z][A-Za-z\s]{2,40}\s+means\s+`)
	colonDensityRe = regexp.MustCompile(`\b[A-Z][A-Za-z\s]{2,40}\s*:\s*[A-Z]`)
)

const (
	// Confidence by method: exact colon pairs in a detected definitions
	// section are the strongest evidence; "means" phrasing slightly
	// weaker; anything found outside a detected section is discounted.
	colonPairConfidence   = 0.95
	meansPairConfidence   = 0.9
	outsideSectionPenalty = 0.15

	// Layout pairs inherit the layout engine's quality score.
	layoutBaseConfidence    = 0.5
	layoutQualityWeight     = 0.3
	truncatedConfidenceCap  = 0.6
	definitionSectionWindow = 15
)

// definitionSectionPages maps page numbers to whether the page belongs
// to a definitions section, checking headers and pair density across the
// document's early pages.
func (e *Extractor) definitionSectionPages(pages []types.Page) map[int]bool {
	inSection := make(map[int]bool)
	for i, page := range pages {
		if i >= definitionSectionWindow {
			break
		}
		if matchesDefSection(page.Text) {
			inSection[page.Number] = true
			continue
		}
		means := len(meansDensityRe.FindAllString(page.Text, -1))
		colons := len(colonDensityRe.FindAllString(page.Text, -1))
		if means >= 3 || colons >= 5 {
			inSection[page.Number] = true
		}
	}
	return inSection
}

func matchesDefSection(text string) bool {
	for _, re := range defSectionPatterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// scanDefinitions extracts term/definition pairs from one page. Pattern
// pairs come from the two textual grammars; layout pairs come from the
// collaborator's hints. inSection raises confidence for pattern pairs.
func (e *Extractor) scanDefinitions(docID string, page types.Page, inSection bool) []types.Candidate {
	text := stripPageFurniture(page.Text)

	var out []types.Candidate
	seen := make(map[string]bool)

	emit := func(term, def string, start, end int, confidence float64) {
		term = strings.TrimSpace(term)
		def = strings.TrimSpace(def)
		if !validTermDefinition(term, def) {
			return
		}
		if seen[term] {
			return
		}
		seen[term] = true

		// A body running to the end of the page without a closing
		// period may continue on the next page.
		truncated := end >= len(text) && !strings.HasSuffix(def, ".")
		if truncated && confidence > truncatedConfidenceCap {
			confidence = truncatedConfidenceCap
		}

		out = append(out, types.Candidate{
			Kind:              types.KindDefinition,
			RawText:           term,
			DefinitionText:    def,
			References:        instrumentReferences(def),
			Page:              page.Number,
			DocumentID:        docID,
			Method:            types.MethodRegex,
			Confidence:        confidence,
			Context:           surroundingContext(text, start, end),
			PossiblyTruncated: truncated,
		})
	}

	confidence := func(base float64) float64 {
		if inSection {
			return base
		}
		return base - outsideSectionPenalty
	}

	for _, m := range quotedPairRe.FindAllStringSubmatchIndex(text, -1) {
		emit(text[m[2]:m[3]], text[m[4]:m[5]], m[2], m[5], confidence(colonPairConfidence))
	}
	for _, m := range colonPairRe.FindAllStringSubmatchIndex(text, -1) {
		emit(text[m[2]:m[3]], text[m[4]:m[5]], m[2], m[5], confidence(colonPairConfidence))
	}
	for _, m := range meansPairRe.FindAllStringSubmatchIndex(text, -1) {
		emit(text[m[2]:m[3]], text[m[4]:m[5]], m[2], m[5], confidence(meansPairConfidence))
	}

	// Layout-derived pairs: confidence scales with the layout engine's
	// quality signal, never reaching pattern-match levels.
	for _, hint := range page.TermHints {
		quality := hint.Quality
		if quality < 0 {
			quality = 0
		}
		if quality > 1 {
			quality = 1
		}
		term := strings.TrimSpace(hint.Term)
		def := strings.TrimSpace(hint.Definition)
		if !validTermDefinition(term, def) || seen[term] {
			continue
		}
		seen[term] = true
		out = append(out, types.Candidate{
			Kind:           types.KindDefinition,
			RawText:        term,
			DefinitionText: def,
			References:     instrumentReferences(def),
			Page:           page.Number,
			DocumentID:     docID,
			Method:         types.MethodLayout,
			Confidence:     layoutBaseConfidence + layoutQualityWeight*quality,
		})
	}

	return out
}

// Structural validation of term/definition pairs. Valid terms are noun
// phrases; sentence-shaped captures are rejected by structure rather
// than by enumerating every garbage pattern.

const maxTermLength = 60

var (
	sentenceStarters = map[string]bool{
		"whereas": true, "therefore": true, "however": true, "moreover": true,
		"furthermore": true, "nevertheless": true, "accordingly": true,
		"consequently": true, "hence": true, "thus": true, "when": true,
		"where": true, "while": true, "although": true, "though": true,
		"unless": true, "if": true, "because": true, "since": true,
		"after": true, "before": true, "until": true,
	}

	trailingFragmentWords = map[string]bool{
		"the": true, "a": true, "an": true, "of": true, "to": true,
		"for": true, "in": true, "on": true, "at": true, "by": true,
		"with": true, "from": true, "and": true, "or": true,
	}

	modalRe       = regexp.MustCompile(`(?i)\b(?:shall|must|may|should|would|could|will)\b`)
	structureRe   = regexp.MustCompile(`(?i)\b(?:article|chapter|section|part|clause|paragraph)\s*\(?\d+\)?`)
	prepositions  = []string{"of the", "to the", "by the", "for the", "in the", "on the", "at the"}
	preambleDefRe = regexp.MustCompile(`(?i)^(?:Having reviewed|And based on|Hereby resolves|The Cabinet|Upon the proposal)`)
	citationDefRe = regexp.MustCompile(`(?i)^(?:Cabinet Resolution|Federal Decree|Federal Law|Article|Chapter|Section)\b`)
)

// validTermDefinition applies the structural rules: length bounds, a
// noun-phrase term, and a definition body that is neither preamble nor a
// bare cross-reference.
func validTermDefinition(term, def string) bool {
	if len(term) < 2 || len(def) < 5 {
		return false
	}
	if len(term) > maxTermLength || len(def) > 2000 {
		return false
	}
	if !isNounPhrase(term) {
		return false
	}
	if preambleDefRe.MatchString(def) || citationDefRe.MatchString(def) {
		return false
	}
	return true
}

// isNounPhrase rejects sentence-shaped terms: connector openings, modal
// verbs, preposition chains, structure references, determiner fragments,
// trailing articles, and all-lowercase fragments.
func isNounPhrase(term string) bool {
	lower := strings.ToLower(term)
	words := strings.Fields(term)
	if len(words) == 0 {
		return false
	}

	first := strings.ToLower(words[0])
	if sentenceStarters[first] {
		return false
	}

	if modalRe.MatchString(lower) {
		return false
	}

	prepCount := 0
	for _, prep := range prepositions {
		if strings.Contains(lower, prep) {
			prepCount++
		}
	}
	if prepCount >= 2 {
		return false
	}

	if structureRe.MatchString(lower) {
		return false
	}

	// Bare determiners and determiner fragments are not terms.
	determiners := map[string]bool{"the": true, "any": true, "all": true, "each": true, "every": true, "some": true}
	if len(words) == 1 && determiners[first] {
		return false
	}
	if len(words) == 2 && determiners[first] {
		second := strings.ToLower(words[1])
		if second == "other" || second == "following" || second == "such" || second == "said" {
			return false
		}
	}

	last := strings.ToLower(words[len(words)-1])
	if len(words) > 1 && trailingFragmentWords[last] {
		return false
	}

	// Hyphenation debris and all-lowercase fragments.
	if term == strings.ToLower(term) {
		return false
	}

	return true
}
