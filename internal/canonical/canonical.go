// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package canonical maps raw extraction candidates to stable identities.
// Canonicalization is a pure function of the input text: no randomness,
// no external calls, so identical raw text always yields the same key.
package canonical

import (
	"crypto/sha256"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/pdiddy/lexengine/pkg/types"
)

// InstrumentType enumerates the legal instrument kinds a citation can
// reference.
type InstrumentType string

const (
	InstrumentFederalDecreeLaw      InstrumentType = "federal_decree_law"
	InstrumentFederalLaw            InstrumentType = "federal_law"
	InstrumentCabinetResolution     InstrumentType = "cabinet_resolution"
	InstrumentMinisterialResolution InstrumentType = "ministerial_resolution"
	InstrumentFederalDecree         InstrumentType = "federal_decree"
	InstrumentUnknown               InstrumentType = ""
)

// instrumentPatterns maps type keywords to instrument slugs. Order
// matters: most specific first, so "Federal Decree-Law" does not fall
// through to "Federal Decree".
var instrumentPatterns = []struct {
	re         *regexp.Regexp
	instrument InstrumentType
}{
	{regexp.MustCompile(`(?i)Federal\s+Decree[-\s]?(?:by\s+)?Law`), InstrumentFederalDecreeLaw},
	{regexp.MustCompile(`(?i)Decree[-\s]?Law`), InstrumentFederalDecreeLaw},
	{regexp.MustCompile(`(?i)Federal\s+Law`), InstrumentFederalLaw},
	{regexp.MustCompile(`(?i)Cabinet\s+Resolution`), InstrumentCabinetResolution},
	{regexp.MustCompile(`(?i)Ministerial\s+(?:Resolution|Decision)`), InstrumentMinisterialResolution},
	{regexp.MustCompile(`(?i)Federal\s+Decree`), InstrumentFederalDecree},
}

var (
	// numberRe matches "No. (7)", "No 7", "Number (7)".
	numberRe = regexp.MustCompile(`(?i)No(?:\.|umber)?\s*\(?(\d+)\)?`)

	// slashRe matches compact "7/2017" number/year forms.
	slashRe = regexp.MustCompile(`\b(\d{1,4})\s*/\s*((?:19|20)\d{2})\b`)

	// yearRe matches "of 2017".
	yearRe = regexp.MustCompile(`(?i)\bof\s+((?:19|20)\d{2})\b`)

	// bareNumberRe matches "Law 7 of 2017" without a "No." marker.
	bareNumberRe = regexp.MustCompile(`(?i)\b(?:Law|Resolution|Decision|Decree)\s+\(?(\d{1,4})\)?\s+of\s+(?:19|20)\d{2}\b`)
)

// Key is the identity used to decide whether two candidates denote the
// same citation or definition.
type Key struct {
	Kind types.Kind

	// Instrument, Number, Year are set for structurally parsed citations.
	Instrument InstrumentType
	Number     int
	Year       int

	// NormalizedTerm is set for definitions.
	NormalizedTerm string

	// Fallback marks a citation whose type, number, and year could not
	// all be parsed; its identity is a hash of the normalized raw text.
	Fallback bool

	// hash backs the identity of fallback keys.
	hash string
}

// ID returns the stable canonical identifier: instrument_number_year for
// parsed citations, a raw-hash slug for fallbacks, the normalized term
// for definitions.
func (k Key) ID() string {
	switch {
	case k.Kind == types.KindDefinition:
		return k.NormalizedTerm
	case k.Fallback:
		return "raw_" + k.hash
	default:
		return fmt.Sprintf("%s_%d_%d", k.Instrument, k.Number, k.Year)
	}
}

// String returns the grouping identity including the kind tag, so a
// citation and a definition can never collide.
func (k Key) String() string {
	return string(k.Kind) + ":" + k.ID()
}

// Canonicalize derives the identity key for a candidate.
func Canonicalize(c types.Candidate) Key {
	if c.Kind == types.KindDefinition {
		return DefinitionKey(c.RawText)
	}
	return CitationKey(c.RawText)
}

// CitationKey parses instrument type, number, and year out of raw
// citation text. It fails soft: when any of the three cannot be parsed
// the key falls back to a hash of the normalized raw text, and the
// candidate still participates in merging.
func CitationKey(raw string) Key {
	key := Key{Kind: types.KindCitation}

	for _, p := range instrumentPatterns {
		if p.re.MatchString(raw) {
			key.Instrument = p.instrument
			break
		}
	}

	number, year := parseNumberYear(raw)

	if key.Instrument == InstrumentUnknown || number == 0 || year == 0 {
		key.Fallback = true
		key.hash = hashSlug(normalizeForHash(raw))
		return key
	}

	key.Number = number
	key.Year = year
	return key
}

// parseNumberYear extracts the instrument number and 4-digit year from
// citation text, accepting "No. (7) of 2017", "7/2017", and
// "Law 7 of 2017" shapes.
func parseNumberYear(raw string) (number, year int) {
	if m := slashRe.FindStringSubmatch(raw); m != nil {
		number, _ = strconv.Atoi(m[1])
		year, _ = strconv.Atoi(m[2])
		return number, year
	}

	if m := numberRe.FindStringSubmatch(raw); m != nil {
		number, _ = strconv.Atoi(m[1])
	} else if m := bareNumberRe.FindStringSubmatch(raw); m != nil {
		number, _ = strconv.Atoi(m[1])
	}

	if m := yearRe.FindStringSubmatch(raw); m != nil {
		year, _ = strconv.Atoi(m[1])
	}

	return number, year
}

// DefinitionKey normalizes a raw term into its identity form.
func DefinitionKey(term string) Key {
	return Key{
		Kind:           types.KindDefinition,
		NormalizedTerm: NormalizeTerm(term),
	}
}

// leadingArticles are stripped from the front of normalized terms.
var leadingArticles = []string{"the ", "a ", "an "}

// NormalizeTerm produces the identity form of a term: diacritics folded,
// lower-cased, punctuation stripped, whitespace collapsed, leading
// article removed.
func NormalizeTerm(term string) string {
	t := joinHyphenBreaks(term)
	t = foldDiacritics(t)
	t = strings.ToLower(t)

	var b strings.Builder
	for _, r := range t {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}
	t = strings.Join(strings.Fields(b.String()), " ")

	for _, art := range leadingArticles {
		if strings.HasPrefix(t, art) {
			t = t[len(art):]
			break
		}
	}
	return strings.TrimSpace(t)
}

// punctEdges are trimmed from display terms and definitions.
const punctEdges = ":.,;-—– \"'"

// DisplayTerm cleans a raw term for display while preserving case:
// hyphenated line breaks joined, whitespace collapsed, edge punctuation
// and quotes removed, a leading "The " dropped.
func DisplayTerm(term string) string {
	t := joinHyphenBreaks(term)
	t = strings.Join(strings.Fields(t), " ")
	t = strings.Trim(t, punctEdges)
	t = strings.TrimPrefix(t, "The ")
	return strings.TrimSpace(t)
}

// NormalizeDefinition cleans a raw definition body: hyphenated line
// breaks joined, whitespace collapsed, leading punctuation removed, and
// a terminal period added to sentence-length text.
func NormalizeDefinition(def string) string {
	d := joinHyphenBreaks(def)
	d = strings.Join(strings.Fields(d), " ")
	d = strings.TrimLeft(d, ":,;-—– ")
	d = strings.TrimRight(d, ",;: ")
	if last, _ := utf8.DecodeLastRuneInString(d); d != "" && !strings.ContainsRune(".!?", last) && len(d) > 20 {
		d += "."
	}
	return d
}

// hyphenBreakRe matches a hyphenated line break: "Stock-\npiler".
var hyphenBreakRe = regexp.MustCompile(`-\s*\n\s*`)

func joinHyphenBreaks(s string) string {
	s = hyphenBreakRe.ReplaceAllString(s, "")
	return strings.ReplaceAll(s, "\n", " ")
}

// foldDiacritics strips combining marks after NFD decomposition, so
// "Décret" and "Decret" normalize identically.
func foldDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// normalizeForHash reduces raw citation text to a stable shape before
// hashing so spacing and case differences do not split fallback groups.
func normalizeForHash(raw string) string {
	return strings.ToLower(strings.Join(strings.Fields(raw), " "))
}

// hashSlug returns the first 12 hex characters of SHA-256(s).
func hashSlug(s string) string {
	h := sha256.Sum256([]byte(s))
	return fmt.Sprintf("%x", h)[:12]
}

// RecordID generates a deterministic record identifier from document ID
// and canonical key, consistent across re-runs on unchanged input.
func RecordID(docID string, key Key) string {
	h := sha256.New()
	h.Write([]byte(docID))
	h.Write([]byte{0})
	h.Write([]byte(key.String()))
	return fmt.Sprintf("%x", h.Sum(nil))[:12]
}

var nonWordRe = regexp.MustCompile(`[^\w\s]`)

// DocIDFromFilename derives a canonical document ID from a source
// filename: the citation parse of the name when it succeeds, otherwise a
// snake_case slug of the name.
func DocIDFromFilename(filename string) string {
	name := strings.TrimSuffix(filename, ".txt")
	name = strings.TrimSuffix(name, ".pdf")

	if key := CitationKey(name); !key.Fallback {
		return key.ID()
	}

	slug := nonWordRe.ReplaceAllString(name, "")
	slug = strings.Join(strings.Fields(slug), "_")
	return strings.ToLower(slug)
}
