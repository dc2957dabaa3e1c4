// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package merge reconciles extraction candidates from all sources into
// MergedRecords: exact canonical-key grouping first, then approximate
// matching for candidates whose keys could not be structurally parsed.
// The reduction is strictly sequential per document.
package merge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/pdiddy/lexengine/internal/canonical"
	"github.com/pdiddy/lexengine/pkg/types"
)

// ErrMalformedCandidate marks a candidate the merger cannot use. Such
// candidates are dropped with a warning, never fatally.
var ErrMalformedCandidate = errors.New("malformed candidate")

// Embedder produces a vector for semantic similarity. The merger treats
// it as optional: nil (or a failing embedder) degrades matching to
// lexical similarity alone.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

const (
	defaultFuzzyThreshold = 0.85

	// Combined-similarity weights when embeddings are available.
	lexicalWeight  = 0.6
	semanticWeight = 0.4
)

// Merger reduces candidates into records. Configuration is fixed at
// construction; a Merger carries no per-document state.
type Merger struct {
	cfg      types.MergeConfig
	embedder Embedder
}

// New constructs a merger. embedder may be nil.
func New(cfg types.MergeConfig, embedder Embedder) *Merger {
	if cfg.FuzzyMatchThreshold <= 0 {
		cfg.FuzzyMatchThreshold = defaultFuzzyThreshold
	}
	if cfg.TieBreak == "" {
		cfg.TieBreak = types.TieBreakEvidence
	}
	return &Merger{cfg: cfg, embedder: embedder}
}

// group accumulates the candidates sharing one identity.
type group struct {
	key   canonical.Key
	cands []types.Candidate
}

// similarityText is the normalized basis for approximate matching.
func (g *group) similarityText() string {
	return canonical.NormalizeTerm(g.cands[0].RawText)
}

// maxConfidence returns the group's best single-candidate confidence.
func (g *group) maxConfidence() float64 {
	best := 0.0
	for _, c := range g.cands {
		if c.Confidence > best {
			best = c.Confidence
		}
	}
	return best
}

// Merge reconciles one document's candidates. Malformed candidates are
// dropped with a warning on w. Records appear in first-sighting order.
func (m *Merger) Merge(ctx context.Context, doc types.Document, cands []types.Candidate, w io.Writer) types.DocumentResult {
	var groups []*group
	index := make(map[string]*group)

	for _, c := range cands {
		if err := validate(c); err != nil {
			fmt.Fprintf(w, "merge %s: dropping candidate %q: %v\n", doc.ID, snippet(c.RawText), err)
			continue
		}

		key := canonical.Canonicalize(c)
		id := key.String()
		if g, ok := index[id]; ok {
			g.cands = append(g.cands, c)
			continue
		}
		g := &group{key: key, cands: []types.Candidate{c}}
		index[id] = g
		groups = append(groups, g)
	}

	groups = m.fuzzyFold(ctx, groups, w)

	result := types.DocumentResult{
		DocumentID: doc.ID,
		SourceFile: doc.SourceFile,
		Pages:      len(doc.Pages),
	}
	for _, g := range groups {
		result.Records = append(result.Records, m.buildRecord(doc.ID, g))
	}
	return result
}

// fuzzyFold folds approximate duplicates together: fallback-key citation
// groups and near-duplicate definition terms. Structurally keyed
// citations are authoritative and never fold into each other. Groups are
// processed in first-sighting order and the surviving order is
// preserved.
func (m *Merger) fuzzyFold(ctx context.Context, groups []*group, w io.Writer) []*group {
	// Structured citation keys are eligible targets from the start.
	var pool []*group
	for _, g := range groups {
		if g.key.Kind == types.KindCitation && !g.key.Fallback {
			pool = append(pool, g)
		}
	}

	embedCache := make(map[string][]float32)
	foldedInto := make(map[*group]*group)

	for _, g := range groups {
		if g.key.Kind == types.KindCitation && !g.key.Fallback {
			continue
		}
		best, score := m.bestMatch(ctx, g, pool, embedCache)
		if best != nil && score >= m.cfg.FuzzyMatchThreshold {
			foldedInto[g] = best
			fmt.Fprintf(w, "merge: folding %q into %s (similarity %.2f)\n", snippet(g.cands[0].RawText), best.key.ID(), score)
			continue
		}
		pool = append(pool, g)
	}

	var kept []*group
	for _, g := range groups {
		if target, ok := foldedInto[g]; ok {
			target.cands = append(target.cands, g.cands...)
			continue
		}
		kept = append(kept, g)
	}
	return kept
}

// bestMatch scans the pool for the most similar same-kind group. Ties
// resolve by the configured policy.
func (m *Merger) bestMatch(ctx context.Context, g *group, pool []*group, embedCache map[string][]float32) (*group, float64) {
	gText := g.similarityText()
	gVec := m.embed(ctx, gText, embedCache)

	var best *group
	bestScore := -1.0
	for _, cand := range pool {
		if cand == g || cand.key.Kind != g.key.Kind {
			continue
		}

		cText := cand.similarityText()
		score := lexicalRatio(gText, cText)
		if gVec != nil {
			if cVec := m.embed(ctx, cText, embedCache); cVec != nil {
				score = lexicalWeight*score + semanticWeight*cosine(gVec, cVec)
			}
		}

		switch {
		case score > bestScore:
			best, bestScore = cand, score
		case score == bestScore && best != nil && m.prefer(cand, best):
			best = cand
		}
	}
	return best, bestScore
}

// embed returns a cached vector, or nil when embeddings are disabled or
// the embedder fails.
func (m *Merger) embed(ctx context.Context, text string, cache map[string][]float32) []float32 {
	if m.embedder == nil || !m.cfg.UseEmbeddings {
		return nil
	}
	if v, ok := cache[text]; ok {
		return v
	}
	v, err := m.embedder.Embed(ctx, text)
	if err != nil {
		v = nil
	}
	cache[text] = v
	return v
}

// prefer reports whether a beats b under the tie-break policy.
func (m *Merger) prefer(a, b *group) bool {
	if m.cfg.TieBreak == types.TieBreakConfidence {
		return a.maxConfidence() > b.maxConfidence()
	}
	return len(a.cands) > len(b.cands)
}

// buildRecord reduces one group into its merged record.
func (m *Merger) buildRecord(docID string, g *group) types.MergedRecord {
	best := g.cands[0]
	for _, c := range g.cands[1:] {
		if c.Confidence > best.Confidence {
			best = c
		}
	}

	rec := types.MergedRecord{
		ID:         canonical.RecordID(docID, g.key),
		Kind:       g.key.Kind,
		DocumentID: docID,
		Fallback:   g.key.Fallback,
		Status:     types.StatusPending,
		BestText:   best.RawText,
		Page:       firstSightingPage(g.cands),
		Confidence: combinedConfidence(g.cands),
	}

	if g.key.Kind == types.KindDefinition {
		rec.NormalizedTerm = g.key.NormalizedTerm
		rec.BestText = canonical.DisplayTerm(best.RawText)
		if def := bestDefinition(g.cands); def != "" {
			rec.DefinitionText = canonical.NormalizeDefinition(def)
		}
		rec.References = unionReferences(g.cands)
	} else {
		rec.CanonicalID = g.key.ID()
	}

	for _, c := range g.cands {
		rec.Provenance = append(rec.Provenance, types.ProvenanceEntry{
			DocumentID: c.DocumentID,
			Page:       c.Page,
			Excerpt:    excerptOf(c),
			Method:     c.Method,
			Confidence: c.Confidence,
		})
	}
	return rec
}

// combinedConfidence aggregates evidence as 1 − Π(1 − cᵢ) over the
// distinct extraction methods, taking each method's best candidate.
// Methods combine in first-seen candidate order, so any method tag a
// candidate carries contributes and results do not depend on map
// iteration. Clamped to [0, 1]; corroboration never lowers confidence.
func combinedConfidence(cands []types.Candidate) float64 {
	byMethod := make(map[types.ExtractionMethod]float64)
	var order []types.ExtractionMethod
	for _, c := range cands {
		prev, seen := byMethod[c.Method]
		if !seen {
			order = append(order, c.Method)
		}
		if !seen || c.Confidence > prev {
			byMethod[c.Method] = c.Confidence
		}
	}

	remainder := 1.0
	for _, method := range order {
		remainder *= 1.0 - byMethod[method]
	}
	conf := 1.0 - remainder
	if conf < 0 {
		conf = 0
	}
	if conf > 1 {
		conf = 1
	}
	return conf
}

// firstSightingPage prefers the first deterministic sighting's page.
func firstSightingPage(cands []types.Candidate) int {
	for _, c := range cands {
		if c.Method == types.MethodRegex || c.Method == types.MethodLayout {
			return c.Page
		}
	}
	return cands[0].Page
}

// bestDefinition returns the highest-confidence non-empty body.
func bestDefinition(cands []types.Candidate) string {
	def := ""
	conf := -1.0
	for _, c := range cands {
		if c.DefinitionText != "" && c.Confidence > conf {
			def = c.DefinitionText
			conf = c.Confidence
		}
	}
	return def
}

// unionReferences merges reference lists in first-seen order.
func unionReferences(cands []types.Candidate) []string {
	seen := make(map[string]bool)
	var refs []string
	for _, c := range cands {
		for _, r := range c.References {
			if !seen[r] {
				seen[r] = true
				refs = append(refs, r)
			}
		}
	}
	return refs
}

// validate classifies unusable candidates under ErrMalformedCandidate.
func validate(c types.Candidate) error {
	switch {
	case c.Kind != types.KindCitation && c.Kind != types.KindDefinition:
		return fmt.Errorf("%w: unknown kind %q", ErrMalformedCandidate, c.Kind)
	case strings.TrimSpace(c.RawText) == "":
		return fmt.Errorf("%w: empty raw text", ErrMalformedCandidate)
	case c.DocumentID == "":
		return fmt.Errorf("%w: missing document id", ErrMalformedCandidate)
	case c.Method == "":
		return fmt.Errorf("%w: missing extraction method", ErrMalformedCandidate)
	case c.Confidence < 0 || c.Confidence > 1:
		return fmt.Errorf("%w: confidence %f out of range [0,1]", ErrMalformedCandidate, c.Confidence)
	}
	return nil
}

// excerptOf prefers the surrounding context, falling back to the match.
func excerptOf(c types.Candidate) string {
	if c.Context != "" {
		return c.Context
	}
	return c.RawText
}

// snippet shortens long candidate text for warnings.
func snippet(s string) string {
	const max = 60
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "…"
}
