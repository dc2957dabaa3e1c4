// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// ReviewStatus is the lifecycle state of a merged record. Transitions
// only move forward: Pending → Accepted, Flagged; Flagged → Corrected,
// Rejected, Accepted. A record never returns to Pending.
type ReviewStatus string

const (
	StatusPending   ReviewStatus = "pending"
	StatusAccepted  ReviewStatus = "accepted"
	StatusFlagged   ReviewStatus = "flagged"
	StatusCorrected ReviewStatus = "corrected"
	StatusRejected  ReviewStatus = "rejected"
)

// CanTransition reports whether a record may move from s to next.
func (s ReviewStatus) CanTransition(next ReviewStatus) bool {
	if s == next {
		return true
	}
	switch s {
	case StatusPending:
		return next == StatusAccepted || next == StatusFlagged
	case StatusFlagged:
		return next == StatusAccepted || next == StatusCorrected || next == StatusRejected
	default:
		return false
	}
}

// ProvenanceEntry is one piece of evidence supporting a merged record.
// Entries accumulate in insertion order and are never removed.
type ProvenanceEntry struct {
	DocumentID string           `json:"document_id" yaml:"document_id"`
	Page       int              `json:"page" yaml:"page"`
	Excerpt    string           `json:"excerpt" yaml:"excerpt"`
	Method     ExtractionMethod `json:"extraction_method" yaml:"extraction_method"`
	Confidence float64          `json:"confidence" yaml:"confidence"`
}

// MergedRecord is the reconciled output unit: one citation or definition
// with aggregated confidence and a full evidence trail. Created by the
// merger at first sighting of a canonical key, updated on every
// subsequent matching candidate, finalized by the confidence router.
type MergedRecord struct {
	// ID is a stable identifier derived from the document and canonical
	// key, consistent across re-runs on unchanged input.
	ID string `json:"id" yaml:"id"`

	Kind Kind `json:"kind" yaml:"kind"`

	// CanonicalID identifies a citation: instrument_number_year slug, or
	// a hash slug when structured parsing fell back.
	CanonicalID string `json:"canonical_id,omitempty" yaml:"canonical_id,omitempty"`

	// NormalizedTerm identifies a definition.
	NormalizedTerm string `json:"normalized_term,omitempty" yaml:"normalized_term,omitempty"`

	// BestText is the display text from the highest-confidence candidate.
	BestText string `json:"best_text" yaml:"best_text"`

	// DefinitionText is the winning definition body. Empty for citations.
	DefinitionText string `json:"definition_text,omitempty" yaml:"definition_text,omitempty"`

	// References lists instruments mentioned inside the definition.
	References []string `json:"references,omitempty" yaml:"references,omitempty"`

	// Confidence is the evidence-combined score in [0, 1]. It never
	// decreases as corroborating candidates merge in.
	Confidence float64 `json:"confidence" yaml:"confidence"`

	// Fallback marks a record whose canonical key could not be parsed
	// into structured fields; such records cannot be cross-referenced.
	Fallback bool `json:"fallback,omitempty" yaml:"fallback,omitempty"`

	// Page is the page of the first deterministic sighting.
	Page int `json:"page" yaml:"page"`

	DocumentID string `json:"document_id" yaml:"document_id"`

	Provenance []ProvenanceEntry `json:"provenance" yaml:"provenance"`

	Status ReviewStatus `json:"review_status" yaml:"review_status"`

	// CorrectedText holds the reviewer's override after a Corrected
	// import. BestText is replaced; the original stays in provenance.
	CorrectedText string `json:"corrected_text,omitempty" yaml:"corrected_text,omitempty"`

	// ReviewedBy names the reviewer who decided a flagged record.
	ReviewedBy string `json:"reviewed_by,omitempty" yaml:"reviewed_by,omitempty"`
}

// Key returns the identity string the merger groups by.
func (r *MergedRecord) Key() string {
	if r.Kind == KindDefinition {
		return string(r.Kind) + ":" + r.NormalizedTerm
	}
	return string(r.Kind) + ":" + r.CanonicalID
}

// Methods returns the distinct extraction methods present in provenance,
// in first-seen order.
func (r *MergedRecord) Methods() []ExtractionMethod {
	seen := make(map[ExtractionMethod]bool, len(r.Provenance))
	var methods []ExtractionMethod
	for _, p := range r.Provenance {
		if !seen[p.Method] {
			seen[p.Method] = true
			methods = append(methods, p.Method)
		}
	}
	return methods
}

// DocumentResult holds the reconciled output for one document.
type DocumentResult struct {
	// DocumentID is the canonical document identifier.
	DocumentID string `json:"document_id" yaml:"document_id"`

	// SourceFile is the ingested file the document came from.
	SourceFile string `json:"source_file" yaml:"source_file"`

	// Pages is the number of pages processed.
	Pages int `json:"pages" yaml:"pages"`

	// Records are the merged, routed records in merge order.
	Records []MergedRecord `json:"records" yaml:"records"`

	// AdapterErrors notes adapters that contributed nothing, by name.
	// Informational only; an empty contribution is not a failure.
	AdapterErrors map[string]string `json:"adapter_errors,omitempty" yaml:"adapter_errors,omitempty"`
}

// Citations returns the citation records only.
func (d *DocumentResult) Citations() []MergedRecord {
	return d.byKind(KindCitation)
}

// Definitions returns the definition records only.
func (d *DocumentResult) Definitions() []MergedRecord {
	return d.byKind(KindDefinition)
}

func (d *DocumentResult) byKind(k Kind) []MergedRecord {
	var out []MergedRecord
	for _, r := range d.Records {
		if r.Kind == k {
			out = append(out, r)
		}
	}
	return out
}
