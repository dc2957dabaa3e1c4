// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// Kind distinguishes the two fact variants the pipeline extracts.
type Kind string

const (
	KindCitation   Kind = "citation"
	KindDefinition Kind = "definition"
)

// ExtractionMethod identifies the source that produced a candidate.
type ExtractionMethod string

const (
	MethodRegex    ExtractionMethod = "regex"
	MethodLayout   ExtractionMethod = "layout"
	MethodGeminiAI ExtractionMethod = "gemini_ai"
	MethodChatAI   ExtractionMethod = "chat_ai"
	MethodNER      ExtractionMethod = "ner"
	MethodReview   ExtractionMethod = "human_review"
)

// Candidate is one unreconciled extraction observation from a single
// source and method. Candidates are immutable once produced; the merger
// consumes them and they are discarded after the merge.
type Candidate struct {
	// Kind is citation or definition.
	Kind Kind `json:"kind" yaml:"kind"`

	// RawText is the matched text as it appeared in the source. For
	// definitions this is the raw term.
	RawText string `json:"raw_text" yaml:"raw_text"`

	// DefinitionText is the definition body. Empty for citations.
	DefinitionText string `json:"definition_text,omitempty" yaml:"definition_text,omitempty"`

	// References lists instrument mentions found inside the definition
	// text. Empty for citations.
	References []string `json:"references,omitempty" yaml:"references,omitempty"`

	// Page is the 1-based page number the candidate was found on. Zero
	// when the producing source has no page resolution.
	Page int `json:"page" yaml:"page"`

	// DocumentID identifies the source document.
	DocumentID string `json:"document_id" yaml:"document_id"`

	// Method tags the producing extractor or adapter.
	Method ExtractionMethod `json:"extraction_method" yaml:"extraction_method"`

	// Confidence is the producer's certainty in [0, 1].
	Confidence float64 `json:"confidence" yaml:"confidence"`

	// Context is the surrounding text where the candidate appears.
	Context string `json:"context,omitempty" yaml:"context,omitempty"`

	// PossiblyTruncated marks a match cut off at a page boundary.
	PossiblyTruncated bool `json:"possibly_truncated,omitempty" yaml:"possibly_truncated,omitempty"`
}

// Valid reports whether the candidate carries the fields the merger
// requires. Invalid candidates are dropped with a warning, never fatal.
func (c Candidate) Valid() bool {
	if c.Kind != KindCitation && c.Kind != KindDefinition {
		return false
	}
	if c.RawText == "" || c.DocumentID == "" || c.Method == "" {
		return false
	}
	return c.Confidence >= 0.0 && c.Confidence <= 1.0
}
