// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// AIConfig holds shared settings for adapters that call a Generative AI API.
type AIConfig struct {
	// Model is the AI model identifier (e.g. "gemini-2.0-flash").
	Model string `json:"model" yaml:"model"`

	// APIKey is the authentication key for the AI API.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// MaxRetries is the number of retry attempts for failed API calls (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`
}

// ExtractionConfig holds settings for the deterministic extraction stage.
type ExtractionConfig struct {
	// DocsDir is the directory of ingested page-text documents.
	DocsDir string `json:"docs_dir" yaml:"docs_dir"`

	// OutputDir is the base directory for per-document result files
	// (contains extracted/, review/, index/).
	OutputDir string `json:"output_dir" yaml:"output_dir"`

	// LookaheadLines bounds the citation state machine's forward window
	// across line breaks (default 3).
	LookaheadLines int `json:"lookahead_lines" yaml:"lookahead_lines"`
}

// EnhanceConfig holds settings for the enrichment adapters.
type EnhanceConfig struct {
	AIConfig `yaml:",inline"`

	// Timeout bounds a single adapter attempt (default 30s).
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// ChunkSize is the character length of text chunks sent to
	// generative adapters (default 3500).
	ChunkSize int `json:"chunk_size" yaml:"chunk_size"`

	// ChunkOverlap is the character overlap between chunks (default 200).
	ChunkOverlap int `json:"chunk_overlap" yaml:"chunk_overlap"`

	// ChatBaseURL points the OpenAI-compatible chat adapter at an
	// alternative endpoint. Empty uses the OpenAI default.
	ChatBaseURL string `json:"chat_base_url,omitempty" yaml:"chat_base_url,omitempty"`

	// NERBaseURL is the entity-recognition service endpoint. Empty
	// disables the NER adapter.
	NERBaseURL string `json:"ner_base_url,omitempty" yaml:"ner_base_url,omitempty"`

	// EmbeddingModel selects the embeddings model for semantic
	// similarity (default "text-embedding-3-small").
	EmbeddingModel string `json:"embedding_model" yaml:"embedding_model"`
}

// TieBreakPolicy selects how the merger resolves an equal-similarity tie
// when a candidate could join two groups.
type TieBreakPolicy string

const (
	// TieBreakEvidence merges into the group with more provenance.
	TieBreakEvidence TieBreakPolicy = "evidence"

	// TieBreakConfidence merges into the group whose best candidate has
	// the higher confidence.
	TieBreakConfidence TieBreakPolicy = "confidence"
)

// MergeConfig holds settings for the result merger.
type MergeConfig struct {
	// FuzzyMatchThreshold is the combined-similarity cutoff above which
	// fallback-key candidates merge (default 0.85).
	FuzzyMatchThreshold float64 `json:"fuzzy_match_threshold" yaml:"fuzzy_match_threshold"`

	// UseEmbeddings enables semantic similarity when an embedder is
	// configured (default true).
	UseEmbeddings bool `json:"use_embeddings" yaml:"use_embeddings"`

	// TieBreak selects the equal-similarity policy (default evidence).
	TieBreak TieBreakPolicy `json:"tie_break" yaml:"tie_break"`
}

// ReviewConfig holds settings for the confidence router and review queue.
type ReviewConfig struct {
	// HighConfidenceThreshold is the auto-accept cutoff (default 0.7).
	HighConfidenceThreshold float64 `json:"high_confidence_threshold" yaml:"high_confidence_threshold"`

	// QueueDir is the directory review batches are written to and read
	// back from (default "<output_dir>/review").
	QueueDir string `json:"queue_dir" yaml:"queue_dir"`
}

// StoreConfig holds settings for the record store.
type StoreConfig struct {
	// OutputDir is the base directory containing index/ with the SQLite
	// database and exports.
	OutputDir string `json:"output_dir" yaml:"output_dir"`

	// MaxResults is the default maximum number of query results (default 20).
	MaxResults int `json:"max_results" yaml:"max_results"`
}

// PipelineConfig groups all stage configurations.
type PipelineConfig struct {
	Extraction ExtractionConfig `json:"extraction" yaml:"extraction"`
	Enhance    EnhanceConfig    `json:"enhance" yaml:"enhance"`
	Merge      MergeConfig      `json:"merge" yaml:"merge"`
	Review     ReviewConfig     `json:"review" yaml:"review"`
	Store      StoreConfig      `json:"store" yaml:"store"`

	// Workers bounds parallel document processing. Zero means one worker
	// per CPU.
	Workers int `json:"workers" yaml:"workers"`

	// DocumentTimeout bounds one document's enrichment phase. Expired
	// adapters contribute nothing; deterministic results still merge.
	DocumentTimeout time.Duration `json:"document_timeout" yaml:"document_timeout"`
}
