// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package enhance supplements deterministic extraction with candidates
// from external models. Every adapter is optional: a failure or timeout
// degrades to an empty contribution and the pipeline continues on the
// deterministic results alone.
package enhance

import (
	"context"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/pdiddy/lexengine/pkg/types"
)

// Adapter abstracts one enrichment source. Implementations return
// candidates tagged with their own method; they never mutate the
// document.
type Adapter interface {
	Name() string
	Method() types.ExtractionMethod
	Enrich(ctx context.Context, doc types.Document) ([]types.Candidate, error)
}

const (
	defaultTimeout      = 30 * time.Second
	defaultMaxRetries   = 3
	defaultChunkSize    = 3500
	defaultChunkOverlap = 200

	// adapterConfidenceCap keeps model-sourced confidence below the
	// deterministic extractor's base so pattern evidence always ranks
	// first when both agree.
	adapterConfidenceCap = 0.8
)

// backoffBase controls the base duration for exponential backoff. Tests
// override this to avoid real sleeps.
var backoffBase = time.Second

// EnrichAll runs every adapter against the document and collects their
// candidates. Adapter failures are reported on w and returned as
// messages, never as an error: enrichment is strictly additive.
func EnrichAll(ctx context.Context, adapters []Adapter, doc types.Document, cfg types.EnhanceConfig, w io.Writer) ([]types.Candidate, []string) {
	var out []types.Candidate
	var failures []string

	for _, a := range adapters {
		cands, err := enrichWithRetry(ctx, a, doc, cfg)
		if err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", a.Name(), err))
			fmt.Fprintf(w, "enhance %s failed for %s: %v\n", a.Name(), doc.ID, err)
			continue
		}

		kept, dropped := sanitize(cands, a.Method(), doc.ID)
		if dropped > 0 {
			fmt.Fprintf(w, "enhance %s: dropped %d malformed suggestions for %s\n", a.Name(), dropped, doc.ID)
		}
		out = append(out, kept...)
	}

	return out, failures
}

// enrichWithRetry calls one adapter with exponential backoff and a
// per-attempt timeout.
func enrichWithRetry(ctx context.Context, a Adapter, doc types.Document, cfg types.EnhanceConfig) ([]types.Candidate, error) {
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * backoffBase
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		cands, err := a.Enrich(attemptCtx, doc)
		cancel()
		if err == nil {
			return cands, nil
		}
		lastErr = err

		// The document-level deadline expired: stop retrying.
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, fmt.Errorf("after %d retries: %w", maxRetries, lastErr)
}

// sanitize stamps provenance onto adapter output and drops suggestions
// the merger could not use. Model confidence is clamped under the cap.
func sanitize(cands []types.Candidate, method types.ExtractionMethod, docID string) ([]types.Candidate, int) {
	var kept []types.Candidate
	dropped := 0

	for _, c := range cands {
		c.Method = method
		c.DocumentID = docID
		c.RawText = strings.TrimSpace(c.RawText)
		c.DefinitionText = strings.TrimSpace(c.DefinitionText)

		if c.Confidence > adapterConfidenceCap {
			c.Confidence = adapterConfidenceCap
		}
		if !c.Valid() {
			dropped++
			continue
		}
		kept = append(kept, c)
	}
	return kept, dropped
}

// chunkText splits page text into overlapping windows for generative
// adapters, breaking on whitespace where possible.
func chunkText(text string, size, overlap int) []string {
	if size <= 0 {
		size = defaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = defaultChunkOverlap
		if overlap >= size {
			overlap = size / 4
		}
	}
	if len(text) <= size {
		return []string{text}
	}

	var chunks []string
	for start := 0; start < len(text); {
		end := start + size
		if end >= len(text) {
			chunks = append(chunks, text[start:])
			break
		}
		cut := end
		if i := strings.LastIndexByte(text[start:end], ' '); i > 0 {
			cut = start + i
		}
		chunks = append(chunks, text[start:cut])

		next := cut - overlap
		if next <= start {
			next = cut
		}
		start = next
	}
	return chunks
}
