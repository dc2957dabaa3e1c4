// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline orchestrates the per-document flow: deterministic
// extraction, adapter enrichment, merge, confidence routing, and result
// persistence. Documents are independent units of work; one document's
// failure never aborts the batch.
package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/lexengine/internal/enhance"
	"github.com/pdiddy/lexengine/internal/extractor"
	"github.com/pdiddy/lexengine/internal/ingest"
	"github.com/pdiddy/lexengine/internal/merge"
	"github.com/pdiddy/lexengine/internal/review"
	"github.com/pdiddy/lexengine/pkg/types"
)

const extractedDir = "extracted"

// Pipeline wires the processing stages together.
type Pipeline struct {
	cfg      types.PipelineConfig
	adapters []enhance.Adapter
	merger   *merge.Merger
	router   *review.Router
}

// New constructs a pipeline. adapters and embedder may be nil; the
// deterministic path runs regardless.
func New(cfg types.PipelineConfig, adapters []enhance.Adapter, embedder merge.Embedder) *Pipeline {
	return &Pipeline{
		cfg:      cfg,
		adapters: adapters,
		merger:   merge.New(cfg.Merge, embedder),
		router:   review.NewRouter(cfg.Review),
	}
}

// RunSummary holds per-run totals.
type RunSummary struct {
	Documents   int
	Failed      int
	Citations   int
	Definitions int
	Accepted    int
	Flagged     int
	Elapsed     time.Duration
}

// Write prints the run summary.
func (s RunSummary) Write(w io.Writer) {
	fmt.Fprintf(w, "\nprocessed %d documents (%d failed) in %s\n",
		s.Documents, s.Failed, s.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(w, "citations: %d, definitions: %d, accepted: %d, flagged: %d\n",
		s.Citations, s.Definitions, s.Accepted, s.Flagged)
}

// Run loads every document from the configured directory and processes
// them with a bounded worker pool. Per-document progress is flushed in
// completion order.
func (p *Pipeline) Run(ctx context.Context, w io.Writer) (RunSummary, error) {
	start := time.Now()

	docs, err := ingest.LoadAll(p.cfg.Extraction.DocsDir, w)
	if err != nil {
		return RunSummary{}, err
	}

	workers := p.cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(docs) && len(docs) > 0 {
		workers = len(docs)
	}

	type docOutcome struct {
		result types.DocumentResult
		log    []byte
		err    error
	}

	jobs := make(chan types.Document)
	outcomes := make(chan docOutcome, len(docs))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for doc := range jobs {
				var log bytes.Buffer
				result, err := p.ProcessDocument(ctx, doc, &log)
				outcomes <- docOutcome{result: result, log: log.Bytes(), err: err}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, doc := range docs {
			select {
			case jobs <- doc:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(outcomes)
	}()

	summary := RunSummary{}
	for outcome := range outcomes {
		w.Write(outcome.log)
		summary.Documents++
		if outcome.err != nil {
			fmt.Fprintf(w, "failed  %s: %v\n", outcome.result.DocumentID, outcome.err)
			summary.Failed++
			continue
		}
		for _, rec := range outcome.result.Records {
			switch rec.Kind {
			case types.KindCitation:
				summary.Citations++
			case types.KindDefinition:
				summary.Definitions++
			}
			switch rec.Status {
			case types.StatusAccepted:
				summary.Accepted++
			case types.StatusFlagged:
				summary.Flagged++
			}
		}
	}

	summary.Elapsed = time.Since(start)
	summary.Write(w)
	return summary, ctx.Err()
}

// ProcessDocument runs the full stage sequence for one document and
// writes its result file. Enrichment runs under the document timeout;
// deterministic results merge even when every adapter expires.
func (p *Pipeline) ProcessDocument(ctx context.Context, doc types.Document, w io.Writer) (types.DocumentResult, error) {
	cands := extractor.New(p.cfg.Extraction).ScanDocument(doc)
	fmt.Fprintf(w, "extract %s: %d candidates\n", doc.ID, len(cands))

	var failures []string
	if len(p.adapters) > 0 {
		enrichCtx := ctx
		if p.cfg.DocumentTimeout > 0 {
			var cancel context.CancelFunc
			enrichCtx, cancel = context.WithTimeout(ctx, p.cfg.DocumentTimeout)
			defer cancel()
		}
		var aiCands []types.Candidate
		aiCands, failures = enhance.EnrichAll(enrichCtx, p.adapters, doc, p.cfg.Enhance, w)
		cands = append(cands, aiCands...)
	}

	result := p.merger.Merge(ctx, doc, cands, w)
	result.AdapterErrors = adapterErrorMap(failures)

	flagged := p.router.RouteAll(result.Records)
	fmt.Fprintf(w, "merged  %s: %d records (%d flagged)\n", doc.ID, len(result.Records), len(flagged))

	if err := p.WriteResult(&result); err != nil {
		return result, err
	}
	return result, nil
}

// WriteResult persists one document's records under
// output_dir/extracted/<doc>-records.yaml.
func (p *Pipeline) WriteResult(result *types.DocumentResult) error {
	dir := filepath.Join(p.cfg.Extraction.OutputDir, extractedDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating results directory: %w", err)
	}

	data, err := yaml.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshaling result: %w", err)
	}

	path := filepath.Join(dir, result.DocumentID+"-records.yaml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing result: %w", err)
	}
	return nil
}

// adapterErrorMap turns "name: message" failure strings into the result
// map.
func adapterErrorMap(failures []string) map[string]string {
	if len(failures) == 0 {
		return nil
	}
	out := make(map[string]string, len(failures))
	for _, f := range failures {
		name, msg, found := strings.Cut(f, ": ")
		if !found {
			name, msg = "adapter", f
		}
		out[name] = msg
	}
	return out
}
