// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/lexengine/internal/pipeline"
	"github.com/pdiddy/lexengine/internal/review"
	"github.com/pdiddy/lexengine/internal/store"
	"github.com/pdiddy/lexengine/pkg/types"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full pipeline: extract, enhance, merge, route, index",
	Long: `Run processes every document in the docs directory end to end:
deterministic extraction, AI enhancement (when API keys are configured),
merge and confidence routing, result files, SQLite indexing, the
document-keyed JSON export, and a review batch for flagged records.`,
	RunE: runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	cfg := pipelineConfig(cmd)

	adapters, cleanup, err := buildAdapters(ctx, cfg.Enhance)
	if err != nil {
		return err
	}
	defer cleanup()

	p := pipeline.New(cfg, adapters, buildEmbedder(cfg.Merge, cfg.Enhance))
	summary, err := p.Run(ctx, os.Stdout)
	if err != nil {
		return err
	}

	st, err := store.NewStore(cfg.Store)
	if err != nil {
		return err
	}
	defer st.Close()

	if _, err := st.Ingest(ctx, os.Stdout); err != nil {
		return err
	}
	if err := st.ExportJSON(ctx); err != nil {
		return fmt.Errorf("writing JSON export: %w", err)
	}

	if summary.Flagged > 0 {
		flagged, err := st.Retrieve(ctx, store.QueryOptions{
			Status:     types.StatusFlagged,
			MaxResults: summary.Flagged,
		})
		if err != nil {
			return err
		}
		refs := make([]*types.MergedRecord, len(flagged))
		for i := range flagged {
			refs[i] = &flagged[i]
		}
		queue := review.NewQueue(cfg.Review)
		if _, err := queue.ExportBatch(refs, os.Stdout); err != nil {
			return err
		}
		queue.Summarize(refs).Write(os.Stdout)
	}

	if summary.Failed > 0 {
		return fmt.Errorf("%d document(s) failed processing", summary.Failed)
	}
	return nil
}

func init() {
	runCmd.Flags().String("docs-dir", "docs", "directory of page-text documents")
	runCmd.Flags().String("output-dir", "output", "base directory for results (contains extracted/, review/, index/)")
	runCmd.Flags().Int("workers", 0, "parallel document workers (0 = one per CPU)")
	runCmd.Flags().Float64("threshold", 0.7, "auto-accept confidence threshold")

	rootCmd.AddCommand(runCmd)
}
