// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/lexengine/internal/pipeline"
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Run deterministic extraction and merge, without AI adapters",
	Long: `Extract processes every document using only the deterministic pattern
extractor: citation and definition grammars, layout hints, canonical
merge, and confidence routing. No API keys required. Results are written
as per-document YAML files under output-dir/extracted/.`,
	RunE: runExtract,
}

func runExtract(cmd *cobra.Command, args []string) error {
	cfg := pipelineConfig(cmd)

	p := pipeline.New(cfg, nil, nil)
	summary, err := p.Run(context.Background(), os.Stdout)
	if err != nil {
		return err
	}
	if summary.Failed > 0 {
		return fmt.Errorf("%d document(s) failed extraction", summary.Failed)
	}
	return nil
}

func init() {
	extractCmd.Flags().String("docs-dir", "docs", "directory of page-text documents")
	extractCmd.Flags().String("output-dir", "output", "base directory for results (contains extracted/)")
	extractCmd.Flags().Int("workers", 0, "parallel document workers (0 = one per CPU)")
	extractCmd.Flags().Float64("threshold", 0.7, "auto-accept confidence threshold")

	rootCmd.AddCommand(extractCmd)
}
