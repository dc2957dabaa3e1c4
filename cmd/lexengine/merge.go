// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/lexengine/internal/store"
)

var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Index per-document result files into the record store",
	Long: `Merge consolidates the per-document result YAML files into the SQLite
record store with FTS5 indexing, then writes the document-keyed JSON
export. Unchanged documents are skipped on subsequent runs; changed
documents are re-indexed in full.`,
	RunE: runMerge,
}

func runMerge(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	cfg := pipelineConfig(cmd)

	st, err := store.NewStore(cfg.Store)
	if err != nil {
		return err
	}
	defer st.Close()

	summary, err := st.Ingest(ctx, os.Stdout)
	if err != nil {
		return err
	}
	if err := st.ExportJSON(ctx); err != nil {
		return fmt.Errorf("writing JSON export: %w", err)
	}

	if summary.Failed > 0 {
		return fmt.Errorf("%d document(s) failed indexing", summary.Failed)
	}
	return nil
}

func init() {
	mergeCmd.Flags().String("output-dir", "output", "base directory for results (contains extracted/, index/)")

	rootCmd.AddCommand(mergeCmd)
}
