// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/lexengine/internal/review"
	"github.com/pdiddy/lexengine/internal/store"
	"github.com/pdiddy/lexengine/pkg/types"
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Exchange flagged records with the human review collaborator",
	Long: `Review manages the human review queue. Use export to write flagged
records as a CSV batch, and import to apply the reviewed batch
(accept, correct, or reject decisions) back onto the record store.`,
}

// --- export subcommand ---

var reviewExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write flagged records to a CSV review batch",
	RunE:  runReviewExport,
}

func runReviewExport(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	cfg := pipelineConfig(cmd)

	st, err := store.NewStore(cfg.Store)
	if err != nil {
		return err
	}
	defer st.Close()

	flagged, err := st.Retrieve(ctx, store.QueryOptions{
		Status:     types.StatusFlagged,
		MaxResults: 100000,
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
	return nil
}

// --- import subcommand ---

var reviewImportCmd = &cobra.Command{
	Use:   "import <batch.csv>",
	Short: "Apply a reviewed CSV batch to the record store",
	Long: `Import reads a reviewed batch, applies each decided row to its record
(accept, correct with replacement text, or reject), and persists the
outcomes. Importing the same batch twice yields the same final state.
Unknown record IDs are reported and skipped.`,
	Args: cobra.ExactArgs(1),
	RunE: runReviewImport,
}

func runReviewImport(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	cfg := pipelineConfig(cmd)

	st, err := store.NewStore(cfg.Store)
	if err != nil {
		return err
	}
	defer st.Close()

	records, err := st.Retrieve(ctx, store.QueryOptions{MaxResults: 100000})
	if err != nil {
		return err
	}

	queue := review.NewQueue(cfg.Review)
	stats, err := queue.ImportBatch(args[0], records, os.Stdout)
	if err != nil {
		return err
	}

	for i := range records {
		if records[i].ReviewedBy == "" {
			continue
		}
		if err := st.UpdateReview(ctx, &records[i]); err != nil {
			return fmt.Errorf("persisting review outcome for %s: %w", records[i].ID, err)
		}
	}

	if err := st.ExportJSON(ctx); err != nil {
		return fmt.Errorf("refreshing JSON export: %w", err)
	}

	if len(stats.Unknown) > 0 {
		return fmt.Errorf("%d correction(s) referenced unknown records", len(stats.Unknown))
	}
	return nil
}

func init() {
	reviewCmd.PersistentFlags().String("output-dir", "output", "base directory for results (contains review/, index/)")

	reviewCmd.AddCommand(reviewExportCmd)
	reviewCmd.AddCommand(reviewImportCmd)

	rootCmd.AddCommand(reviewCmd)
}
