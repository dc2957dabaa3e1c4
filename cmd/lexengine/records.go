// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/lexengine/internal/store"
	"github.com/pdiddy/lexengine/pkg/types"
)

var recordsCmd = &cobra.Command{
	Use:   "records [query]",
	Short: "Query merged records with full-text search and filters",
	Long: `Records searches the record store using FTS5 full-text search over
display text and definitions, structured filters (kind, document,
status), or a combination of both. Each result carries its provenance
trail. Use --export to write the full record set instead.`,
	RunE: runRecords,
}

func runRecords(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	cfg := pipelineConfig(cmd)

	st, err := store.NewStore(cfg.Store)
	if err != nil {
		return err
	}
	defer st.Close()

	format, _ := cmd.Flags().GetString("export")
	if format != "" {
		return runRecordsExport(ctx, st, format)
	}

	opts := recordOptsFromFlags(cmd, args)
	if opts.IsEmpty() {
		return fmt.Errorf("query or filter required: provide a search query, --kind, --document, or --status")
	}

	records, err := st.Retrieve(ctx, opts)
	if err != nil {
		return err
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	return formatRecordsOutput(records, jsonOutput)
}

func runRecordsExport(ctx context.Context, st *store.Store, format string) error {
	switch format {
	case "yaml":
		if err := st.ExportYAML(ctx, store.QueryOptions{}); err != nil {
			return err
		}
		fmt.Println("Exported to index/export.yaml")
	case "json":
		if err := st.ExportJSON(ctx); err != nil {
			return err
		}
		fmt.Println("Exported to index/export.json")
	default:
		return fmt.Errorf("unsupported format %q: use yaml or json", format)
	}
	return nil
}

func formatRecordsOutput(records []types.MergedRecord, jsonOutput bool) error {
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	}

	if len(records) == 0 {
		fmt.Println("No records found.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-12s  %-10s  %-44s  %-10s  %-5s  %s\n",
		"ID", "Kind", "Text", "Status", "Conf", "Sources")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 96))

	for _, r := range records {
		text := r.BestText
		if len(text) > 44 {
			text = text[:41] + "..."
		}
		fmt.Fprintf(os.Stdout, "%-12s  %-10s  %-44s  %-10s  %.2f  %d\n",
			r.ID, r.Kind, text, r.Status, r.Confidence, len(r.Provenance))
	}

	fmt.Fprintf(os.Stdout, "\n%d records\n", len(records))
	return nil
}

func recordOptsFromFlags(cmd *cobra.Command, args []string) store.QueryOptions {
	queryText, _ := cmd.Flags().GetString("query")
	if queryText == "" && len(args) > 0 {
		queryText = strings.Join(args, " ")
	}

	kind, _ := cmd.Flags().GetString("kind")
	documentID, _ := cmd.Flags().GetString("document")
	status, _ := cmd.Flags().GetString("status")
	limit, _ := cmd.Flags().GetInt("limit")

	return store.QueryOptions{
		Query:      queryText,
		Kind:       types.Kind(kind),
		DocumentID: documentID,
		Status:     types.ReviewStatus(status),
		MaxResults: limit,
	}
}

func init() {
	recordsCmd.Flags().String("query", "", "full-text search query")
	recordsCmd.Flags().String("kind", "", "filter by kind: citation or definition")
	recordsCmd.Flags().String("document", "", "filter by document ID")
	recordsCmd.Flags().String("status", "", "filter by review status")
	recordsCmd.Flags().Int("limit", 0, "maximum results (0 = use default)")
	recordsCmd.Flags().Bool("json", false, "output results as JSON")
	recordsCmd.Flags().String("export", "", "write the full record set instead: yaml or json")
	recordsCmd.Flags().String("output-dir", "output", "base directory for results (contains index/)")

	rootCmd.AddCommand(recordsCmd)
}
