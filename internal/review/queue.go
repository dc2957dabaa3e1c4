// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package review

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/pdiddy/lexengine/pkg/types"
)

// batchHeader is the review CSV column contract. reviewed_by, decision,
// corrected_text, and notes are filled in by the reviewer.
var batchHeader = []string{
	"record_id", "kind", "text", "definition", "page",
	"confidence", "methods", "reason",
	"reviewed_by", "decision", "corrected_text", "notes",
}

const (
	decisionAccept  = "accept"
	decisionReject  = "reject"
	decisionCorrect = "correct"
)

// Queue exports flagged records as review batches and applies the
// reviewed batches back onto the record set.
type Queue struct {
	cfg    types.ReviewConfig
	router *Router
}

func NewQueue(cfg types.ReviewConfig) *Queue {
	return &Queue{cfg: cfg, router: NewRouter(cfg)}
}

// ExportBatch writes the flagged records to a uuid-named CSV batch in
// the queue directory and returns its path. An empty flag set writes
// nothing and returns "".
func (q *Queue) ExportBatch(flagged []*types.MergedRecord, w io.Writer) (string, error) {
	if len(flagged) == 0 {
		fmt.Fprintln(w, "review queue empty, nothing to export")
		return "", nil
	}
	if err := os.MkdirAll(q.cfg.QueueDir, 0o755); err != nil {
		return "", fmt.Errorf("creating queue directory: %w", err)
	}

	path := filepath.Join(q.cfg.QueueDir, fmt.Sprintf("review_batch_%s.csv", uuid.NewString()))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating review batch: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if err := cw.Write(batchHeader); err != nil {
		return "", fmt.Errorf("writing batch header: %w", err)
	}
	for _, rec := range flagged {
		methods := make([]string, 0, 2)
		for _, m := range rec.Methods() {
			methods = append(methods, string(m))
		}
		row := []string{
			rec.ID,
			string(rec.Kind),
			rec.BestText,
			rec.DefinitionText,
			strconv.Itoa(rec.Page),
			strconv.FormatFloat(rec.Confidence, 'f', 4, 64),
			strings.Join(methods, ";"),
			q.router.Reason(rec),
			"", "", "", "",
		}
		if err := cw.Write(row); err != nil {
			return "", fmt.Errorf("writing batch row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return "", fmt.Errorf("flushing review batch: %w", err)
	}

	fmt.Fprintf(w, "exported %d records to %s\n", len(flagged), path)
	return path, nil
}

// ImportStats summarizes one reviewed-batch import.
type ImportStats struct {
	Reviewed  int
	Accepted  int
	Corrected int
	Rejected  int

	// Unknown lists record IDs that matched nothing. Reported to the
	// caller; the remaining rows still apply.
	Unknown []string
}

// ImportBatch reads a reviewed CSV batch and applies each decided row to
// the matching record. Rows without a reviewer are still pending and are
// skipped. Importing the same batch twice yields the same record states.
func (q *Queue) ImportBatch(path string, records []types.MergedRecord, w io.Writer) (ImportStats, error) {
	var stats ImportStats

	f, err := os.Open(path)
	if err != nil {
		return stats, fmt.Errorf("opening reviewed batch: %w", err)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	header, err := cr.Read()
	if err != nil {
		return stats, fmt.Errorf("reading batch header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[name] = i
	}
	for _, required := range []string{"record_id", "reviewed_by", "decision"} {
		if _, ok := col[required]; !ok {
			return stats, fmt.Errorf("reviewed batch missing %q column", required)
		}
	}

	byID := make(map[string]*types.MergedRecord, len(records))
	for i := range records {
		byID[records[i].ID] = &records[i]
	}

	field := func(row []string, name string) string {
		if i, ok := col[name]; ok && i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}

	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return stats, fmt.Errorf("reading batch row: %w", err)
		}

		reviewedBy := field(row, "reviewed_by")
		if reviewedBy == "" {
			continue
		}

		id := field(row, "record_id")
		rec, ok := byID[id]
		if !ok {
			stats.Unknown = append(stats.Unknown, id)
			fmt.Fprintf(w, "review import: %v: %s\n", ErrUnknownRecord, id)
			continue
		}

		if err := applyDecision(rec, field(row, "decision"), field(row, "corrected_text"), reviewedBy); err != nil {
			fmt.Fprintf(w, "review import: record %s: %v\n", id, err)
			continue
		}

		stats.Reviewed++
		switch rec.Status {
		case types.StatusAccepted:
			stats.Accepted++
		case types.StatusCorrected:
			stats.Corrected++
		case types.StatusRejected:
			stats.Rejected++
		}
	}

	fmt.Fprintf(w, "imported %d reviewed records (%d accepted, %d corrected, %d rejected, %d unknown)\n",
		stats.Reviewed, stats.Accepted, stats.Corrected, stats.Rejected, len(stats.Unknown))
	return stats, nil
}

// applyDecision moves one record forward per the reviewer's decision. A
// non-empty corrected_text implies correction regardless of the decision
// column. Re-applying the same decision is a no-op.
func applyDecision(rec *types.MergedRecord, decision, correctedText, reviewedBy string) error {
	next := types.ReviewStatus("")
	switch {
	case correctedText != "" || decision == decisionCorrect:
		next = types.StatusCorrected
	case decision == decisionAccept:
		next = types.StatusAccepted
	case decision == decisionReject:
		next = types.StatusRejected
	default:
		return fmt.Errorf("unrecognized decision %q", decision)
	}

	if !rec.Status.CanTransition(next) {
		return fmt.Errorf("cannot transition %s to %s", rec.Status, next)
	}

	rec.Status = next
	rec.ReviewedBy = reviewedBy
	if next == types.StatusCorrected && correctedText != "" {
		rec.CorrectedText = correctedText
		rec.BestText = correctedText
	}
	return nil
}

// Summary aggregates the flagged queue by kind and reason.
type Summary struct {
	Total         int
	ByKind        map[types.Kind]int
	ByReason      map[string]int
	AvgConfidence float64
}

// Summarize builds queue statistics over the flagged records.
func (q *Queue) Summarize(flagged []*types.MergedRecord) Summary {
	s := Summary{
		ByKind:   make(map[types.Kind]int),
		ByReason: make(map[string]int),
	}
	total := 0.0
	for _, rec := range flagged {
		s.Total++
		s.ByKind[rec.Kind]++
		s.ByReason[q.router.Reason(rec)]++
		total += rec.Confidence
	}
	if s.Total > 0 {
		s.AvgConfidence = total / float64(s.Total)
	}
	return s
}

// Write prints the summary in a stable order.
func (s Summary) Write(w io.Writer) {
	fmt.Fprintf(w, "review queue: %d records, average confidence %.2f\n", s.Total, s.AvgConfidence)
	for _, kind := range []types.Kind{types.KindCitation, types.KindDefinition} {
		if n := s.ByKind[kind]; n > 0 {
			fmt.Fprintf(w, "  %s: %d\n", kind, n)
		}
	}
	reasons := make([]string, 0, len(s.ByReason))
	for reason := range s.ByReason {
		reasons = append(reasons, reason)
	}
	sort.Strings(reasons)
	for _, reason := range reasons {
		fmt.Fprintf(w, "  %s: %d\n", reason, s.ByReason[reason])
	}
}
