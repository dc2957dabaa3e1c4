// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package review

import (
	"bytes"
	"encoding/csv"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pdiddy/lexengine/pkg/types"
)

func closeTo(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func sampleRecords() []types.MergedRecord {
	return []types.MergedRecord{
		{
			ID: "rec-citation-high", Kind: types.KindCitation,
			CanonicalID: "federal_decree_law_7_2017",
			BestText:    "Federal Decree-Law No. (7) of 2017",
			Confidence:  0.95, Page: 1, DocumentID: "doc1",
			Status:     types.StatusPending,
			Provenance: []types.ProvenanceEntry{{Method: types.MethodRegex, Confidence: 0.95}},
		},
		{
			ID: "rec-citation-low", Kind: types.KindCitation,
			CanonicalID: "raw_ab12cd34ef56", Fallback: true,
			BestText:   "Cabinet Resolution regarding fees",
			Confidence: 0.5, Page: 2, DocumentID: "doc1",
			Status:     types.StatusPending,
			Provenance: []types.ProvenanceEntry{{Method: types.MethodRegex, Confidence: 0.5}},
		},
		{
			ID: "rec-definition-low", Kind: types.KindDefinition,
			NormalizedTerm: "designated zone",
			BestText:       "Designated Zone",
			DefinitionText: "An area specified by the Cabinet.",
			Confidence:     0.6, Page: 3, DocumentID: "doc1",
			Status:     types.StatusPending,
			Provenance: []types.ProvenanceEntry{{Method: types.MethodLayout, Confidence: 0.6}},
		},
	}
}

func TestRoutePartitionsByThreshold(t *testing.T) {
	router := NewRouter(types.ReviewConfig{HighConfidenceThreshold: 0.7})
	records := sampleRecords()

	flagged := router.RouteAll(records)

	if records[0].Status != types.StatusAccepted {
		t.Errorf("high-confidence record status = %q, want accepted", records[0].Status)
	}
	if records[1].Status != types.StatusFlagged {
		t.Errorf("low-confidence record status = %q, want flagged", records[1].Status)
	}
	if len(flagged) != 2 {
		t.Fatalf("flagged count = %d, want 2", len(flagged))
	}
	if flagged[0].ID != "rec-citation-low" || flagged[1].ID != "rec-definition-low" {
		t.Errorf("flagged IDs = %s, %s", flagged[0].ID, flagged[1].ID)
	}
}

func TestRouteExactThresholdAccepts(t *testing.T) {
	router := NewRouter(types.ReviewConfig{HighConfidenceThreshold: 0.7})
	rec := types.MergedRecord{Confidence: 0.7, Status: types.StatusPending}
	if got := router.Route(&rec); got != types.StatusAccepted {
		t.Errorf("Route at exact threshold = %q, want accepted", got)
	}
}

func TestRouteNeverRevisitsDecidedRecords(t *testing.T) {
	router := NewRouter(types.ReviewConfig{HighConfidenceThreshold: 0.7})

	rec := types.MergedRecord{Confidence: 0.5, Status: types.StatusCorrected}
	if got := router.Route(&rec); got != types.StatusCorrected {
		t.Errorf("Route changed a corrected record to %q", got)
	}

	rec = types.MergedRecord{Confidence: 0.9, Status: types.StatusPending}
	router.Route(&rec)
	rec.Confidence = 0.1
	if got := router.Route(&rec); got != types.StatusAccepted {
		t.Errorf("re-routing moved an accepted record to %q", got)
	}
}

func TestRouteDefaultThreshold(t *testing.T) {
	router := NewRouter(types.ReviewConfig{})
	rec := types.MergedRecord{Confidence: 0.69, Status: types.StatusPending}
	if got := router.Route(&rec); got != types.StatusFlagged {
		t.Errorf("Route with default threshold = %q, want flagged", got)
	}
}

func TestExportBatchWritesCSV(t *testing.T) {
	dir := t.TempDir()
	queue := NewQueue(types.ReviewConfig{HighConfidenceThreshold: 0.7, QueueDir: dir})
	records := sampleRecords()
	flagged := NewRouter(types.ReviewConfig{HighConfidenceThreshold: 0.7}).RouteAll(records)

	var buf bytes.Buffer
	path, err := queue.ExportBatch(flagged, &buf)
	if err != nil {
		t.Fatalf("ExportBatch: %v", err)
	}
	if filepath.Dir(path) != dir {
		t.Errorf("batch written to %s, want %s", path, dir)
	}
	if !strings.HasPrefix(filepath.Base(path), "review_batch_") {
		t.Errorf("batch filename = %s", filepath.Base(path))
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("opening batch: %v", err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("reading batch: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("batch rows = %d, want header + 2", len(rows))
	}
	if rows[0][0] != "record_id" {
		t.Errorf("header = %v", rows[0])
	}
	if rows[1][0] != "rec-citation-low" {
		t.Errorf("first row ID = %q", rows[1][0])
	}
	if !strings.Contains(rows[1][7], "unparsable citation") {
		t.Errorf("fallback reason = %q", rows[1][7])
	}
	if !strings.Contains(rows[2][7], "low confidence") {
		t.Errorf("definition reason = %q", rows[2][7])
	}
}

func TestExportBatchEmptyQueue(t *testing.T) {
	queue := NewQueue(types.ReviewConfig{QueueDir: t.TempDir()})
	var buf bytes.Buffer
	path, err := queue.ExportBatch(nil, &buf)
	if err != nil {
		t.Fatalf("ExportBatch: %v", err)
	}
	if path != "" {
		t.Errorf("path = %q, want empty for empty queue", path)
	}
}

// reviewBatch fills reviewer columns in an exported batch and writes the
// result back, simulating the human side of the exchange.
func reviewBatch(t *testing.T, path string, decide func(recordID string, row []string)) string {
	t.Helper()

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("opening batch: %v", err)
	}
	rows, err := csv.NewReader(f).ReadAll()
	f.Close()
	if err != nil {
		t.Fatalf("reading batch: %v", err)
	}
	for _, row := range rows[1:] {
		decide(row[0], row)
	}

	reviewed := filepath.Join(t.TempDir(), "reviewed.csv")
	out, err := os.Create(reviewed)
	if err != nil {
		t.Fatalf("creating reviewed batch: %v", err)
	}
	defer out.Close()
	cw := csv.NewWriter(out)
	if err := cw.WriteAll(rows); err != nil {
		t.Fatalf("writing reviewed batch: %v", err)
	}
	return reviewed
}

func TestImportBatchAppliesDecisions(t *testing.T) {
	cfg := types.ReviewConfig{HighConfidenceThreshold: 0.7, QueueDir: t.TempDir()}
	queue := NewQueue(cfg)
	records := sampleRecords()
	flagged := NewRouter(cfg).RouteAll(records)

	var buf bytes.Buffer
	path, err := queue.ExportBatch(flagged, &buf)
	if err != nil {
		t.Fatalf("ExportBatch: %v", err)
	}

	reviewed := reviewBatch(t, path, func(id string, row []string) {
		switch id {
		case "rec-citation-low":
			row[8] = "analyst"
			row[9] = "reject"
		case "rec-definition-low":
			row[8] = "analyst"
			row[10] = "Designated Zone (Free Zone)"
		}
	})

	stats, err := queue.ImportBatch(reviewed, records, &buf)
	if err != nil {
		t.Fatalf("ImportBatch: %v", err)
	}
	if stats.Reviewed != 2 || stats.Rejected != 1 || stats.Corrected != 1 {
		t.Errorf("stats = %+v", stats)
	}

	if records[1].Status != types.StatusRejected {
		t.Errorf("rejected record status = %q", records[1].Status)
	}
	if records[2].Status != types.StatusCorrected {
		t.Errorf("corrected record status = %q", records[2].Status)
	}
	if records[2].BestText != "Designated Zone (Free Zone)" {
		t.Errorf("corrected BestText = %q", records[2].BestText)
	}
	if records[2].CorrectedText != "Designated Zone (Free Zone)" {
		t.Errorf("CorrectedText = %q", records[2].CorrectedText)
	}
	if records[2].ReviewedBy != "analyst" {
		t.Errorf("ReviewedBy = %q", records[2].ReviewedBy)
	}
	if len(records[2].Provenance) != 1 {
		t.Errorf("correction dropped provenance: %+v", records[2].Provenance)
	}
	if records[0].Status != types.StatusAccepted {
		t.Errorf("unflagged record status changed to %q", records[0].Status)
	}
}

func TestImportBatchIdempotent(t *testing.T) {
	cfg := types.ReviewConfig{HighConfidenceThreshold: 0.7, QueueDir: t.TempDir()}
	queue := NewQueue(cfg)
	records := sampleRecords()
	flagged := NewRouter(cfg).RouteAll(records)

	var buf bytes.Buffer
	path, err := queue.ExportBatch(flagged, &buf)
	if err != nil {
		t.Fatalf("ExportBatch: %v", err)
	}
	reviewed := reviewBatch(t, path, func(id string, row []string) {
		row[8] = "analyst"
		row[9] = "accept"
	})

	if _, err := queue.ImportBatch(reviewed, records, &buf); err != nil {
		t.Fatalf("first import: %v", err)
	}
	first := append([]types.MergedRecord(nil), records...)

	stats, err := queue.ImportBatch(reviewed, records, &buf)
	if err != nil {
		t.Fatalf("second import: %v", err)
	}
	if stats.Reviewed != 2 || stats.Accepted != 2 {
		t.Errorf("second import stats = %+v", stats)
	}
	for i := range records {
		if records[i].Status != first[i].Status || records[i].BestText != first[i].BestText {
			t.Errorf("record %s changed on re-import", records[i].ID)
		}
	}
}

func TestImportBatchUnknownRecord(t *testing.T) {
	cfg := types.ReviewConfig{HighConfidenceThreshold: 0.7, QueueDir: t.TempDir()}
	queue := NewQueue(cfg)
	records := sampleRecords()
	flagged := NewRouter(cfg).RouteAll(records)

	var buf bytes.Buffer
	path, err := queue.ExportBatch(flagged, &buf)
	if err != nil {
		t.Fatalf("ExportBatch: %v", err)
	}
	reviewed := reviewBatch(t, path, func(id string, row []string) {
		row[8] = "analyst"
		row[9] = "accept"
		if id == "rec-citation-low" {
			row[0] = "rec-vanished"
		}
	})

	stats, err := queue.ImportBatch(reviewed, records, &buf)
	if err != nil {
		t.Fatalf("ImportBatch: %v", err)
	}
	if len(stats.Unknown) != 1 || stats.Unknown[0] != "rec-vanished" {
		t.Errorf("Unknown = %v", stats.Unknown)
	}
	if stats.Reviewed != 1 {
		t.Errorf("Reviewed = %d, want the remaining row applied", stats.Reviewed)
	}
	if records[2].Status != types.StatusAccepted {
		t.Errorf("remaining record status = %q", records[2].Status)
	}
	if !strings.Contains(buf.String(), "unknown record") {
		t.Errorf("missing unknown-record report:\n%s", buf.String())
	}
}

func TestImportBatchSkipsUnreviewedRows(t *testing.T) {
	cfg := types.ReviewConfig{HighConfidenceThreshold: 0.7, QueueDir: t.TempDir()}
	queue := NewQueue(cfg)
	records := sampleRecords()
	flagged := NewRouter(cfg).RouteAll(records)

	var buf bytes.Buffer
	path, err := queue.ExportBatch(flagged, &buf)
	if err != nil {
		t.Fatalf("ExportBatch: %v", err)
	}

	// Import the batch untouched: no reviewer, nothing applies.
	stats, err := queue.ImportBatch(path, records, &buf)
	if err != nil {
		t.Fatalf("ImportBatch: %v", err)
	}
	if stats.Reviewed != 0 {
		t.Errorf("Reviewed = %d, want 0", stats.Reviewed)
	}
	if records[1].Status != types.StatusFlagged {
		t.Errorf("record status = %q, want still flagged", records[1].Status)
	}
}

func TestApplyDecision(t *testing.T) {
	tests := []struct {
		name       string
		status     types.ReviewStatus
		decision   string
		corrected  string
		wantStatus types.ReviewStatus
		wantErr    bool
	}{
		{"accept flagged", types.StatusFlagged, "accept", "", types.StatusAccepted, false},
		{"reject flagged", types.StatusFlagged, "reject", "", types.StatusRejected, false},
		{"correct flagged", types.StatusFlagged, "", "Fixed Text", types.StatusCorrected, false},
		{"corrected text wins over accept", types.StatusFlagged, "accept", "Fixed Text", types.StatusCorrected, false},
		{"reject after accept refused", types.StatusAccepted, "reject", "", types.StatusAccepted, true},
		{"unrecognized decision", types.StatusFlagged, "maybe", "", types.StatusFlagged, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := types.MergedRecord{Status: tt.status}
			err := applyDecision(&rec, tt.decision, tt.corrected, "analyst")
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if rec.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", rec.Status, tt.wantStatus)
			}
		})
	}
}

func TestSummarize(t *testing.T) {
	cfg := types.ReviewConfig{HighConfidenceThreshold: 0.7}
	queue := NewQueue(cfg)
	records := sampleRecords()
	flagged := NewRouter(cfg).RouteAll(records)

	s := queue.Summarize(flagged)
	if s.Total != 2 {
		t.Fatalf("Total = %d, want 2", s.Total)
	}
	if s.ByKind[types.KindCitation] != 1 || s.ByKind[types.KindDefinition] != 1 {
		t.Errorf("ByKind = %v", s.ByKind)
	}
	if !closeTo(s.AvgConfidence, 0.55) {
		t.Errorf("AvgConfidence = %v, want 0.55", s.AvgConfidence)
	}

	var buf bytes.Buffer
	s.Write(&buf)
	out := buf.String()
	if !strings.Contains(out, "2 records") || !strings.Contains(out, "0.55") {
		t.Errorf("summary output:\n%s", out)
	}
}
