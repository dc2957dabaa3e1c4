// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package merge

import (
	"bytes"
	"context"
	"math"
	"reflect"
	"strings"
	"testing"

	"github.com/pdiddy/lexengine/pkg/types"
)

func closeTo(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func testDoc() types.Document {
	return types.Document{
		ID:         "doc1",
		SourceFile: "doc1.txt",
		Pages:      []types.Page{{Number: 1}, {Number: 2}},
	}
}

// constantEmbedder returns the same vector for every text, making every
// pair cosine-identical.
type constantEmbedder struct{}

func (constantEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	return []float32{0.6, 0.8}, nil
}

func TestMergeCorroboratedCitation(t *testing.T) {
	cands := []types.Candidate{
		{Kind: types.KindCitation, RawText: "Federal Decree-Law No. (7) of 2017", Page: 2, DocumentID: "doc1", Method: types.MethodRegex, Confidence: 0.95},
		{Kind: types.KindCitation, RawText: "Federal Decree Law 7/2017 on Excise Tax", Page: 2, DocumentID: "doc1", Method: types.MethodGeminiAI, Confidence: 0.7},
	}

	var buf bytes.Buffer
	result := New(types.MergeConfig{}, nil).Merge(context.Background(), testDoc(), cands, &buf)
	if len(result.Records) != 1 {
		t.Fatalf("got %d records, want 1: %+v", len(result.Records), result.Records)
	}

	r := result.Records[0]
	if r.CanonicalID != "federal_decree_law_7_2017" {
		t.Errorf("CanonicalID = %q, want federal_decree_law_7_2017", r.CanonicalID)
	}
	if !closeTo(r.Confidence, 0.985) {
		t.Errorf("Confidence = %v, want 0.985", r.Confidence)
	}
	if r.Confidence <= 0.95 {
		t.Errorf("Confidence = %v, corroboration must exceed the best single source", r.Confidence)
	}
	if len(r.Provenance) != 2 {
		t.Errorf("provenance length = %d, want 2", len(r.Provenance))
	}
	if r.Status != types.StatusPending {
		t.Errorf("Status = %q, want pending", r.Status)
	}
	if r.Page != 2 {
		t.Errorf("Page = %d, want 2", r.Page)
	}
	if r.ID == "" {
		t.Error("ID is empty")
	}
}

func TestMergeNearDuplicateDefinition(t *testing.T) {
	cands := []types.Candidate{
		{Kind: types.KindDefinition, RawText: "Authority", DefinitionText: "The Federal Tax Authority.", Page: 1, DocumentID: "doc1", Method: types.MethodRegex, Confidence: 0.95},
		{Kind: types.KindDefinition, RawText: "The Authority", DefinitionText: "the Federal Tax Authority", Page: 1, DocumentID: "doc1", Method: types.MethodChatAI, Confidence: 0.6},
	}

	var buf bytes.Buffer
	result := New(types.MergeConfig{}, nil).Merge(context.Background(), testDoc(), cands, &buf)
	if len(result.Records) != 1 {
		t.Fatalf("got %d records, want 1: %+v", len(result.Records), result.Records)
	}

	r := result.Records[0]
	if r.NormalizedTerm != "authority" {
		t.Errorf("NormalizedTerm = %q, want authority", r.NormalizedTerm)
	}
	if r.BestText != "Authority" {
		t.Errorf("BestText = %q, want the 0.95 candidate's term", r.BestText)
	}
	if r.DefinitionText != "The Federal Tax Authority." {
		t.Errorf("DefinitionText = %q", r.DefinitionText)
	}
	if len(r.Provenance) != 2 {
		t.Fatalf("provenance length = %d, want both excerpts retained", len(r.Provenance))
	}
	if r.Provenance[0].Excerpt == "" || r.Provenance[1].Excerpt == "" {
		t.Error("provenance excerpts must be retained for both candidates")
	}
}

func TestMergeFallbackKeyStillProducesRecord(t *testing.T) {
	cands := []types.Candidate{
		{Kind: types.KindCitation, RawText: "Cabinet Resolution regarding the fees of services", Page: 1, DocumentID: "doc1", Method: types.MethodRegex, Confidence: 0.5},
	}

	var buf bytes.Buffer
	result := New(types.MergeConfig{}, nil).Merge(context.Background(), testDoc(), cands, &buf)
	if len(result.Records) != 1 {
		t.Fatalf("got %d records, want 1", len(result.Records))
	}

	r := result.Records[0]
	if !r.Fallback {
		t.Error("Fallback = false, want true for unparsable citation")
	}
	if !strings.HasPrefix(r.CanonicalID, "raw_") {
		t.Errorf("CanonicalID = %q, want raw_ hash slug", r.CanonicalID)
	}
}

func TestMergeFuzzyFoldsFallbackWithEmbeddings(t *testing.T) {
	cands := []types.Candidate{
		{Kind: types.KindCitation, RawText: "Federal Decree-Law No. (7) of 2017 on Excise Tax", Page: 1, DocumentID: "doc1", Method: types.MethodRegex, Confidence: 0.9},
		// No instrument number: structural parsing fails, identity comes
		// from the fuzzy pass.
		{Kind: types.KindCitation, RawText: "Federal Decree-Law of 2017 on Excise Tax", Page: 2, DocumentID: "doc1", Method: types.MethodChatAI, Confidence: 0.6},
	}

	var buf bytes.Buffer
	m := New(types.MergeConfig{UseEmbeddings: true}, constantEmbedder{})
	result := m.Merge(context.Background(), testDoc(), cands, &buf)
	if len(result.Records) != 1 {
		t.Fatalf("got %d records, want fallback folded into structured: %+v", len(result.Records), result.Records)
	}
	r := result.Records[0]
	if r.CanonicalID != "federal_decree_law_7_2017" {
		t.Errorf("CanonicalID = %q, want the structured key to win", r.CanonicalID)
	}
	if len(r.Provenance) != 2 {
		t.Errorf("provenance length = %d, want 2", len(r.Provenance))
	}
}

func TestMergeFuzzyFoldsPluralDefinition(t *testing.T) {
	cands := []types.Candidate{
		{Kind: types.KindDefinition, RawText: "Tax Period", DefinitionText: "The period for which tax is calculated.", Page: 1, DocumentID: "doc1", Method: types.MethodRegex, Confidence: 0.95},
		{Kind: types.KindDefinition, RawText: "Tax Periods", DefinitionText: "Periods for which tax is calculated.", Page: 2, DocumentID: "doc1", Method: types.MethodNER, Confidence: 0.5},
	}

	var buf bytes.Buffer
	result := New(types.MergeConfig{}, nil).Merge(context.Background(), testDoc(), cands, &buf)
	if len(result.Records) != 1 {
		t.Fatalf("got %d records, want plural folded into singular: %+v", len(result.Records), result.Records)
	}
	if result.Records[0].NormalizedTerm != "tax period" {
		t.Errorf("NormalizedTerm = %q, want tax period", result.Records[0].NormalizedTerm)
	}
}

func TestMergeKeepsDistinctRecordsApart(t *testing.T) {
	cands := []types.Candidate{
		{Kind: types.KindCitation, RawText: "Federal Decree-Law No. (7) of 2017", Page: 1, DocumentID: "doc1", Method: types.MethodRegex, Confidence: 0.9},
		{Kind: types.KindCitation, RawText: "Federal Decree-Law No. (8) of 2017", Page: 1, DocumentID: "doc1", Method: types.MethodRegex, Confidence: 0.9},
		{Kind: types.KindDefinition, RawText: "Tax Period", DefinitionText: "A period.", Page: 1, DocumentID: "doc1", Method: types.MethodRegex, Confidence: 0.95},
		{Kind: types.KindDefinition, RawText: "Designated Zone", DefinitionText: "An area.", Page: 1, DocumentID: "doc1", Method: types.MethodRegex, Confidence: 0.95},
	}

	var buf bytes.Buffer
	result := New(types.MergeConfig{}, nil).Merge(context.Background(), testDoc(), cands, &buf)
	if len(result.Records) != 4 {
		t.Fatalf("got %d records, want 4 distinct: %+v", len(result.Records), result.Records)
	}
}

func TestMergeDropsMalformedWithWarning(t *testing.T) {
	cands := []types.Candidate{
		{Kind: types.KindCitation, RawText: "Federal Law No. (2) of 2015", Page: 1, DocumentID: "doc1", Method: types.MethodRegex, Confidence: 0.9},
		{Kind: types.KindCitation, RawText: "   ", Page: 1, DocumentID: "doc1", Method: types.MethodRegex, Confidence: 0.9},
		{Kind: types.KindCitation, RawText: "Federal Law No. (3) of 2015", Page: 1, DocumentID: "doc1", Method: types.MethodRegex, Confidence: 1.5},
	}

	var buf bytes.Buffer
	result := New(types.MergeConfig{}, nil).Merge(context.Background(), testDoc(), cands, &buf)
	if len(result.Records) != 1 {
		t.Fatalf("got %d records, want 1 after dropping malformed", len(result.Records))
	}
	if n := strings.Count(buf.String(), "dropping candidate"); n != 2 {
		t.Errorf("warnings = %d, want 2:\n%s", n, buf.String())
	}
}

func TestMergeIdempotent(t *testing.T) {
	cands := []types.Candidate{
		{Kind: types.KindCitation, RawText: "Federal Decree-Law No. (7) of 2017", Page: 2, DocumentID: "doc1", Method: types.MethodRegex, Confidence: 0.95},
		{Kind: types.KindCitation, RawText: "Federal Decree Law 7/2017 on Excise Tax", Page: 2, DocumentID: "doc1", Method: types.MethodGeminiAI, Confidence: 0.7},
		{Kind: types.KindDefinition, RawText: "Tax Period", DefinitionText: "A period.", Page: 1, DocumentID: "doc1", Method: types.MethodRegex, Confidence: 0.95},
	}

	m := New(types.MergeConfig{}, nil)
	var buf bytes.Buffer
	first := m.Merge(context.Background(), testDoc(), cands, &buf)
	second := m.Merge(context.Background(), testDoc(), cands, &buf)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("merge is not idempotent:\nfirst:  %+v\nsecond: %+v", first, second)
	}
}

func TestMergeNoInformationLoss(t *testing.T) {
	cands := []types.Candidate{
		{Kind: types.KindCitation, RawText: "Federal Decree-Law No. (7) of 2017", Page: 1, DocumentID: "doc1", Method: types.MethodRegex, Confidence: 0.95},
		{Kind: types.KindCitation, RawText: "Federal Decree-Law No. (7) of 2017", Page: 3, DocumentID: "doc1", Method: types.MethodNER, Confidence: 0.6},
		{Kind: types.KindDefinition, RawText: "Person", DefinitionText: "A natural or legal person.", Page: 1, DocumentID: "doc1", Method: types.MethodRegex, Confidence: 0.95},
	}

	var buf bytes.Buffer
	result := New(types.MergeConfig{}, nil).Merge(context.Background(), testDoc(), cands, &buf)

	total := 0
	for _, r := range result.Records {
		total += len(r.Provenance)
	}
	if total != len(cands) {
		t.Errorf("provenance total = %d, want %d (every valid candidate retained)", total, len(cands))
	}
}

func TestCombinedConfidence(t *testing.T) {
	tests := []struct {
		name  string
		cands []types.Candidate
		want  float64
	}{
		{
			name:  "single method",
			cands: []types.Candidate{{Method: types.MethodRegex, Confidence: 0.95}},
			want:  0.95,
		},
		{
			name: "two methods combine",
			cands: []types.Candidate{
				{Method: types.MethodRegex, Confidence: 0.95},
				{Method: types.MethodGeminiAI, Confidence: 0.7},
			},
			want: 0.985,
		},
		{
			name: "same method takes max, not product",
			cands: []types.Candidate{
				{Method: types.MethodRegex, Confidence: 0.9},
				{Method: types.MethodRegex, Confidence: 0.8},
			},
			want: 0.9,
		},
		{
			name: "certain evidence clamps at one",
			cands: []types.Candidate{
				{Method: types.MethodRegex, Confidence: 1.0},
				{Method: types.MethodNER, Confidence: 0.5},
			},
			want: 1.0,
		},
		{
			name:  "unrecognized method stands alone",
			cands: []types.Candidate{{Method: "ml_classifier", Confidence: 0.9}},
			want:  0.9,
		},
		{
			name: "unrecognized method corroborates",
			cands: []types.Candidate{
				{Method: types.MethodRegex, Confidence: 0.8},
				{Method: "ml_classifier", Confidence: 0.5},
			},
			want: 0.9,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := combinedConfidence(tt.cands)
			if !closeTo(got, tt.want) {
				t.Errorf("combinedConfidence = %v, want %v", got, tt.want)
			}

			best := 0.0
			for _, c := range tt.cands {
				if c.Confidence > best {
					best = c.Confidence
				}
			}
			if got < best-1e-9 {
				t.Errorf("combined %v below best single confidence %v", got, best)
			}
		})
	}
}

func TestMergeNewAdapterMethodKeepsConfidence(t *testing.T) {
	cands := []types.Candidate{
		{Kind: types.KindCitation, RawText: "Federal Decree-Law No. (7) of 2017", Page: 1, DocumentID: "doc1", Method: "ml_classifier", Confidence: 0.9},
	}

	var buf bytes.Buffer
	result := New(types.MergeConfig{}, nil).Merge(context.Background(), testDoc(), cands, &buf)
	if len(result.Records) != 1 {
		t.Fatalf("got %d records, want 1", len(result.Records))
	}
	if r := result.Records[0]; r.Confidence < 0.9-1e-9 {
		t.Errorf("Confidence = %v, want >= 0.9 for the sole contributing candidate", r.Confidence)
	}
}

func TestPreferTieBreak(t *testing.T) {
	moreEvidence := &group{cands: []types.Candidate{
		{Confidence: 0.5}, {Confidence: 0.5}, {Confidence: 0.5},
	}}
	higherConfidence := &group{cands: []types.Candidate{
		{Confidence: 0.9},
	}}

	evidence := New(types.MergeConfig{TieBreak: types.TieBreakEvidence}, nil)
	if !evidence.prefer(moreEvidence, higherConfidence) {
		t.Error("evidence policy should prefer the group with more provenance")
	}

	confidence := New(types.MergeConfig{TieBreak: types.TieBreakConfidence}, nil)
	if !confidence.prefer(higherConfidence, moreEvidence) {
		t.Error("confidence policy should prefer the group with the higher best confidence")
	}
}

func TestLexicalRatio(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"tax period", "tax period", 1.0},
		{"tax period", "tax periods", 1.0 - 1.0/11.0},
		{"", "", 1.0},
		{"abc", "xyz", 0.0},
	}
	for _, tt := range tests {
		if got := lexicalRatio(tt.a, tt.b); !closeTo(got, tt.want) {
			t.Errorf("lexicalRatio(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 0}, []float32{1, 0}, 1.0},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0.0},
		{"length mismatch", []float32{1, 0}, []float32{1}, 0.0},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, 0.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cosine(tt.a, tt.b); !closeTo(got, tt.want) {
				t.Errorf("cosine = %v, want %v", got, tt.want)
			}
		})
	}
}
