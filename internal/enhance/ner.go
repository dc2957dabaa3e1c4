// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package enhance

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/pdiddy/lexengine/internal/httputil"
	"github.com/pdiddy/lexengine/pkg/types"
)

// NERAdapter enriches documents through an external entity-recognition
// service speaking a small JSON protocol: POST /entities with
// {"text": ...} returns {"entities": [{"text", "label", "score"}]}.
type NERAdapter struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewNERAdapter constructs the adapter against cfg.NERBaseURL. apiKey
// may be empty for unauthenticated deployments.
func NewNERAdapter(cfg types.EnhanceConfig, apiKey string) *NERAdapter {
	return &NERAdapter{
		baseURL: cfg.NERBaseURL,
		apiKey:  apiKey,
		client:  http.DefaultClient,
	}
}

func (n *NERAdapter) Name() string { return "ner" }

func (n *NERAdapter) Method() types.ExtractionMethod { return types.MethodNER }

type nerRequest struct {
	Text string `json:"text"`
}

type nerResponse struct {
	Entities []nerEntity `json:"entities"`
}

type nerEntity struct {
	Text  string  `json:"text"`
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// entityKinds maps service labels to candidate kinds. Unlisted labels
// are ignored.
var entityKinds = map[string]types.Kind{
	"LAW":          types.KindCitation,
	"LEGAL_REF":    types.KindCitation,
	"CITATION":     types.KindCitation,
	"DEFINED_TERM": types.KindDefinition,
	"TERM":         types.KindDefinition,
}

// Enrich sends each page to the service and converts recognized
// entities into candidates.
func (n *NERAdapter) Enrich(ctx context.Context, doc types.Document) ([]types.Candidate, error) {
	var out []types.Candidate
	for _, page := range doc.Pages {
		entities, err := n.recognize(ctx, page.Text)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", page.Number, err)
		}

		for _, ent := range entities {
			kind, ok := entityKinds[ent.Label]
			if !ok {
				continue
			}
			out = append(out, types.Candidate{
				Kind:       kind,
				RawText:    ent.Text,
				Page:       page.Number,
				DocumentID: doc.ID,
				Confidence: ent.Score,
			})
		}
	}
	return out, nil
}

// recognize posts one page of text to the service.
func (n *NERAdapter) recognize(ctx context.Context, text string) ([]nerEntity, error) {
	body, err := json.Marshal(nerRequest{Text: text})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.baseURL+"/entities", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if n.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+n.apiKey)
	}

	resp, err := httputil.DoWithRetry(ctx, n.client, req, 2)
	if err != nil {
		return nil, fmt.Errorf("calling NER service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("NER service returned %d: %s", resp.StatusCode, string(b))
	}

	var nResp nerResponse
	if err := json.NewDecoder(resp.Body).Decode(&nResp); err != nil {
		return nil, fmt.Errorf("decoding NER response: %w", err)
	}
	return nResp.Entities, nil
}
