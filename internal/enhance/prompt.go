// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package enhance

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"github.com/pdiddy/lexengine/pkg/types"
)

// enrichmentPromptTmpl is the prompt sent to generative adapters for each
// chunk of page text. It requests a strict JSON array so parsing stays
// mechanical.
var enrichmentPromptTmpl = template.Must(template.New("enrichment").Parse(`You are a legal document analysis system. Analyze the following excerpt from a legal instrument and extract two kinds of facts:

1. Legal citations: references to laws, decrees, and resolutions (e.g. "Federal Decree-Law No. (7) of 2017 on Excise Tax"). Report the full citation text exactly as written.
2. Defined terms: terms the document assigns a meaning to. Report the term and its full definition text exactly as written.

Respond with a JSON array only. Each element is one of:
{"kind": "citation", "text": "<full citation>", "confidence": <0.0-1.0>}
{"kind": "definition", "term": "<term>", "definition": "<definition text>", "confidence": <0.0-1.0>}

Confidence reflects how certain you are that the text is a genuine citation or definition. Return [] when the excerpt contains neither. Do not include any text outside the JSON array.

Excerpt:
{{.Text}}
`))

// renderPrompt executes the enrichment template for one chunk.
func renderPrompt(text string) (string, error) {
	var buf bytes.Buffer
	if err := enrichmentPromptTmpl.Execute(&buf, struct{ Text string }{Text: text}); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// aiSuggestion is one element of the JSON array a generative adapter
// returns.
type aiSuggestion struct {
	Kind       string  `json:"kind"`
	Text       string  `json:"text"`
	Term       string  `json:"term"`
	Definition string  `json:"definition"`
	Confidence float64 `json:"confidence"`
}

// parseSuggestions decodes a model response into suggestions. Markdown
// code fences around the array are tolerated and stripped.
func parseSuggestions(raw string) ([]aiSuggestion, error) {
	raw = stripFences(raw)
	if raw == "" {
		return nil, nil
	}

	var items []aiSuggestion
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fmt.Errorf("parsing model response: %w", err)
	}
	return items, nil
}

// stripFences removes a surrounding Markdown code fence, with or without
// a language tag.
func stripFences(raw string) string {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "```") {
		return raw
	}
	raw = strings.TrimPrefix(raw, "```")
	if i := strings.IndexByte(raw, '\n'); i >= 0 {
		raw = raw[i+1:]
	}
	raw = strings.TrimSuffix(strings.TrimSpace(raw), "```")
	return strings.TrimSpace(raw)
}

// suggestionsToCandidates converts parsed suggestions into candidates
// attributed to one page. Unknown kinds are skipped; EnrichAll's
// sanitation applies the method tag and confidence cap afterwards.
func suggestionsToCandidates(items []aiSuggestion, docID string, page int) []types.Candidate {
	var out []types.Candidate
	for _, item := range items {
		switch item.Kind {
		case "citation":
			out = append(out, types.Candidate{
				Kind:       types.KindCitation,
				RawText:    item.Text,
				Page:       page,
				DocumentID: docID,
				Confidence: item.Confidence,
			})
		case "definition":
			out = append(out, types.Candidate{
				Kind:           types.KindDefinition,
				RawText:        item.Term,
				DefinitionText: item.Definition,
				Page:           page,
				DocumentID:     docID,
				Confidence:     item.Confidence,
			})
		}
	}
	return out
}
