// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package enhance

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/pdiddy/lexengine/pkg/types"
)

const defaultGeminiModel = "gemini-2.0-flash"

// GeminiAdapter enriches documents through the Gemini API.
type GeminiAdapter struct {
	client       *genai.Client
	model        string
	chunkSize    int
	chunkOverlap int
}

// NewGeminiAdapter constructs the adapter. The model comes from
// cfg.Model; the key is passed separately so callers can source it from
// the secrets directory.
func NewGeminiAdapter(ctx context.Context, cfg types.EnhanceConfig, apiKey string) (*GeminiAdapter, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating Gemini client: %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = defaultGeminiModel
	}
	return &GeminiAdapter{
		client:       client,
		model:        model,
		chunkSize:    cfg.ChunkSize,
		chunkOverlap: cfg.ChunkOverlap,
	}, nil
}

func (g *GeminiAdapter) Name() string { return "gemini" }

func (g *GeminiAdapter) Method() types.ExtractionMethod { return types.MethodGeminiAI }

// Close releases the underlying API client.
func (g *GeminiAdapter) Close() error { return g.client.Close() }

// Enrich sends each page chunk through the model and collects the
// suggested candidates.
func (g *GeminiAdapter) Enrich(ctx context.Context, doc types.Document) ([]types.Candidate, error) {
	model := g.client.GenerativeModel(g.model)

	var out []types.Candidate
	for _, page := range doc.Pages {
		for _, part := range chunkText(page.Text, g.chunkSize, g.chunkOverlap) {
			prompt, err := renderPrompt(part)
			if err != nil {
				return nil, fmt.Errorf("rendering prompt: %w", err)
			}

			resp, err := model.GenerateContent(ctx, genai.Text(prompt))
			if err != nil {
				return nil, fmt.Errorf("calling Gemini API: %w", err)
			}

			text, err := firstText(resp)
			if err != nil {
				return nil, err
			}

			items, err := parseSuggestions(text)
			if err != nil {
				return nil, err
			}
			out = append(out, suggestionsToCandidates(items, doc.ID, page.Number)...)
		}
	}
	return out, nil
}

// firstText returns the first text part of a Gemini response.
func firstText(resp *genai.GenerateContentResponse) (string, error) {
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if txt, ok := part.(genai.Text); ok {
				return string(txt), nil
			}
		}
	}
	return "", fmt.Errorf("Gemini API returned no text content")
}
