// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package enhance

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/pdiddy/lexengine/pkg/types"
)

const defaultChatModel = "gpt-4o-mini"

// ChatAdapter enriches documents through an OpenAI-compatible chat
// completion API. Setting ChatBaseURL in the configuration points it at
// alternative providers exposing the same surface.
type ChatAdapter struct {
	client       *openai.Client
	model        string
	chunkSize    int
	chunkOverlap int
}

// NewChatAdapter constructs the adapter. model may be empty to use the
// default.
func NewChatAdapter(cfg types.EnhanceConfig, apiKey, model string) *ChatAdapter {
	clientCfg := openai.DefaultConfig(apiKey)
	if cfg.ChatBaseURL != "" {
		clientCfg.BaseURL = cfg.ChatBaseURL
	}
	if model == "" {
		model = defaultChatModel
	}
	return &ChatAdapter{
		client:       openai.NewClientWithConfig(clientCfg),
		model:        model,
		chunkSize:    cfg.ChunkSize,
		chunkOverlap: cfg.ChunkOverlap,
	}
}

func (c *ChatAdapter) Name() string { return "chat" }

func (c *ChatAdapter) Method() types.ExtractionMethod { return types.MethodChatAI }

// Enrich sends each page chunk as a chat completion and collects the
// suggested candidates.
func (c *ChatAdapter) Enrich(ctx context.Context, doc types.Document) ([]types.Candidate, error) {
	var out []types.Candidate
	for _, page := range doc.Pages {
		for _, part := range chunkText(page.Text, c.chunkSize, c.chunkOverlap) {
			prompt, err := renderPrompt(part)
			if err != nil {
				return nil, fmt.Errorf("rendering prompt: %w", err)
			}

			resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
				Model: c.model,
				Messages: []openai.ChatCompletionMessage{
					{Role: openai.ChatMessageRoleUser, Content: prompt},
				},
			})
			if err != nil {
				return nil, fmt.Errorf("calling chat API: %w", err)
			}
			if len(resp.Choices) == 0 {
				return nil, fmt.Errorf("chat API returned no choices")
			}

			items, err := parseSuggestions(resp.Choices[0].Message.Content)
			if err != nil {
				return nil, err
			}
			out = append(out, suggestionsToCandidates(items, doc.ID, page.Number)...)
		}
	}
	return out, nil
}
