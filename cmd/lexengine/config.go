// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/lexengine/internal/enhance"
	"github.com/pdiddy/lexengine/internal/merge"
	"github.com/pdiddy/lexengine/internal/secrets"
	"github.com/pdiddy/lexengine/pkg/types"
)

func init() {
	viper.SetDefault("extraction.docs_dir", "docs")
	viper.SetDefault("extraction.output_dir", "output")
	viper.SetDefault("enhance.model", "")
	viper.SetDefault("enhance.chunk_size", 3500)
	viper.SetDefault("enhance.chunk_overlap", 200)
	viper.SetDefault("merge.fuzzy_match_threshold", 0.85)
	viper.SetDefault("merge.use_embeddings", true)
	viper.SetDefault("merge.tie_break", "evidence")
	viper.SetDefault("review.high_confidence_threshold", 0.7)
	viper.SetDefault("store.max_results", 20)
}

// pipelineConfig assembles the stage configuration from the config file
// and environment, with command-line flags taking precedence.
func pipelineConfig(cmd *cobra.Command) types.PipelineConfig {
	cfg := types.PipelineConfig{
		Extraction: types.ExtractionConfig{
			DocsDir:        viper.GetString("extraction.docs_dir"),
			OutputDir:      viper.GetString("extraction.output_dir"),
			LookaheadLines: viper.GetInt("extraction.lookahead_lines"),
		},
		Enhance: types.EnhanceConfig{
			AIConfig: types.AIConfig{
				Model:      viper.GetString("enhance.model"),
				MaxRetries: viper.GetInt("enhance.max_retries"),
			},
			Timeout:        viper.GetDuration("enhance.timeout"),
			ChunkSize:      viper.GetInt("enhance.chunk_size"),
			ChunkOverlap:   viper.GetInt("enhance.chunk_overlap"),
			ChatBaseURL:    viper.GetString("enhance.chat_base_url"),
			NERBaseURL:     viper.GetString("enhance.ner_base_url"),
			EmbeddingModel: viper.GetString("enhance.embedding_model"),
		},
		Merge: types.MergeConfig{
			FuzzyMatchThreshold: viper.GetFloat64("merge.fuzzy_match_threshold"),
			UseEmbeddings:       viper.GetBool("merge.use_embeddings"),
			TieBreak:            types.TieBreakPolicy(viper.GetString("merge.tie_break")),
		},
		Review: types.ReviewConfig{
			HighConfidenceThreshold: viper.GetFloat64("review.high_confidence_threshold"),
			QueueDir:                viper.GetString("review.queue_dir"),
		},
		Store: types.StoreConfig{
			MaxResults: viper.GetInt("store.max_results"),
		},
		Workers:         viper.GetInt("workers"),
		DocumentTimeout: viper.GetDuration("document_timeout"),
	}

	if f := cmd.Flags().Lookup("docs-dir"); f != nil && f.Changed {
		cfg.Extraction.DocsDir, _ = cmd.Flags().GetString("docs-dir")
	}
	if f := cmd.Flags().Lookup("output-dir"); f != nil && f.Changed {
		cfg.Extraction.OutputDir, _ = cmd.Flags().GetString("output-dir")
	}
	if f := cmd.Flags().Lookup("workers"); f != nil && f.Changed {
		cfg.Workers, _ = cmd.Flags().GetInt("workers")
	}
	if f := cmd.Flags().Lookup("threshold"); f != nil && f.Changed {
		cfg.Review.HighConfidenceThreshold, _ = cmd.Flags().GetFloat64("threshold")
	}

	cfg.Store.OutputDir = cfg.Extraction.OutputDir
	if cfg.Review.QueueDir == "" {
		cfg.Review.QueueDir = filepath.Join(cfg.Extraction.OutputDir, "review")
	}
	return cfg
}

// buildAdapters constructs every enhancement adapter whose credentials
// are configured. No keys means deterministic-only operation.
func buildAdapters(ctx context.Context, cfg types.EnhanceConfig) ([]enhance.Adapter, func(), error) {
	var adapters []enhance.Adapter
	var closers []func()

	if key := secrets.Get(loadedSecrets, secrets.GeminiAPIKey); key != "" {
		gemini, err := enhance.NewGeminiAdapter(ctx, cfg, key)
		if err != nil {
			return nil, nil, fmt.Errorf("creating gemini adapter: %w", err)
		}
		adapters = append(adapters, gemini)
		closers = append(closers, func() { gemini.Close() })
	}

	if key := secrets.Get(loadedSecrets, secrets.OpenAIAPIKey); key != "" {
		adapters = append(adapters, enhance.NewChatAdapter(cfg, key, cfg.Model))
	}

	if cfg.NERBaseURL != "" {
		adapters = append(adapters, enhance.NewNERAdapter(cfg, secrets.Get(loadedSecrets, secrets.NERAPIKey)))
	}

	cleanup := func() {
		for _, c := range closers {
			c()
		}
	}

	if len(adapters) > 0 {
		names := make([]string, len(adapters))
		for i, a := range adapters {
			names[i] = a.Name()
		}
		fmt.Fprintf(os.Stderr, "enhancement adapters: %v\n", names)
	}
	return adapters, cleanup, nil
}

// buildEmbedder returns the semantic-similarity embedder, or nil when
// embeddings are disabled or no OpenAI key is configured.
func buildEmbedder(mergeCfg types.MergeConfig, enhanceCfg types.EnhanceConfig) merge.Embedder {
	if !mergeCfg.UseEmbeddings {
		return nil
	}
	key := secrets.Get(loadedSecrets, secrets.OpenAIAPIKey)
	if key == "" {
		return nil
	}
	return enhance.NewOpenAIEmbedder(key, enhanceCfg.ChatBaseURL, enhanceCfg.EmbeddingModel)
}
