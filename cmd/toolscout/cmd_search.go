// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/aleutian-labs/toolscout/internal/config"
	"github.com/aleutian-labs/toolscout/internal/executor"
	"github.com/aleutian-labs/toolscout/internal/intent"
	"github.com/aleutian-labs/toolscout/internal/pipeline"
	"github.com/aleutian-labs/toolscout/internal/plan"
	"github.com/aleutian-labs/toolscout/internal/prompt"
	"github.com/aleutian-labs/toolscout/internal/providers"
	"github.com/aleutian-labs/toolscout/internal/schema"
	"github.com/aleutian-labs/toolscout/internal/structuredstore"
	"github.com/aleutian-labs/toolscout/internal/vectorstore"
)

var (
	searchJSON    bool
	searchTimeout time.Duration
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	scoreStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("178"))
)

func newSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Run a hybrid search query through the pipeline",
		Args:  cobra.ExactArgs(1),
		RunE:  runSearchCmd,
	}
	cmd.Flags().BoolVar(&searchJSON, "json", false, "print raw JSON instead of a formatted table")
	cmd.Flags().DurationVar(&searchTimeout, "timeout", pipeline.DefaultDeadline, "deadline for the whole request")
	return cmd
}

func runSearchCmd(cmd *cobra.Command, args []string) error {
	query := args[0]

	pl, cleanup, err := buildPipeline(cmd.Context())
	if err != nil {
		return fmt.Errorf("building pipeline: %w", err)
	}
	defer cleanup()

	resp, err := pl.Search(cmd.Context(), query, pipeline.Options{Deadline: searchTimeout})
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	printResults(resp)
	return nil
}

func printResults(resp *pipeline.Response) {
	if resp.Stats.Plan != nil {
		fmt.Println(headerStyle.Render(fmt.Sprintf("strategy=%s confidence=%.2f fusion=%s",
			resp.Stats.Plan.Strategy, resp.Stats.Plan.Confidence, resp.Stats.Plan.Fusion)))
	}
	for i, c := range resp.Candidates {
		fmt.Printf("%2d. %-30s %s\n", i+1, c.ID, scoreStyle.Render(fmt.Sprintf("score=%.3f source=%s", c.Score, c.Source)))
	}
	for _, w := range resp.Errors {
		fmt.Println(warnStyle.Render("warning: " + w.Error()))
	}
}

// buildPipeline wires the same collaborators as cmd/toolscout-server, for
// ad hoc CLI use against the same deployed stores.
func buildPipeline(ctx context.Context) (*pipeline.Pipeline, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}

	s, err := schema.LoadDefault()
	if err != nil {
		return nil, nil, fmt.Errorf("loading schema: %w", err)
	}

	builder, err := prompt.NewBuilder(s)
	if err != nil {
		return nil, nil, fmt.Errorf("building prompts: %w", err)
	}

	factory := providers.NewFactory()
	extractorChat, err := factory.CreateChatClient(cfg.Roles.Extractor)
	if err != nil {
		return nil, nil, fmt.Errorf("building extractor chat client: %w", err)
	}
	plannerChat, err := factory.CreateChatClient(cfg.Roles.Planner)
	if err != nil {
		return nil, nil, fmt.Errorf("building planner chat client: %w", err)
	}

	ex, err := intent.NewLLMExtractor(extractorChat, builder, s, intent.DefaultConfig(), nil)
	if err != nil {
		return nil, nil, fmt.Errorf("building intent extractor: %w", err)
	}
	pl := plan.NewPlanner(plannerChat, builder, s, cfg.Roles.Planner.Model, 10*time.Second, nil)

	uri := envOr("MONGO_URI", "mongodb://localhost:27017")
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to mongo: %w", err)
	}
	structStore := structuredstore.NewMongoStore(client.Database(envOr("MONGO_DATABASE", "toolscout")))

	vecStore := vectorstore.NewWeaviateStore(envOr("WEAVIATE_HOST", "localhost:8080"), envOr("WEAVIATE_SCHEME", "http"))
	embedder := providers.NewOllamaEmbedder(providers.ResolveOllamaURL(), envOr("EMBEDDING_MODEL", "nomic-embed-text-v2-moe"))

	exec := executor.New(vecStore, structStore, embedder)
	cleanup := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = client.Disconnect(shutdownCtx)
	}
	return pipeline.New(ex, pl, exec, nil), cleanup, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
