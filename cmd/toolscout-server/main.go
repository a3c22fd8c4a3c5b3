// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command toolscout-server starts the toolscout hybrid-search HTTP API.
//
// Usage:
//
//	go run ./cmd/toolscout-server
//	go run ./cmd/toolscout-server -port 8080
//
// Example request:
//
//	curl -X POST http://localhost:8080/v1/search \
//	  -H "Content-Type: application/json" \
//	  -d '{"query": "free cli tools"}'
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/aleutian-labs/toolscout/internal/cache"
	"github.com/aleutian-labs/toolscout/internal/config"
	"github.com/aleutian-labs/toolscout/internal/executor"
	"github.com/aleutian-labs/toolscout/internal/intent"
	"github.com/aleutian-labs/toolscout/internal/pipeline"
	"github.com/aleutian-labs/toolscout/internal/plan"
	"github.com/aleutian-labs/toolscout/internal/prompt"
	"github.com/aleutian-labs/toolscout/internal/providers"
	"github.com/aleutian-labs/toolscout/internal/schema"
	"github.com/aleutian-labs/toolscout/internal/structuredstore"
	"github.com/aleutian-labs/toolscout/internal/telemetry"
	"github.com/aleutian-labs/toolscout/internal/vectorstore"
)

// livePipeline bundles a built pipeline with the schema version it was built
// from, so a schema hot-reload swaps both atomically — the cache key derived
// from schemaVersion must never point at candidates produced by a stale
// schema's pipeline, or vice versa.
type livePipeline struct {
	pl            *pipeline.Pipeline
	schemaVersion string
}

// pipelineInfra holds the long-lived dependencies a schema reload reuses
// rather than reconnecting: the Mongo/Weaviate stores, the embedder, and the
// chat-client factory all outlive any single schema.
type pipelineInfra struct {
	cfg         *config.Config
	factory     *providers.Factory
	vecStore    vectorstore.VectorStore
	structStore structuredstore.StructuredStore
	embedder    providers.Embedder
	influxSink  *telemetry.InfluxSink
}

// buildPipeline constructs the full schema-dependent chain (prompt builder,
// intent extractor, planner, executor, pipeline) for s. Called once at
// startup and again, from schema.WatchFile's callback, on every hot-reload.
func buildPipeline(s *schema.DomainSchema, infra pipelineInfra) (*pipeline.Pipeline, error) {
	builder, err := prompt.NewBuilder(s)
	if err != nil {
		return nil, fmt.Errorf("prompt builder init failed: %w", err)
	}

	extractorChat, err := infra.factory.CreateChatClient(infra.cfg.Roles.Extractor)
	if err != nil {
		return nil, fmt.Errorf("extractor chat client init failed: %w", err)
	}
	plannerChat, err := infra.factory.CreateChatClient(infra.cfg.Roles.Planner)
	if err != nil {
		return nil, fmt.Errorf("planner chat client init failed: %w", err)
	}

	extractor, err := intent.NewLLMExtractor(extractorChat, builder, s, intent.DefaultConfig(), nil)
	if err != nil {
		return nil, fmt.Errorf("intent extractor init failed: %w", err)
	}

	planner := plan.NewPlanner(plannerChat, builder, s, infra.cfg.Roles.Planner.Model, 10*time.Second, nil)
	exec := executor.New(infra.vecStore, infra.structStore, infra.embedder)
	pl := pipeline.New(extractor, planner, exec, nil)
	if infra.influxSink != nil {
		pl = pl.WithOutcomeRecorder(infra.influxSink)
	}
	return pl, nil
}

func main() {
	debug := flag.Bool("debug", false, "Enable debug mode")
	flag.Parse()

	if *debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	shutdownTracing, err := telemetry.Setup("toolscout-server")
	if err != nil {
		slog.Error("telemetry setup failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("configuration invalid", slog.String("error", err.Error()))
		os.Exit(1)
	}

	s, err := loadSchema(cfg)
	if err != nil {
		slog.Error("schema load failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx := context.Background()
	mongoDB, closeMongo, err := connectMongo(ctx)
	if err != nil {
		slog.Error("mongo connect failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	var influxSink *telemetry.InfluxSink
	if cfg.EnableInflux {
		influxSink = telemetry.NewInfluxSink(cfg.InfluxURL, cfg.InfluxToken, cfg.InfluxOrg, cfg.InfluxBucket, nil)
	}

	infra := pipelineInfra{
		cfg:         cfg,
		factory:     providers.NewFactory(),
		structStore: structuredstore.NewMongoStore(mongoDB),
		vecStore: vectorstore.NewWeaviateStore(
			envOr("WEAVIATE_HOST", "localhost:8080"),
			envOr("WEAVIATE_SCHEME", "http"),
		),
		embedder:   providers.NewOllamaEmbedder(providers.ResolveOllamaURL(), envOr("EMBEDDING_MODEL", "nomic-embed-text-v2-moe")),
		influxSink: influxSink,
	}

	pl, err := buildPipeline(s, infra)
	if err != nil {
		slog.Error("pipeline init failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	var live atomic.Pointer[livePipeline]
	live.Store(&livePipeline{pl: pl, schemaVersion: s.Version})

	var stopWatch func() error
	if cfg.SchemaPath != "" {
		stopWatch, err = schema.WatchFile(cfg.SchemaPath, slog.Default(), func(reloaded *schema.DomainSchema) {
			newPl, err := buildPipeline(reloaded, infra)
			if err != nil {
				slog.Error("schema reload: rebuilding pipeline failed, keeping previous pipeline live", slog.String("error", err.Error()))
				return
			}
			live.Store(&livePipeline{pl: newPl, schemaVersion: reloaded.Version})
			slog.Info("pipeline rebuilt from reloaded schema", slog.String("schema_version", reloaded.Version))
		})
		if err != nil {
			slog.Warn("schema hot-reload watcher unavailable, continuing with static schema", slog.String("error", err.Error()))
		}
	}

	var cacheStore *cache.Store
	var closeCache func()
	if cfg.EnableCache {
		cacheStore, closeCache, err = openCache(cfg)
		if err != nil {
			slog.Warn("cache unavailable, continuing without it", slog.String("error", err.Error()))
		}
	}
	_ = cacheStore // wired into search handler below via closure

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("toolscout-server"))
	if *debug {
		router.Use(gin.Logger())
	}
	router.Use(corsMiddleware(cfg.CORSOrigins))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/v1")
	registerSearchRoute(v1, &live, cacheStore)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}
	go func() {
		slog.Info("starting toolscout-server", slog.String("address", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	<-quit
	slog.Info("shutting down toolscout-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("graceful shutdown failed", slog.String("error", err.Error()))
	}
	if stopWatch != nil {
		if err := stopWatch(); err != nil {
			slog.Warn("schema watcher close failed", slog.String("error", err.Error()))
		}
	}
	if closeMongo != nil {
		closeMongo()
	}
	if closeCache != nil {
		closeCache()
	}
	if influxSink != nil {
		influxSink.Close()
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		slog.Warn("tracer shutdown failed", slog.String("error", err.Error()))
	}
}

func loadSchema(cfg *config.Config) (*schema.DomainSchema, error) {
	if cfg.SchemaPath == "" {
		return schema.LoadDefault()
	}
	raw, err := os.ReadFile(cfg.SchemaPath)
	if err != nil {
		return nil, fmt.Errorf("reading schema override %q: %w", cfg.SchemaPath, err)
	}
	return schema.LoadFromYAML(raw)
}

func connectMongo(ctx context.Context) (*mongo.Database, func(), error) {
	uri := envOr("MONGO_URI", "mongodb://localhost:27017")
	dbName := envOr("MONGO_DATABASE", "toolscout")

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to mongo at %q: %w", uri, err)
	}
	closeFn := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Disconnect(shutdownCtx); err != nil {
			slog.Warn("mongo disconnect failed", slog.String("error", err.Error()))
		}
	}
	return client.Database(dbName), closeFn, nil
}

func openCache(cfg *config.Config) (*cache.Store, func(), error) {
	dir := envOr("TOOLSCOUT_CACHE_DIR", "")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, nil, fmt.Errorf("resolving home dir for default cache path: %w", err)
		}
		dir = home + "/.toolscout/cache"
	}
	db, err := badger.Open(badger.DefaultOptions(dir).WithLogger(nil))
	if err != nil {
		return nil, nil, fmt.Errorf("opening badger cache at %q: %w", dir, err)
	}
	store := cache.NewStore(db, cfg.CacheTTL, nil)
	return store, func() {
		if err := db.Close(); err != nil {
			slog.Warn("badger cache close failed", slog.String("error", err.Error()))
		}
	}, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
