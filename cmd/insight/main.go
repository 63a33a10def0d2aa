// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command insight starts the Atlas Insight API server.
//
// Atlas Insight routes free-text business questions to analysis endpoints and
// normalizes schema-free record batches into ranked, renderable results:
//   - Rule-based routing pipeline (validation, intent, vocabulary, context)
//   - Optional semantic verification backed by an embedding service
//   - Record processing with score-field resolution and quartile rendering
//
// Usage:
//
//	go run ./cmd/insight
//	go run ./cmd/insight -port 9090
//
// With semantic verification (requires a running embedding service):
//
//	EMBEDDING_SERVICE_URL=http://localhost:11434/api/embed go run ./cmd/insight
//
// With a tuning override file (live reloaded on change):
//
//	go run ./cmd/insight -tuning ./tuning.yaml
//
// Example requests:
//
//	# Health check
//	curl http://localhost:8080/v1/insight/health
//
//	# List analysis endpoints
//	curl http://localhost:8080/v1/insight/endpoints | jq
//
//	# Route a query
//	curl -X POST http://localhost:8080/v1/insight/route \
//	  -H "Content-Type: application/json" \
//	  -d '{"text": "compare nike vs adidas market share"}'
//
//	# Route and process in one round trip
//	curl -X POST http://localhost:8080/v1/insight/analyze \
//	  -H "Content-Type: application/json" \
//	  -d '{"query": {"text": "rank the top markets"}, "records": [{"id": "60614", "score": 42.0}]}'
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/AtlasInsightAI/AtlasInsight/services/insight"
	"github.com/AtlasInsightAI/AtlasInsight/services/insight/config"
	"github.com/AtlasInsightAI/AtlasInsight/services/insight/geo"
	"github.com/AtlasInsightAI/AtlasInsight/services/insight/process"
	"github.com/AtlasInsightAI/AtlasInsight/services/insight/registry"
	"github.com/AtlasInsightAI/AtlasInsight/services/insight/routing"
	badgerstore "github.com/AtlasInsightAI/AtlasInsight/services/insight/storage/badger"
)

func main() {
	port := flag.Int("port", 8080, "Port to listen on")
	debug := flag.Bool("debug", false, "Enable debug mode")
	tuningFile := flag.String("tuning", "", "Tuning override YAML file (live reloaded)")
	noSemantic := flag.Bool("no-semantic", false, "Disable the semantic verification layer")
	flag.Parse()

	if *debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// W3C TraceContext propagation so incoming traceparent headers flow
	// through all handlers.
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	reg, err := registry.Default()
	if err != nil {
		slog.Error("Failed to load endpoint registry", slog.String("error", err.Error()))
		os.Exit(1)
	}

	tuning := config.NewStore(nil, slog.Default())
	tuningPath := *tuningFile
	if tuningPath == "" {
		tuningPath = os.Getenv("ROUTING_TUNING_FILE")
	}
	if tuningPath != "" {
		if err := tuning.Watch(tuningPath); err != nil {
			slog.Warn("Tuning override unavailable, using embedded defaults",
				slog.String("path", tuningPath),
				slog.String("error", err.Error()),
			)
		}
	}

	// Exemplar cache BadgerDB for semantic centroid persistence. Graceful
	// degradation: if unavailable, warm-up recomputes embeddings every start.
	var cacheDB *badgerstore.DB
	var cacheStore routing.ExemplarCacheStore
	cacheDir := os.Getenv("EXEMPLAR_CACHE_DIR")
	if cacheDir == "" {
		home, err := os.UserHomeDir()
		if err == nil {
			cacheDir = filepath.Join(home, ".atlas", "cache", "insight")
		}
	}
	if cacheDir != "" && !*noSemantic {
		cfg := badgerstore.DefaultConfig()
		cfg.Path = cacheDir
		db, err := badgerstore.OpenDB(cfg)
		if err != nil {
			slog.Warn("Exemplar cache BadgerDB unavailable, centroid persistence disabled",
				slog.String("path", cacheDir),
				slog.String("error", err.Error()),
			)
		} else {
			cacheDB = db
			cacheStore = routing.NewBadgerExemplarCacheStore(db, 0, slog.Default())
			slog.Info("Exemplar cache BadgerDB opened", slog.String("path", cacheDir))
		}
	}

	// Semantic verifier warms in the background; routing works rule-based
	// until the centroids are ready.
	var verifier *routing.Verifier
	if !*noSemantic {
		verifier = routing.NewVerifier(tuning, cacheStore, slog.Default())
		go func() {
			warmCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			defer cancel()
			start := time.Now()
			if err := verifier.Warm(warmCtx, reg); err != nil {
				slog.Warn("Semantic verifier warm-up failed, routing stays rule-based",
					slog.String("error", err.Error()),
					slog.Duration("duration", time.Since(start)),
				)
				return
			}
			slog.Info("Semantic verifier warmed",
				slog.Duration("duration", time.Since(start)),
			)
		}()
	}

	router, err := routing.NewRouter(reg, config.MustLoadDomainSynonyms(), tuning, verifier, slog.Default())
	if err != nil {
		slog.Error("Failed to build routing pipeline", slog.String("error", err.Error()))
		os.Exit(1)
	}

	resolver, err := geo.Default()
	if err != nil {
		slog.Warn("Geographic resolver unavailable, region enrichment disabled",
			slog.String("error", err.Error()),
		)
		resolver = nil
	}

	// The resolver doubles as the processor's reverse area namer.
	var namer process.AreaNamer
	if resolver != nil {
		namer = resolver
	}
	processor := process.NewProcessor(reg, namer, slog.Default())

	var geoResolver geo.Resolver
	if resolver != nil {
		geoResolver = resolver
	}
	handlers := insight.NewHandlers(router, processor, reg, geoResolver, slog.Default())

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(otelgin.Middleware("atlas-insight"))
	if *debug {
		engine.Use(gin.Logger())
	}

	v1 := engine.Group("/v1")
	insight.RegisterRoutes(v1, handlers)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	printBanner(*port, verifier != nil)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		slog.Info("Shutting down Atlas Insight server")
		if err := tuning.Close(); err != nil {
			slog.Warn("Failed to stop tuning watcher", slog.String("error", err.Error()))
		}
		if cacheDB != nil {
			if err := cacheDB.Close(); err != nil {
				slog.Warn("Failed to close exemplar cache BadgerDB", slog.String("error", err.Error()))
			}
		}
		os.Exit(0)
	}()

	addr := fmt.Sprintf(":%d", *port)
	slog.Info("Starting Atlas Insight server", slog.String("address", addr))
	if err := engine.Run(addr); err != nil {
		slog.Error("Failed to start server", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func printBanner(port int, semanticEnabled bool) {
	semanticStatus := "DISABLED (rule-based routing only)"
	if semanticEnabled {
		semanticStatus = "ENABLED (warming in background)"
	}

	banner := `
╔═══════════════════════════════════════════════════════════════════╗
║                      ATLAS INSIGHT SERVER                         ║
╠═══════════════════════════════════════════════════════════════════╣
║                                                                   ║
║  Query routing and record normalization for market analysis.      ║
║  Semantic Layer: %-48s ║
║                                                                   ║
║  Quick Start:                                                     ║
║  ┌─────────────────────────────────────────────────────────────┐  ║
║  │ # Health check                                              │  ║
║  │ curl http://localhost:%d/v1/insight/health            │  ║
║  │                                                             │  ║
║  │ # List analysis endpoints                                   │  ║
║  │ curl http://localhost:%d/v1/insight/endpoints | jq    │  ║
║  │                                                             │  ║
║  │ # Route a query                                             │  ║
║  │ curl -X POST http://localhost:%d/v1/insight/route \   │  ║
║  │   -H "Content-Type: application/json" \                     │  ║
║  │   -d '{"text": "compare nike vs adidas market share"}'      │  ║
║  └─────────────────────────────────────────────────────────────┘  ║
║                                                                   ║
║  Endpoints:                                                       ║
║  ├── POST /v1/insight/route - Route a query                       ║
║  ├── POST /v1/insight/process - Normalize a record batch          ║
║  ├── POST /v1/insight/analyze - Route and process together        ║
║  ├── GET  /v1/insight/endpoints - Endpoint discovery              ║
║  └── GET  /metrics - Prometheus metrics                           ║
║                                                                   ║
║  Press Ctrl+C to stop                                             ║
╚═══════════════════════════════════════════════════════════════════╝
`
	fmt.Printf(banner, semanticStatus, port, port, port)
}
