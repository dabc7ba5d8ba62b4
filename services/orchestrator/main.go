// Copyright (C) 2026 Harmonia Labs (oss@harmonialabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"

	"github.com/harmonialabs/csagent/pkg/logging"
	"github.com/harmonialabs/csagent/services/agent"
	"github.com/harmonialabs/csagent/services/cache"
	"github.com/harmonialabs/csagent/services/conversation"
	"github.com/harmonialabs/csagent/services/knowledge"
	"github.com/harmonialabs/csagent/services/llm"
	"github.com/harmonialabs/csagent/services/orchestrator/config"
	"github.com/harmonialabs/csagent/services/orchestrator/middleware"
	"github.com/harmonialabs/csagent/services/orchestrator/observability"
	"github.com/harmonialabs/csagent/services/orchestrator/routes"
	"github.com/harmonialabs/csagent/services/storage"
)

const serviceName = "csagent"

func initTracer(endpoint string) (func(context.Context), error) {
	ctx := context.Background()

	conn, err := grpc.NewClient(endpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String(serviceName)))
	if err != nil {
		return nil, err
	}
	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))
	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.
		TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}, nil
}

func main() {
	cfg := config.Load()

	logger := logging.New(logging.Config{
		Level:   logging.ParseLevel(os.Getenv("LOG_LEVEL")),
		LogDir:  os.Getenv("LOG_DIR"),
		Service: serviceName,
		JSON:    true,
	})
	defer logger.Close()
	slog.SetDefault(logger.Slog())

	if cfg.Telemetry.OTLPEndpoint != "" {
		cleanup, err := initTracer(cfg.Telemetry.OTLPEndpoint)
		if err != nil {
			log.Fatalf("failed to setup the OTLP tracer: %v", err)
		}
		defer cleanup(context.Background())
	} else {
		slog.Info("OTEL_EXPORTER_OTLP_ENDPOINT not set, trace export disabled")
	}

	db, err := storage.Open(cfg.Database.Path)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	knowledgeStore := knowledge.NewStore(db)
	conversationStore := conversation.NewStore(db)

	var answerCache cache.Store = cache.Disabled{}
	if cfg.Cache.Enabled {
		badgerStore, err := cache.Open(cache.DefaultConfig(cfg.Cache.Dir))
		if err != nil {
			// The cache is an optimization; a broken cache directory must
			// not keep the service down.
			slog.Error("failed to open answer cache, running without it", "error", err)
		} else {
			defer badgerStore.Close()
			answerCache = badgerStore
		}
	} else {
		slog.Info("answer cache disabled by configuration")
	}

	llmClient := llm.NewChatCompletionClient(llm.Config{
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
	}, llm.NewHTTPClient())

	pipelineCfg := agent.DefaultConfig()
	pipelineCfg.AnswerTTL = cfg.Cache.AnswerTTL()
	pipelineCfg.RefusalTTL = cfg.Cache.RefusalTTL()
	pipelineCfg.RetrievalLimit = cfg.Retrieval.Limit
	pipeline := agent.NewPipeline(answerCache, knowledgeStore, llmClient, pipelineCfg, logger.Slog())

	observability.InitMetrics()

	router := gin.Default()
	router.Use(otelgin.Middleware(serviceName))
	router.Use(middleware.RequestID())

	routes.SetupRoutes(router, pipeline, knowledgeStore, conversationStore)

	slog.Info("starting the agent server", "port", cfg.Server.Port, "model", cfg.LLM.Model)
	if err := router.Run(":" + cfg.Server.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
