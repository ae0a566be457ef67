package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"clinical-rag/internal/app"
	"clinical-rag/internal/config"
	"clinical-rag/internal/http"
)

//go:generate swagger generate spec -o swagger.json

// General API information
//
// This API answers clinical questions from clinician protocols and
// published orthopedic evidence, with citations.
//
// swagger:meta
//
// ---
// swagger: '2.0'
// info:
//   title: Clinical RAG API
//   description: |
//     Retrieval and citation API over clinician protocol and evidence collections.
//     Upload documents, track their ingestion and ask questions scoped to a
//     clinician or a body part.
//   version: 1.0.0
// schemes:
//   - http
//   - https
// consumes:
//   - application/json
// produces:
//   - application/json

func main() {
	// Load configuration first (needed for log level)
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Configure structured logging with configurable level and format
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	slog.Debug("Logging configured", "level", cfg.LogLevel.String(), "format", cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			slog.Error("Failed to close backends", "error", err)
		}
	}()

	// Validate embedding client vector size (fail-fast)
	if err := a.ValidateEmbedder(ctx); err != nil {
		log.Fatalf("%v", err)
	}
	slog.Info("Embedding client validated", "vector_size", cfg.QdrantVectorSize)

	if err := a.VectorStore.EnsureCollection(ctx, cfg.DefaultCollection, cfg.QdrantVectorSize); err != nil {
		log.Fatalf("Failed to ensure default collection: %v", err)
	}
	slog.Info("Default collection ready", "collection", cfg.DefaultCollection)

	router := http.NewRouter(&http.Deps{
		Engine:            a.Engine,
		Resolver:          a.Resolver,
		Pipeline:          a.Pipeline,
		Directory:         a.Directory,
		VectorStore:       a.VectorStore,
		Statuses:          a.Statuses,
		Blobs:             a.Blobs,
		DefaultCollection: cfg.DefaultCollection,
		EmbeddingModel:    cfg.EmbeddingModelName,
	})

	server := &nethttp.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting API server", "addr", server.Addr)
		slog.Debug("LLM configuration", "base_url", cfg.LLMBaseURL, "model", cfg.LLMModelName)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			slog.Error("API server failed", "error", err)
		}
	case <-ctx.Done():
		slog.Info("Shutting down API server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("Graceful shutdown failed", "error", err)
		}
	}
}
