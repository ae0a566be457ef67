// Package app builds the collaborators shared by the API server and the CLI
// from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"clinical-rag/internal/blobstore"
	"clinical-rag/internal/config"
	"clinical-rag/internal/directory"
	"clinical-rag/internal/indexer"
	"clinical-rag/internal/llm"
	"clinical-rag/internal/rag"
	"clinical-rag/internal/retry"
	"clinical-rag/internal/storage"
	"clinical-rag/internal/vectorstore"
)

// App holds every wired collaborator.
type App struct {
	Config      *config.Config
	Directory   *directory.Directory
	VectorStore vectorstore.VectorStore
	Statuses    storage.StatusStore
	Blobs       blobstore.Store
	Embeddings  *llm.EmbeddingsClient
	Generator   *llm.Client
	Pipeline    *indexer.Pipeline
	Resolver    *rag.Resolver
	Engine      rag.Engine

	closers []func() error
}

// Policy returns the retry policy configured for collaborator calls.
func Policy(cfg *config.Config) retry.Policy {
	p := retry.DefaultPolicy()
	p.Attempts = cfg.CollaboratorRetries
	p.Timeout = cfg.CollaboratorTimeout
	return p
}

// New connects to the configured backends. Close releases them.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg}
	if err := a.build(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context) error {
	cfg := a.Config
	policy := Policy(cfg)

	var err error
	if cfg.DirectoryPath != "" {
		if a.Directory, err = directory.Load(cfg.DirectoryPath); err != nil {
			return err
		}
	} else {
		a.Directory = directory.Default()
	}
	slog.Info("Clinician registry loaded", "clinicians", len(a.Directory.Clinicians()), "path", cfg.DirectoryPath)

	if err := a.openVectorStore(policy); err != nil {
		return err
	}
	if err := a.openStatusStore(ctx); err != nil {
		return err
	}
	signer, err := a.openBlobStore(ctx)
	if err != nil {
		return err
	}

	a.Embeddings = llm.NewEmbeddingsClient(cfg.EmbeddingBaseURL, cfg.LLMAPIKey, cfg.EmbeddingModelName, cfg.QdrantVectorSize, cfg.EmbeddingRPS, policy)
	a.Embeddings.BatchSize = cfg.EmbeddingBatchSize
	queryEmbedder := llm.NewCachedEmbedder(a.Embeddings, cfg.EmbeddingModelName, cfg.EmbedCacheSize, cfg.EmbedCacheTTL)
	a.Generator = llm.NewClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModelName, policy)

	a.Pipeline = indexer.NewPipeline(a.Blobs, a.Embeddings, a.VectorStore, a.Statuses, a.Directory, cfg.QdrantVectorSize)
	a.Resolver = rag.NewResolver(a.Directory, a.VectorStore, cfg.DefaultCollection)
	a.Engine = rag.NewEngine(
		a.Directory,
		a.Resolver,
		rag.NewRanker(queryEmbedder, a.VectorStore, cfg.QdrantVectorSize),
		rag.NewContextBuilder(signer, cfg.PresignTTL),
		a.Generator,
	)
	return nil
}

func (a *App) openVectorStore(policy retry.Policy) error {
	cfg := a.Config
	switch cfg.VectorBackend {
	case "memory":
		a.VectorStore = vectorstore.NewMemoryStore()
		slog.Warn("Using in-memory vector store; collections are lost on exit")
	default:
		store, err := vectorstore.NewQdrantStore(cfg.QdrantURL, cfg.QdrantAPIKey)
		if err != nil {
			return fmt.Errorf("failed to create Qdrant client: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		a.VectorStore = vectorstore.WithRetry(store, policy)
		slog.Info("Qdrant vector store ready", "url", cfg.QdrantURL, "vector_size", cfg.QdrantVectorSize)
	}
	return nil
}

func (a *App) openStatusStore(ctx context.Context) error {
	cfg := a.Config
	switch cfg.StatusBackend {
	case "redis":
		store, err := storage.NewRedisStatusStore(ctx, cfg.RedisAddr, cfg.RedisPassword, 0)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, store.Close)
		a.Statuses = store
		slog.Info("Redis status store ready", "addr", cfg.RedisAddr)
	default:
		db, err := storage.New(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		if err := storage.Migrate(db); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		a.Statuses = storage.NewStatusRepo(db)
		slog.Info("Database initialized", "path", cfg.DBPath)
	}
	return nil
}

// openBlobStore returns the store's URL signer, or nil when the backend
// cannot presign.
func (a *App) openBlobStore(ctx context.Context) (blobstore.URLSigner, error) {
	cfg := a.Config
	switch cfg.BlobBackend {
	case "local":
		store, err := blobstore.NewLocalStore(cfg.BlobLocalDir)
		if err != nil {
			return nil, err
		}
		a.Blobs = store
		slog.Info("Local blob store ready", "dir", cfg.BlobLocalDir)
		return nil, nil
	default:
		store, err := blobstore.NewS3Store(ctx, blobstore.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.AWSRegion,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
			MaxAttempts:     cfg.CollaboratorRetries,
			Timeout:         cfg.CollaboratorTimeout,
		})
		if err != nil {
			return nil, err
		}
		a.Blobs = store
		slog.Info("S3 blob store ready", "bucket", cfg.S3Bucket, "region", cfg.AWSRegion)
		return store, nil
	}
}

// ValidateEmbedder embeds a probe text and checks the vector size against
// the configured collection size.
func (a *App) ValidateEmbedder(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*a.Config.CollaboratorTimeout)
	defer cancel()

	vectors, err := a.Embeddings.EmbedTexts(ctx, []string{"test"})
	if err != nil {
		return fmt.Errorf("failed to validate embedding client: %w", err)
	}
	if len(vectors) == 0 || len(vectors[0]) != a.Config.QdrantVectorSize {
		return fmt.Errorf("embedding vector size mismatch: expected %d", a.Config.QdrantVectorSize)
	}
	return nil
}

// Close waits for queued ingestions and releases every backend.
func (a *App) Close() error {
	if a.Pipeline != nil {
		done := make(chan struct{})
		go func() {
			a.Pipeline.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(2 * time.Minute):
			slog.Warn("Timed out waiting for ingestions to finish")
		}
	}

	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}
