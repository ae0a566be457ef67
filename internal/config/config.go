package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	LLMBaseURL         string
	LLMModelName       string
	LLMAPIKey          string
	EmbeddingBaseURL   string
	EmbeddingModelName string
	EmbeddingBatchSize int
	EmbeddingRPS       float64
	EmbedCacheSize     int
	EmbedCacheTTL      time.Duration

	VectorBackend     string
	QdrantURL         string
	QdrantAPIKey      string
	QdrantVectorSize  int
	DefaultCollection string

	DirectoryPath string

	StatusBackend string
	DBPath        string
	RedisAddr     string
	RedisPassword string

	BlobBackend        string
	S3Bucket           string
	AWSRegion          string
	S3Endpoint         string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	BlobLocalDir       string
	PresignTTL         time.Duration

	CollaboratorTimeout time.Duration
	CollaboratorRetries int

	APIPort   string
	LogLevel  slog.Level
	LogFormat string
}

// Load reads configuration from environment variables and returns a Config struct.
// It applies defaults for optional fields and validates required fields.
// If a .env file exists in the current directory or project root, it will be loaded automatically.
// Environment variables already set take precedence over .env file values.
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	// Walk up to find a project-level .env
	wd, err := os.Getwd()
	if err == nil {
		dir := wd
		for i := 0; i < 5; i++ {
			envPath := filepath.Join(dir, ".env")
			if _, err := os.Stat(envPath); err == nil {
				_ = godotenv.Load(envPath)
				break
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	}

	cfg := &Config{
		LLMBaseURL:         getEnv("LLM_BASE_URL", "https://api.openai.com"),
		LLMModelName:       getEnv("LLM_MODEL", "gpt-4o-mini"),
		LLMAPIKey:          getEnv("LLM_API_KEY", ""),
		EmbeddingBaseURL:   getEnv("EMBEDDING_BASE_URL", "https://api.openai.com"),
		EmbeddingModelName: getEnv("EMBEDDING_MODEL_NAME", "text-embedding-3-small"),
		VectorBackend:      strings.ToLower(getEnv("VECTOR_BACKEND", "qdrant")),
		QdrantURL:          getEnv("QDRANT_URL", "http://localhost:6333"),
		QdrantAPIKey:       getEnv("QDRANT_API_KEY", ""),
		DefaultCollection:  getEnv("DEFAULT_COLLECTION", "org_demo_chunks"),
		DirectoryPath:      getEnv("DIRECTORY_PATH", ""),
		StatusBackend:      strings.ToLower(getEnv("STATUS_BACKEND", "sqlite")),
		DBPath:             getEnv("DB_PATH", "./data/clinical-rag.db"),
		RedisAddr:          getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:      getEnv("REDIS_PASSWORD", ""),
		BlobBackend:        strings.ToLower(getEnv("BLOB_BACKEND", "s3")),
		S3Bucket:           getEnv("S3_BUCKET", ""),
		AWSRegion:          getEnv("AWS_REGION", "us-east-1"),
		S3Endpoint:         getEnv("S3_ENDPOINT", ""),
		AWSAccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
		BlobLocalDir:       getEnv("BLOB_LOCAL_DIR", "./data/blobs"),
		APIPort:            getEnv("API_PORT", "9000"),
		LogFormat:          strings.ToLower(getEnv("LOG_FORMAT", "text")),
	}

	// LLM_API_KEY doubles as the embeddings key; OpenAI serves both.
	if cfg.LLMAPIKey == "" {
		cfg.LLMAPIKey = getEnv("OPENAI_API_KEY", "")
	}

	if cfg.QdrantVectorSize, err = getInt("QDRANT_VECTOR_SIZE", 1536); err != nil {
		return nil, err
	}
	if cfg.QdrantVectorSize <= 0 {
		return nil, fmt.Errorf("QDRANT_VECTOR_SIZE must be greater than 0")
	}

	if cfg.EmbeddingBatchSize, err = getInt("EMBEDDING_BATCH_SIZE", 128); err != nil {
		return nil, err
	}
	if cfg.EmbeddingBatchSize <= 0 {
		return nil, fmt.Errorf("EMBEDDING_BATCH_SIZE must be greater than 0")
	}

	if cfg.EmbedCacheSize, err = getInt("EMBED_CACHE_SIZE", 1024); err != nil {
		return nil, err
	}
	if cfg.CollaboratorRetries, err = getInt("COLLABORATOR_RETRIES", 3); err != nil {
		return nil, err
	}
	if cfg.CollaboratorRetries < 1 {
		return nil, fmt.Errorf("COLLABORATOR_RETRIES must be at least 1")
	}

	rps, err := strconv.ParseFloat(getEnv("EMBEDDING_RPS", "5"), 64)
	if err != nil {
		return nil, fmt.Errorf("EMBEDDING_RPS must be a valid number: %w", err)
	}
	cfg.EmbeddingRPS = rps

	if cfg.EmbedCacheTTL, err = getDuration("EMBED_CACHE_TTL", 10*time.Minute); err != nil {
		return nil, err
	}
	if cfg.PresignTTL, err = getDuration("PRESIGN_TTL", time.Hour); err != nil {
		return nil, err
	}
	if cfg.CollaboratorTimeout, err = getDuration("COLLABORATOR_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}

	level, err := parseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		return nil, err
	}
	cfg.LogLevel = level

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if cfg.StatusBackend == "sqlite" {
		dataDir := filepath.Dir(cfg.DBPath)
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.VectorBackend {
	case "qdrant", "memory":
	default:
		return fmt.Errorf("VECTOR_BACKEND must be qdrant or memory, got %q", c.VectorBackend)
	}
	switch c.StatusBackend {
	case "sqlite", "redis":
	default:
		return fmt.Errorf("STATUS_BACKEND must be sqlite or redis, got %q", c.StatusBackend)
	}
	switch c.BlobBackend {
	case "s3":
		if c.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required when BLOB_BACKEND=s3")
		}
	case "local":
	default:
		return fmt.Errorf("BLOB_BACKEND must be s3 or local, got %q", c.BlobBackend)
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or text, got %q", c.LogFormat)
	}
	if c.DefaultCollection == "" {
		return fmt.Errorf("DEFAULT_COLLECTION must not be empty")
	}
	return nil
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid integer: %w", key, err)
	}
	return v, nil
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid duration: %w", key, err)
	}
	return d, nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("LOG_LEVEL is invalid: %w", err)
	}
	return level, nil
}
