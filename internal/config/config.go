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
// Every retrieval tunable lives here so components never read globals and
// concurrent tests can run with different configs in the same process.
type Config struct {
	// Vault and storage
	VaultPath string
	DBPath    string

	// Embedding provider
	EmbeddingBaseURL string
	EmbeddingAPIKey  string
	EmbeddingModel   string
	VectorSize       int
	EmbeddingBatch   int
	ContextPrefix    bool

	// Judge (reranking) provider
	JudgeBaseURL string
	JudgeAPIKey  string
	JudgeModel   string
	JudgeTimeout time.Duration

	// Vector index backend: "qdrant" or "memory"
	VectorBackend    string
	QdrantURL        string
	QdrantCollection string

	// Retrieval tunables
	KLex       int
	KVec       int
	RerankTopK int
	TopN       int

	// Similarity gate: vector-only candidates below this cosine similarity
	// are discarded before reranking.
	SimilarityGate float64

	// Label thresholds. The defaults are empirically tuned, not derived;
	// keep them overridable per deployment.
	HallucinationSimilarity float64
	HallucinationScore      float64
	IrrelevantScore         float64

	// Server and logging
	APIPort   string
	LogLevel  slog.Level
	LogFormat string
}

// Load reads configuration from environment variables and returns a Config struct.
// It applies defaults for optional fields and validates required fields.
// If a .env file exists in the current directory or a parent directory, it is
// loaded automatically; variables already set take precedence over .env values.
func Load() (*Config, error) {
	_ = godotenv.Load() // Try current directory

	// Walk up a few levels looking for a .env next to the project root.
	if wd, err := os.Getwd(); err == nil {
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
		VaultPath:        getEnv("VAULT_PATH", ""),
		DBPath:           getEnv("DB_PATH", "./data/notefinder.db"),
		EmbeddingBaseURL: getEnv("EMBEDDING_BASE_URL", "http://localhost:8081"),
		EmbeddingAPIKey:  getEnv("EMBEDDING_API_KEY", "dummy-key"),
		EmbeddingModel:   getEnv("EMBEDDING_MODEL", "granite-embedding-278m-multilingual"),
		JudgeBaseURL:     getEnv("JUDGE_BASE_URL", "http://localhost:8080"),
		JudgeAPIKey:      getEnv("JUDGE_API_KEY", "dummy-key"),
		JudgeModel:       getEnv("JUDGE_MODEL", "Llama-3.1-8B-Instruct"),
		VectorBackend:    getEnv("VECTOR_BACKEND", "qdrant"),
		QdrantURL:        getEnv("QDRANT_URL", "http://localhost:6333"),
		QdrantCollection: getEnv("QDRANT_COLLECTION", "notes"),
		APIPort:          getEnv("API_PORT", "9000"),
		LogFormat:        getEnv("LOG_FORMAT", "text"),
	}

	var err error
	if cfg.VectorSize, err = getEnvInt("VECTOR_SIZE", 0); err != nil {
		return nil, err
	}
	if cfg.VectorSize <= 0 {
		return nil, fmt.Errorf("VECTOR_SIZE is required and must be greater than 0")
	}
	if cfg.EmbeddingBatch, err = getEnvInt("EMBEDDING_BATCH", 100); err != nil {
		return nil, err
	}
	if cfg.KLex, err = getEnvInt("K_LEX", 50); err != nil {
		return nil, err
	}
	if cfg.KVec, err = getEnvInt("K_VEC", 30); err != nil {
		return nil, err
	}
	if cfg.RerankTopK, err = getEnvInt("RERANK_TOP_K", 10); err != nil {
		return nil, err
	}
	if cfg.TopN, err = getEnvInt("TOP_N", 5); err != nil {
		return nil, err
	}
	if cfg.SimilarityGate, err = getEnvFloat("SIMILARITY_GATE", 0.35); err != nil {
		return nil, err
	}
	if cfg.HallucinationSimilarity, err = getEnvFloat("HALLUCINATION_SIMILARITY", 0.7); err != nil {
		return nil, err
	}
	if cfg.HallucinationScore, err = getEnvFloat("HALLUCINATION_SCORE", 3.0); err != nil {
		return nil, err
	}
	if cfg.IrrelevantScore, err = getEnvFloat("IRRELEVANT_SCORE", 3.0); err != nil {
		return nil, err
	}

	timeoutStr := getEnv("JUDGE_TIMEOUT", "15s")
	cfg.JudgeTimeout, err = time.ParseDuration(timeoutStr)
	if err != nil {
		return nil, fmt.Errorf("JUDGE_TIMEOUT must be a valid duration: %w", err)
	}

	cfg.ContextPrefix = strings.EqualFold(getEnv("CONTEXT_PREFIX", "true"), "true")

	switch strings.ToLower(getEnv("LOG_LEVEL", "info")) {
	case "debug":
		cfg.LogLevel = slog.LevelDebug
	case "info":
		cfg.LogLevel = slog.LevelInfo
	case "warn":
		cfg.LogLevel = slog.LevelWarn
	case "error":
		cfg.LogLevel = slog.LevelError
	default:
		return nil, fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error")
	}

	switch cfg.VectorBackend {
	case "qdrant", "memory":
	default:
		return nil, fmt.Errorf("VECTOR_BACKEND must be qdrant or memory, got %q", cfg.VectorBackend)
	}

	if cfg.VaultPath == "" {
		return nil, fmt.Errorf("VAULT_PATH is required")
	}

	// Create the data directory if it doesn't exist (for the DB file).
	dataDir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	return cfg, nil
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid integer: %w", key, err)
	}
	return parsed, nil
}

func getEnvFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid number: %w", key, err)
	}
	return parsed, nil
}
