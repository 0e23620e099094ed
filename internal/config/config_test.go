package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

var configEnvVars = []string{
	"VAULT_PATH", "DB_PATH", "VECTOR_SIZE", "EMBEDDING_BASE_URL",
	"EMBEDDING_API_KEY", "EMBEDDING_MODEL", "EMBEDDING_BATCH", "CONTEXT_PREFIX",
	"JUDGE_BASE_URL", "JUDGE_API_KEY", "JUDGE_MODEL", "JUDGE_TIMEOUT",
	"VECTOR_BACKEND", "QDRANT_URL", "QDRANT_COLLECTION",
	"K_LEX", "K_VEC", "RERANK_TOP_K", "TOP_N", "SIMILARITY_GATE",
	"HALLUCINATION_SIMILARITY", "HALLUCINATION_SCORE", "IRRELEVANT_SCORE",
	"API_PORT", "LOG_LEVEL", "LOG_FORMAT",
}

// clearEnv unsets every config variable for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range configEnvVars {
		t.Setenv(key, "")
		_ = os.Unsetenv(key)
	}
}

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("VAULT_PATH", t.TempDir())
	t.Setenv("VECTOR_SIZE", "768")
	t.Setenv("DB_PATH", filepath.Join(t.TempDir(), "test.db"))
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.VectorSize != 768 {
		t.Errorf("VectorSize = %d", cfg.VectorSize)
	}
	if cfg.KLex != 50 || cfg.KVec != 30 || cfg.RerankTopK != 10 || cfg.TopN != 5 {
		t.Errorf("retrieval defaults wrong: %+v", cfg)
	}
	if cfg.SimilarityGate != 0.35 {
		t.Errorf("SimilarityGate = %f", cfg.SimilarityGate)
	}
	if cfg.HallucinationSimilarity != 0.7 || cfg.HallucinationScore != 3.0 || cfg.IrrelevantScore != 3.0 {
		t.Errorf("label threshold defaults wrong: %+v", cfg)
	}
	if cfg.JudgeTimeout != 15*time.Second {
		t.Errorf("JudgeTimeout = %s", cfg.JudgeTimeout)
	}
	if cfg.VectorBackend != "qdrant" {
		t.Errorf("VectorBackend = %q", cfg.VectorBackend)
	}
	if !cfg.ContextPrefix {
		t.Error("ContextPrefix should default to true")
	}
}

func TestLoadRequiresVaultPath(t *testing.T) {
	clearEnv(t)
	t.Setenv("VECTOR_SIZE", "768")
	t.Setenv("DB_PATH", filepath.Join(t.TempDir(), "test.db"))

	if _, err := Load(); err == nil {
		t.Fatal("expected error without VAULT_PATH")
	}
}

func TestLoadRequiresVectorSize(t *testing.T) {
	clearEnv(t)
	t.Setenv("VAULT_PATH", t.TempDir())
	t.Setenv("DB_PATH", filepath.Join(t.TempDir(), "test.db"))

	if _, err := Load(); err == nil {
		t.Fatal("expected error without VECTOR_SIZE")
	}
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	setRequired(t)
	t.Setenv("K_LEX", "100")
	t.Setenv("SIMILARITY_GATE", "0.5")
	t.Setenv("JUDGE_TIMEOUT", "3s")
	t.Setenv("VECTOR_BACKEND", "memory")
	t.Setenv("CONTEXT_PREFIX", "false")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.KLex != 100 {
		t.Errorf("KLex = %d", cfg.KLex)
	}
	if cfg.SimilarityGate != 0.5 {
		t.Errorf("SimilarityGate = %f", cfg.SimilarityGate)
	}
	if cfg.JudgeTimeout != 3*time.Second {
		t.Errorf("JudgeTimeout = %s", cfg.JudgeTimeout)
	}
	if cfg.VectorBackend != "memory" {
		t.Errorf("VectorBackend = %q", cfg.VectorBackend)
	}
	if cfg.ContextPrefix {
		t.Error("ContextPrefix override ignored")
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"non-integer k", "K_LEX", "many"},
		{"non-float gate", "SIMILARITY_GATE", "low"},
		{"bad timeout", "JUDGE_TIMEOUT", "soon"},
		{"bad log level", "LOG_LEVEL", "loud"},
		{"bad backend", "VECTOR_BACKEND", "chroma"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			setRequired(t)
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Errorf("expected error for %s=%s", tt.key, tt.value)
			}
		})
	}
}
