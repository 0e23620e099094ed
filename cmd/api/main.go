package main

import (
	"context"
	"log"
	"log/slog"
	nethttp "net/http"
	"os"

	"notefinder/internal/chunker"
	"notefinder/internal/config"
	"notefinder/internal/embed"
	"notefinder/internal/handlers"
	"notefinder/internal/http"
	"notefinder/internal/indexer"
	"notefinder/internal/judge"
	"notefinder/internal/lexical"
	"notefinder/internal/notes"
	"notefinder/internal/rerank"
	"notefinder/internal/retrieval"
	"notefinder/internal/storage"
	"notefinder/internal/vectorindex"
)

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

	ctx := context.Background()

	// Initialize database
	db, err := storage.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer func() {
		_ = db.Close()
	}()

	if err := storage.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	slog.Info("Database initialized", "path", cfg.DBPath)

	noteRepo := storage.NewNoteRepo(db)
	chunkRepo := storage.NewChunkRepo(db)
	cacheRepo := storage.NewEmbeddingCacheRepo(db)
	lexIndex := lexical.NewIndex(db)

	// Validate the embedding provider and prime the cache model check
	// before anything touches the vector index (fail-fast).
	provider := embed.NewHTTPProvider(cfg.EmbeddingBaseURL, cfg.EmbeddingAPIKey, cfg.EmbeddingModel, cfg.VectorSize)
	embedder := embed.NewCached(provider, cacheRepo, cfg.EmbeddingBatch, cfg.ContextPrefix)
	if err := embedder.Init(ctx); err != nil {
		log.Fatalf("Failed to initialize embedding cache: %v", err)
	}
	probe, err := embedder.EmbedQuery(ctx, "test")
	if err != nil {
		log.Fatalf("Failed to validate embedding provider: %v", err)
	}
	if len(probe) != cfg.VectorSize {
		log.Fatalf("Embedding vector size mismatch: expected %d, got %d", cfg.VectorSize, len(probe))
	}
	slog.Info("Embedding provider validated", "model", cfg.EmbeddingModel, "vector_size", cfg.VectorSize)

	scanner, err := notes.NewScanner(cfg.VaultPath)
	if err != nil {
		log.Fatalf("Failed to open vault: %v", err)
	}
	slog.Info("Vault ready", "path", cfg.VaultPath)

	ck := chunker.New()

	var vecIndex vectorindex.Index
	switch cfg.VectorBackend {
	case "qdrant":
		qdrantIndex, err := vectorindex.NewQdrantIndex(cfg.QdrantURL, cfg.QdrantCollection)
		if err != nil {
			log.Fatalf("Failed to create Qdrant client: %v", err)
		}
		if err := qdrantIndex.EnsureCollection(ctx, cfg.VectorSize); err != nil {
			log.Fatalf("Failed to ensure Qdrant collection: %v", err)
		}
		slog.Info("Qdrant collection ready", "collection", cfg.QdrantCollection, "vector_size", cfg.VectorSize)
		vecIndex = qdrantIndex
	case "memory":
		vecIndex = vectorindex.NewMemoryIndex()
		slog.Info("Using in-memory vector index")
	default:
		log.Fatalf("Unknown vector backend: %s", cfg.VectorBackend)
	}

	idx := indexer.New(ck, noteRepo, chunkRepo, embedder, lexIndex, vecIndex)

	// The memory backend loses its vectors on restart; rebuild them from
	// the embedding cache before serving queries.
	if cfg.VectorBackend == "memory" {
		warmed, err := idx.WarmVector(ctx)
		if err != nil {
			log.Fatalf("Failed to rebuild vector index: %v", err)
		}
		slog.Info("Vector index rebuilt from cache", "chunks", warmed)
	}

	retriever := retrieval.New(embedder, lexIndex, vecIndex, chunkRepo, cfg.KLex, cfg.KVec, cfg.SimilarityGate)

	judgeClient := judge.NewHTTPProvider(cfg.JudgeBaseURL, cfg.JudgeAPIKey, cfg.JudgeModel)
	reranker := rerank.New(judgeClient, rerank.Config{
		RerankTopK:              cfg.RerankTopK,
		TopN:                    cfg.TopN,
		JudgeTimeout:            cfg.JudgeTimeout,
		HallucinationSimilarity: cfg.HallucinationSimilarity,
		HallucinationScore:      cfg.HallucinationScore,
		IrrelevantScore:         cfg.IrrelevantScore,
	})

	router := http.NewRouter(http.NewDeps(
		handlers.NewRetrieveHandler(retriever),
		handlers.NewAskHandler(retriever, reranker),
		handlers.NewSyncHandler(scanner, idx),
		handlers.NewHealthHandler(chunkRepo),
	))

	// Start indexing in background after router is ready
	go func() {
		syncCtx := context.Background()
		slog.Info("Starting background sync of vault")
		scanned, err := scanner.Scan(syncCtx)
		if err != nil {
			slog.Error("Vault scan failed", "error", err)
			return
		}
		report, err := idx.Sync(syncCtx, scanned)
		if err != nil {
			slog.Error("Sync completed with errors", "error", err)
			return
		}
		slog.Info("Sync completed",
			"upserted", report.NotesUpserted,
			"unchanged", report.NotesUnchanged,
			"deleted", report.NotesDeleted,
			"failed", report.NotesFailed,
		)
	}()

	// Start API server
	addr := ":" + cfg.APIPort
	slog.Info("Starting API server", "addr", addr)
	if err := nethttp.ListenAndServe(addr, router); err != nil {
		log.Fatalf("API server failed to start: %v", err)
	}
}
