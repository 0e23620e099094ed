package embed

import (
	"context"
	"fmt"
	"strings"

	"notefinder/internal/chunker"
	"notefinder/internal/contextutil"
	"notefinder/internal/storage"
)

// Cached wraps a Provider with the persistent embedding cache. Chunks whose
// checksum already has a vector under the current model are never re-sent to
// the provider; misses are embedded in batches and written back.
type Cached struct {
	provider      Provider
	cache         storage.EmbeddingCache
	batchSize     int
	contextPrefix bool
}

// NewCached creates a caching embedder. When contextPrefix is enabled, a
// short locating sentence (note title and section) is prepended to each chunk
// before embedding; the stored chunk text is never modified, so citation
// snippets stay verbatim.
func NewCached(provider Provider, cache storage.EmbeddingCache, batchSize int, contextPrefix bool) *Cached {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Cached{
		provider:      provider,
		cache:         cache,
		batchSize:     batchSize,
		contextPrefix: contextPrefix,
	}
}

// Init validates the cache against the current embedding model, wiping it on
// a model change so vectors from different embedding spaces never mix.
func (c *Cached) Init(ctx context.Context) error {
	logger := contextutil.LoggerFromContext(ctx)

	invalidated, err := c.cache.EnsureModel(ctx, c.provider.ModelID())
	if err != nil {
		return fmt.Errorf("failed to validate embedding cache: %w", err)
	}
	if invalidated {
		logger.WarnContext(ctx, "embedding model changed, cache invalidated", "model_id", c.provider.ModelID())
	}
	return nil
}

// EmbedChunks returns a vector per chunk, keyed by chunk ID. Cached vectors
// are reused by checksum; the rest go to the provider in batches.
func (c *Cached) EmbedChunks(ctx context.Context, chunks []chunker.Chunk) (map[string][]float32, error) {
	logger := contextutil.LoggerFromContext(ctx)

	result := make(map[string][]float32, len(chunks))
	if len(chunks) == 0 {
		return result, nil
	}

	modelID := c.provider.ModelID()

	checksums := make([]string, 0, len(chunks))
	seen := make(map[string]struct{}, len(chunks))
	for _, chunk := range chunks {
		if _, ok := seen[chunk.Checksum]; ok {
			continue
		}
		seen[chunk.Checksum] = struct{}{}
		checksums = append(checksums, chunk.Checksum)
	}

	cached, err := c.cache.Get(ctx, modelID, checksums)
	if err != nil {
		return nil, fmt.Errorf("failed to read embedding cache: %w", err)
	}

	// Embed the misses. One text per distinct checksum, batched.
	var missChunks []chunker.Chunk
	missSeen := make(map[string]struct{})
	for _, chunk := range chunks {
		if _, ok := cached[chunk.Checksum]; ok {
			continue
		}
		if _, ok := missSeen[chunk.Checksum]; ok {
			continue
		}
		missSeen[chunk.Checksum] = struct{}{}
		missChunks = append(missChunks, chunk)
	}

	for start := 0; start < len(missChunks); start += c.batchSize {
		end := start + c.batchSize
		if end > len(missChunks) {
			end = len(missChunks)
		}
		batch := missChunks[start:end]

		texts := make([]string, len(batch))
		for i, chunk := range batch {
			texts[i] = c.embeddingText(chunk)
		}

		vectors, err := c.provider.Embed(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("embedding provider failed: %w", err)
		}
		if len(vectors) != len(batch) {
			return nil, fmt.Errorf("embedding count mismatch: expected %d, got %d", len(batch), len(vectors))
		}

		fresh := make(map[string][]float32, len(batch))
		for i, chunk := range batch {
			cached[chunk.Checksum] = vectors[i]
			fresh[chunk.Checksum] = vectors[i]
		}
		if err := c.cache.Put(ctx, modelID, fresh); err != nil {
			return nil, fmt.Errorf("failed to write embedding cache: %w", err)
		}
	}

	for _, chunk := range chunks {
		vec, ok := cached[chunk.Checksum]
		if !ok {
			return nil, fmt.Errorf("no vector produced for chunk %s", chunk.ID)
		}
		result[chunk.ID] = vec
	}

	logger.DebugContext(ctx, "chunks embedded",
		"total", len(chunks),
		"cache_misses", len(missChunks),
	)
	return result, nil
}

// EmbedQuery embeds a single query string. Queries are not cached.
func (c *Cached) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	vectors, err := c.provider.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("no embedding returned for query")
	}
	return vectors[0], nil
}

// embeddingText returns the text sent to the provider for a chunk: the chunk
// body, optionally preceded by a one-sentence context prefix locating it
// within its note.
func (c *Cached) embeddingText(chunk chunker.Chunk) string {
	if !c.contextPrefix {
		return chunk.Text
	}
	var b strings.Builder
	b.WriteString("From note \"")
	b.WriteString(chunk.NoteTitle)
	b.WriteString("\"")
	if len(chunk.HeadingPath) > 0 {
		b.WriteString(", section \"")
		b.WriteString(strings.Join(chunk.HeadingPath, " > "))
		b.WriteString("\"")
	}
	b.WriteString(".\n")
	b.WriteString(chunk.Text)
	return b.String()
}
