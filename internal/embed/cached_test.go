package embed

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/mock/gomock"

	"notefinder/internal/chunker"
	"notefinder/internal/embed/mocks"
	"notefinder/internal/storage"
)

func testCache(t *testing.T) storage.EmbeddingCache {
	t.Helper()
	db, err := storage.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := storage.Migrate(db); err != nil {
		t.Fatalf("storage.Migrate: %v", err)
	}
	return storage.NewEmbeddingCacheRepo(db)
}

func testChunk(id, text string) chunker.Chunk {
	return chunker.Chunk{
		ID:        id,
		NotePath:  "note.md",
		NoteTitle: "Note",
		Text:      text,
		Checksum:  chunker.Checksum(text),
	}
}

func TestEmbedChunksCachesByChecksum(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	provider := mocks.NewMockProvider(ctrl)
	provider.EXPECT().ModelID().Return("test-model:2").AnyTimes()
	// The provider must be called exactly once; the second EmbedChunks
	// round is served entirely from the cache.
	provider.EXPECT().
		Embed(gomock.Any(), gomock.Len(2)).
		Return([][]float32{{1, 0}, {0, 1}}, nil).
		Times(1)

	cached := NewCached(provider, testCache(t), 100, false)
	ctx := context.Background()
	if err := cached.Init(ctx); err != nil {
		t.Fatalf("Init: %v", err)
	}

	chunks := []chunker.Chunk{
		testChunk("id-1", "first text"),
		testChunk("id-2", "second text"),
	}

	first, err := cached.EmbedChunks(ctx, chunks)
	if err != nil {
		t.Fatalf("EmbedChunks: %v", err)
	}
	if len(first) != 2 {
		t.Fatalf("expected 2 vectors, got %d", len(first))
	}

	second, err := cached.EmbedChunks(ctx, chunks)
	if err != nil {
		t.Fatalf("second EmbedChunks: %v", err)
	}
	if second["id-1"][0] != 1 || second["id-2"][1] != 1 {
		t.Errorf("cached vectors differ from the originals")
	}
}

func TestEmbedChunksDeduplicatesIdenticalText(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	provider := mocks.NewMockProvider(ctrl)
	provider.EXPECT().ModelID().Return("test-model:2").AnyTimes()
	provider.EXPECT().
		Embed(gomock.Any(), gomock.Len(1)).
		Return([][]float32{{0.5, 0.5}}, nil).
		Times(1)

	cached := NewCached(provider, testCache(t), 100, false)
	ctx := context.Background()

	// Two chunks with the same checksum share one provider call and one
	// cache entry, but both IDs appear in the result.
	result, err := cached.EmbedChunks(ctx, []chunker.Chunk{
		testChunk("id-a", "same text"),
		testChunk("id-b", "same text"),
	})
	if err != nil {
		t.Fatalf("EmbedChunks: %v", err)
	}
	if len(result) != 2 {
		t.Fatalf("expected vectors for both chunk IDs, got %d", len(result))
	}
}

func TestEmbedChunksBatches(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	provider := mocks.NewMockProvider(ctrl)
	provider.EXPECT().ModelID().Return("test-model:1").AnyTimes()
	provider.EXPECT().
		Embed(gomock.Any(), gomock.Len(2)).
		Return([][]float32{{1}, {2}}, nil).
		Times(1)
	provider.EXPECT().
		Embed(gomock.Any(), gomock.Len(1)).
		Return([][]float32{{3}}, nil).
		Times(1)

	cached := NewCached(provider, testCache(t), 2, false)
	_, err := cached.EmbedChunks(context.Background(), []chunker.Chunk{
		testChunk("id-1", "one"),
		testChunk("id-2", "two"),
		testChunk("id-3", "three"),
	})
	if err != nil {
		t.Fatalf("EmbedChunks: %v", err)
	}
}

func TestEmbedChunksEmptyInput(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	provider := mocks.NewMockProvider(ctrl)
	cached := NewCached(provider, testCache(t), 100, false)

	result, err := cached.EmbedChunks(context.Background(), nil)
	if err != nil {
		t.Fatalf("EmbedChunks: %v", err)
	}
	if len(result) != 0 {
		t.Errorf("expected empty result, got %d entries", len(result))
	}
}

func TestEmbeddingTextContextPrefix(t *testing.T) {
	chunk := chunker.Chunk{
		NoteTitle:   "Project Plan",
		HeadingPath: []string{"Milestones", "Q3"},
		Text:        "Ship the beta.",
	}

	plain := &Cached{contextPrefix: false}
	if got := plain.embeddingText(chunk); got != "Ship the beta." {
		t.Errorf("prefix disabled: got %q", got)
	}

	prefixed := &Cached{contextPrefix: true}
	got := prefixed.embeddingText(chunk)
	if !strings.HasPrefix(got, `From note "Project Plan", section "Milestones > Q3".`) {
		t.Errorf("unexpected prefix: %q", got)
	}
	if !strings.HasSuffix(got, "Ship the beta.") {
		t.Errorf("chunk text missing from prefixed form: %q", got)
	}
}

func TestEmbedQueryPassesThrough(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	provider := mocks.NewMockProvider(ctrl)
	provider.EXPECT().
		Embed(gomock.Any(), []string{"what is raft"}).
		Return([][]float32{{0.25, 0.75}}, nil)

	cached := NewCached(provider, testCache(t), 100, true)
	vec, err := cached.EmbedQuery(context.Background(), "what is raft")
	if err != nil {
		t.Fatalf("EmbedQuery: %v", err)
	}
	if len(vec) != 2 || vec[1] != 0.75 {
		t.Errorf("unexpected vector: %v", vec)
	}
}
