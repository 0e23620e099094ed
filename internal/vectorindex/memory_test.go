package vectorindex

import (
	"context"
	"math"
	"testing"
)

func TestMemoryIndexSearchOrdersBySimilarity(t *testing.T) {
	ix := NewMemoryIndex()
	ctx := context.Background()

	err := ix.Upsert(ctx, []Point{
		{ID: "exact", Vector: []float32{1, 0, 0}},
		{ID: "close", Vector: []float32{0.9, 0.1, 0}},
		{ID: "orthogonal", Vector: []float32{0, 1, 0}},
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	hits, err := ix.Search(ctx, []float32{1, 0, 0}, 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 3 {
		t.Fatalf("expected 3 hits, got %d", len(hits))
	}
	if hits[0].ChunkID != "exact" || hits[1].ChunkID != "close" || hits[2].ChunkID != "orthogonal" {
		t.Errorf("unexpected order: %s, %s, %s", hits[0].ChunkID, hits[1].ChunkID, hits[2].ChunkID)
	}
	if math.Abs(float64(hits[0].Similarity)-1) > 1e-6 {
		t.Errorf("exact match similarity = %f, want 1", hits[0].Similarity)
	}
	for i, hit := range hits {
		if hit.Rank != i+1 {
			t.Errorf("hit %d has rank %d", i, hit.Rank)
		}
	}
}

func TestMemoryIndexSearchLimitsK(t *testing.T) {
	ix := NewMemoryIndex()
	ctx := context.Background()

	_ = ix.Upsert(ctx, []Point{
		{ID: "a", Vector: []float32{1, 0}},
		{ID: "b", Vector: []float32{0.5, 0.5}},
		{ID: "c", Vector: []float32{0, 1}},
	})

	hits, err := ix.Search(ctx, []float32{1, 0}, 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 2 {
		t.Errorf("expected 2 hits with k=2, got %d", len(hits))
	}
}

func TestMemoryIndexTieBreakByID(t *testing.T) {
	ix := NewMemoryIndex()
	ctx := context.Background()

	_ = ix.Upsert(ctx, []Point{
		{ID: "bbb", Vector: []float32{1, 0}},
		{ID: "aaa", Vector: []float32{1, 0}},
	})

	hits, err := ix.Search(ctx, []float32{1, 0}, 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if hits[0].ChunkID != "aaa" || hits[1].ChunkID != "bbb" {
		t.Errorf("ties should break by ID: got %s, %s", hits[0].ChunkID, hits[1].ChunkID)
	}
}

func TestMemoryIndexRemove(t *testing.T) {
	ix := NewMemoryIndex()
	ctx := context.Background()

	_ = ix.Upsert(ctx, []Point{{ID: "a", Vector: []float32{1, 0}}})
	if err := ix.Remove(ctx, []string{"a"}); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if ix.Len() != 0 {
		t.Errorf("Len = %d after remove, want 0", ix.Len())
	}
}

func TestMemoryIndexUpsertCopiesVector(t *testing.T) {
	ix := NewMemoryIndex()
	ctx := context.Background()

	vec := []float32{1, 0}
	_ = ix.Upsert(ctx, []Point{{ID: "a", Vector: vec}})
	vec[0] = 0
	vec[1] = 1

	hits, err := ix.Search(ctx, []float32{1, 0}, 1)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if math.Abs(float64(hits[0].Similarity)-1) > 1e-6 {
		t.Errorf("stored vector was mutated through the caller's slice")
	}
}

func TestMemoryIndexDimensionMismatch(t *testing.T) {
	ix := NewMemoryIndex()
	ctx := context.Background()

	_ = ix.Upsert(ctx, []Point{{ID: "a", Vector: []float32{1, 0, 0}}})
	if _, err := ix.Search(ctx, []float32{1, 0}, 1); err == nil {
		t.Fatal("expected dimension mismatch error")
	}
}

func TestCosineSimilarityZeroVector(t *testing.T) {
	sim, err := cosineSimilarity([]float32{0, 0}, []float32{1, 0})
	if err != nil {
		t.Fatalf("cosineSimilarity: %v", err)
	}
	if sim != 0 {
		t.Errorf("zero vector similarity = %f, want 0", sim)
	}
}
