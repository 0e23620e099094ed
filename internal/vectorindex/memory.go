package vectorindex

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// MemoryIndex is a brute-force cosine similarity index held in memory.
// It satisfies the same contract as the Qdrant backend and exists for tests
// and for running the service without external infrastructure. Contents do
// not survive a restart; the indexer rebuilds it from storage on boot.
type MemoryIndex struct {
	mu      sync.RWMutex
	vectors map[string][]float32
}

// NewMemoryIndex creates an empty in-memory vector index.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{vectors: make(map[string][]float32)}
}

// Upsert inserts or updates points.
func (ix *MemoryIndex) Upsert(ctx context.Context, points []Point) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	for _, point := range points {
		vec := make([]float32, len(point.Vector))
		copy(vec, point.Vector)
		ix.vectors[point.ID] = vec
	}
	return nil
}

// Remove deletes points by chunk ID.
func (ix *MemoryIndex) Remove(ctx context.Context, ids []string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	for _, id := range ids {
		delete(ix.vectors, id)
	}
	return nil
}

// Search scans every stored vector and returns the k most similar.
// Ties are broken by chunk ID so results are deterministic.
func (ix *MemoryIndex) Search(ctx context.Context, query []float32, k int) ([]Hit, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be greater than 0")
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	type scored struct {
		id  string
		sim float32
	}
	results := make([]scored, 0, len(ix.vectors))
	for id, vec := range ix.vectors {
		sim, err := cosineSimilarity(query, vec)
		if err != nil {
			return nil, err
		}
		results = append(results, scored{id: id, sim: sim})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].sim != results[j].sim {
			return results[i].sim > results[j].sim
		}
		return results[i].id < results[j].id
	})

	if len(results) > k {
		results = results[:k]
	}

	hits := make([]Hit, len(results))
	for i, r := range results {
		hits[i] = Hit{ChunkID: r.id, Rank: i + 1, Similarity: r.sim}
	}
	return hits, nil
}

// Len returns the number of stored vectors.
func (ix *MemoryIndex) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.vectors)
}

// cosineSimilarity computes the cosine of the angle between two vectors.
func cosineSimilarity(a, b []float32) (float32, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vector dimension mismatch: %d vs %d", len(a), len(b))
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0, nil
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB))), nil
}
