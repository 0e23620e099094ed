package vectorindex

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_index.go -package=mocks notefinder/internal/vectorindex Index

import "context"

// Point is a chunk vector with metadata.
type Point struct {
	ID     string
	Vector []float32
	Meta   map[string]any
}

// Hit is a vector search result. Rank feeds rank fusion; Similarity is the
// raw cosine similarity that feeds the gating step, so both must be present.
type Hit struct {
	ChunkID    string
	Rank       int
	Similarity float32
}

// Index defines the nearest-neighbor index over chunk embeddings.
type Index interface {
	// Upsert inserts or updates points.
	Upsert(ctx context.Context, points []Point) error
	// Remove deletes points by chunk ID.
	Remove(ctx context.Context, ids []string) error
	// Search returns up to k nearest points in descending similarity order.
	Search(ctx context.Context, query []float32, k int) ([]Hit, error)
}
