// Package embed maps chunk text to fixed-length vectors. The Provider
// interface is a narrow capability boundary so local models, remote APIs and
// mocks satisfy it interchangeably; nothing in the core knows which vendor is
// behind it.
package embed

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_provider.go -package=mocks notefinder/internal/embed Provider

import "context"

// Provider turns texts into embedding vectors.
type Provider interface {
	// Embed returns one vector per input text, in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	// ModelID identifies the embedding space: model name plus
	// dimensionality. Vectors from different model IDs must never mix.
	ModelID() string
}
