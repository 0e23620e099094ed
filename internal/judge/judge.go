// Package judge is the LLM-as-judge capability used for reranking. It is
// never consulted for retrieval correctness: a judge failure degrades ranking
// quality, it does not fail a query.
package judge

import "context"

// Provider scores candidate passages against a query. Implementations
// return the raw model response; the reranker owns parsing and every
// fallback decision, so a provider stays a dumb transport.
type Provider interface {
	Score(ctx context.Context, query string, passages []string) (string, error)
}
