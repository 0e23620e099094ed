// Package retrieval implements hybrid search: the query is run against the
// lexical and vector indexes in parallel and the two rankings are fused with
// reciprocal rank fusion. Fusion is rank-based only; bm25 scores and cosine
// similarities are never compared against each other directly.
package retrieval

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"notefinder/internal/contextutil"
	"notefinder/internal/lexical"
	"notefinder/internal/storage"
	"notefinder/internal/vectorindex"
)

// rrfK dampens the weight of top ranks so a single first place cannot
// dominate consistent mid-list agreement between the two indexes.
const rrfK = 60

// Candidate is a fused search result carrying provenance from both indexes.
// A nil rank means the chunk did not appear in that index's top k.
type Candidate struct {
	ChunkID     string
	NotePath    string
	NoteTitle   string
	HeadingPath []string
	Text        string

	LexicalRank *int
	VectorRank  *int
	Similarity  *float64
	RRFScore    float64
}

// queryEmbedder turns a query string into a vector.
type queryEmbedder interface {
	EmbedQuery(ctx context.Context, query string) ([]float32, error)
}

// lexicalSearcher is the keyword half of the hybrid pair.
type lexicalSearcher interface {
	Search(ctx context.Context, query string, k int) ([]lexical.Hit, error)
}

// Retriever runs hybrid retrieval over both indexes.
type Retriever struct {
	embedder queryEmbedder
	lexical  lexicalSearcher
	vector   vectorindex.Index
	chunks   storage.ChunkStore

	kLex           int
	kVec           int
	similarityGate float64
}

// New creates a Retriever.
func New(
	embedder queryEmbedder,
	lex lexicalSearcher,
	vec vectorindex.Index,
	chunks storage.ChunkStore,
	kLex, kVec int,
	similarityGate float64,
) *Retriever {
	return &Retriever{
		embedder:       embedder,
		lexical:        lex,
		vector:         vec,
		chunks:         chunks,
		kLex:           kLex,
		kVec:           kVec,
		similarityGate: similarityGate,
	}
}

// Retrieve fuses lexical and vector results for the query and returns
// candidates in descending fused order. Vector-only candidates below the
// similarity gate are dropped; lexical hits always survive gating because an
// exact term match is meaningful regardless of embedding distance.
func (r *Retriever) Retrieve(ctx context.Context, query string) ([]Candidate, error) {
	logger := contextutil.LoggerFromContext(ctx)

	queryVector, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	var lexHits []lexical.Hit
	var vecHits []vectorindex.Hit

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		lexHits, err = r.lexical.Search(gctx, query, r.kLex)
		if err != nil {
			return fmt.Errorf("lexical search failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		vecHits, err = r.vector.Search(gctx, queryVector, r.kVec)
		if err != nil {
			return fmt.Errorf("vector search failed: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	fused := r.fuse(lexHits, vecHits)
	if len(fused) == 0 {
		return nil, nil
	}

	ids := make([]string, len(fused))
	for n, cand := range fused {
		ids[n] = cand.ChunkID
	}
	stored, err := r.chunks.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load chunk metadata: %w", err)
	}

	candidates := make([]Candidate, 0, len(fused))
	for _, cand := range fused {
		chunk, ok := stored[cand.ChunkID]
		if !ok {
			// Index entry with no backing chunk record. Stale state
			// is repaired by the next sync; skip rather than fail.
			logger.WarnContext(ctx, "index hit has no stored chunk", "chunk_id", cand.ChunkID)
			continue
		}
		cand.NotePath = chunk.NotePath
		cand.NoteTitle = chunk.NoteTitle
		cand.HeadingPath = chunk.HeadingPath
		cand.Text = chunk.Text
		candidates = append(candidates, cand)
	}
	return candidates, nil
}

func (r *Retriever) fuse(lexHits []lexical.Hit, vecHits []vectorindex.Hit) []Candidate {
	byID := make(map[string]*Candidate, len(lexHits)+len(vecHits))

	for _, hit := range lexHits {
		rank := hit.Rank
		byID[hit.ChunkID] = &Candidate{
			ChunkID:     hit.ChunkID,
			LexicalRank: &rank,
			RRFScore:    rrf(rank),
		}
	}
	for _, hit := range vecHits {
		rank := hit.Rank
		similarity := float64(hit.Similarity)
		cand, ok := byID[hit.ChunkID]
		if !ok {
			cand = &Candidate{ChunkID: hit.ChunkID}
			byID[hit.ChunkID] = cand
		}
		cand.VectorRank = &rank
		cand.Similarity = &similarity
		cand.RRFScore += rrf(rank)
	}

	fused := make([]Candidate, 0, len(byID))
	for _, cand := range byID {
		if r.gated(*cand) {
			continue
		}
		fused = append(fused, *cand)
	}

	sort.Slice(fused, func(a, b int) bool {
		if fused[a].RRFScore != fused[b].RRFScore {
			return fused[a].RRFScore > fused[b].RRFScore
		}
		if ra, rb := bestRank(fused[a]), bestRank(fused[b]); ra != rb {
			return ra < rb
		}
		return fused[a].ChunkID < fused[b].ChunkID
	})
	return fused
}

// gated reports whether a candidate is dropped by the similarity gate.
// Only vector-only candidates are subject to gating.
func (r *Retriever) gated(cand Candidate) bool {
	if cand.LexicalRank != nil {
		return false
	}
	return cand.Similarity != nil && *cand.Similarity < r.similarityGate
}

func rrf(rank int) float64 {
	return 1.0 / float64(rrfK+rank)
}

func bestRank(cand Candidate) int {
	best := int(^uint(0) >> 1)
	if cand.LexicalRank != nil {
		best = *cand.LexicalRank
	}
	if cand.VectorRank != nil && *cand.VectorRank < best {
		best = *cand.VectorRank
	}
	return best
}
