// Package rerank scores fused retrieval candidates with an LLM judge and
// degrades deterministically when the judge misbehaves. The fallback chain
// guarantees a usable ranking for every query; the status field makes a
// degraded ranking visible to the caller instead of silently blending in.
package rerank

import (
	"context"
	"sort"
	"time"

	"notefinder/internal/contextutil"
	"notefinder/internal/judge"
	"notefinder/internal/retrieval"
)

// Status reports how the rerank scores were obtained.
type Status string

const (
	// StatusOK means the judge response was usable, directly or after
	// pattern recovery.
	StatusOK Status = "ok"
	// StatusFallback means the judge failed and scores were derived from
	// vector similarity instead.
	StatusFallback Status = "fallback"
)

// Label classifies the overall quality of a retrieval outcome.
type Label string

const (
	LabelPass              Label = "PASS"
	LabelNoResults         Label = "NO_RESULTS"
	LabelIrrelevant        Label = "IRRELEVANT"
	LabelHallucinationRisk Label = "HALLUCINATION_RISK"
)

// RankedCandidate is a retrieval candidate with its judge score attached.
type RankedCandidate struct {
	retrieval.Candidate
	RerankScore float64
	Status      Status
}

// Reranker scores candidates with a judge provider.
type Reranker struct {
	judge judge.Provider

	rerankTopK              int
	topN                    int
	judgeTimeout            time.Duration
	hallucinationSimilarity float64
	hallucinationScore      float64
	irrelevantScore         float64
}

// Config holds Reranker tunables.
type Config struct {
	RerankTopK              int
	TopN                    int
	JudgeTimeout            time.Duration
	HallucinationSimilarity float64
	HallucinationScore      float64
	IrrelevantScore         float64
}

// New creates a Reranker.
func New(j judge.Provider, cfg Config) *Reranker {
	return &Reranker{
		judge:                   j,
		rerankTopK:              cfg.RerankTopK,
		topN:                    cfg.TopN,
		judgeTimeout:            cfg.JudgeTimeout,
		hallucinationSimilarity: cfg.HallucinationSimilarity,
		hallucinationScore:      cfg.HallucinationScore,
		irrelevantScore:         cfg.IrrelevantScore,
	}
}

// Rerank scores the top candidates by fused order and returns the top n in
// descending rerank order along with a retrieval label. Candidates beyond
// the judge window are dropped; they already lost on fused score.
func (r *Reranker) Rerank(ctx context.Context, query string, candidates []retrieval.Candidate) ([]RankedCandidate, Label) {
	if len(candidates) == 0 {
		return nil, LabelNoResults
	}

	window := candidates
	if len(window) > r.rerankTopK {
		window = window[:r.rerankTopK]
	}

	scores, status := r.score(ctx, query, window)

	ranked := make([]RankedCandidate, len(window))
	for n, cand := range window {
		ranked[n] = RankedCandidate{
			Candidate:   cand,
			RerankScore: scores[n],
			Status:      status,
		}
	}

	sort.SliceStable(ranked, func(a, b int) bool {
		if ranked[a].RerankScore != ranked[b].RerankScore {
			return ranked[a].RerankScore > ranked[b].RerankScore
		}
		return ranked[a].RRFScore > ranked[b].RRFScore
	})
	if len(ranked) > r.topN {
		ranked = ranked[:r.topN]
	}

	return ranked, r.label(ranked)
}

// score runs the judge with a hard timeout and walks the fallback chain:
// strict JSON first, pattern recovery second, similarity-derived scores last.
func (r *Reranker) score(ctx context.Context, query string, window []retrieval.Candidate) ([]float64, Status) {
	logger := contextutil.LoggerFromContext(ctx)

	passages := make([]string, len(window))
	for n, cand := range window {
		passages[n] = cand.Text
	}

	judgeCtx, cancel := context.WithTimeout(ctx, r.judgeTimeout)
	defer cancel()

	raw, err := r.judge.Score(judgeCtx, query, passages)
	if err != nil {
		logger.WarnContext(ctx, "judge call failed, using similarity fallback", "error", err)
		return similarityScores(window), StatusFallback
	}

	if scores, ok := parseScores(raw, len(window)); ok {
		return scores, StatusOK
	}
	if scores, ok := recoverScores(raw, len(window)); ok {
		logger.WarnContext(ctx, "judge response was not valid JSON, recovered scores by pattern")
		return scores, StatusOK
	}

	logger.WarnContext(ctx, "judge response unusable, using similarity fallback", "response_length", len(raw))
	return similarityScores(window), StatusFallback
}

// similarityScores maps cosine similarity onto the judge's 0-10 scale.
// Candidates without a vector hit score zero, which keeps them below any
// candidate the vector index actually matched.
func similarityScores(window []retrieval.Candidate) []float64 {
	scores := make([]float64, len(window))
	for n, cand := range window {
		if cand.Similarity != nil {
			scores[n] = *cand.Similarity * 10
		}
	}
	return scores
}

// label classifies the final ranked set. Hallucination risk is checked
// before general irrelevance: high similarity with a low judge score is the
// specific case where an answer would sound grounded without being so.
func (r *Reranker) label(ranked []RankedCandidate) Label {
	if len(ranked) == 0 {
		return LabelNoResults
	}

	best := ranked[0]
	if best.Similarity != nil &&
		*best.Similarity > r.hallucinationSimilarity &&
		best.RerankScore < r.hallucinationScore {
		return LabelHallucinationRisk
	}
	if best.RerankScore < r.irrelevantScore {
		return LabelIrrelevant
	}
	return LabelPass
}
