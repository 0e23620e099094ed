package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"notefinder/internal/citation"
	"notefinder/internal/contextutil"
	"notefinder/internal/rerank"
	"notefinder/internal/retrieval"
)

// reranker is the slice of the rerank stage this handler needs.
type reranker interface {
	Rerank(ctx context.Context, query string, candidates []retrieval.Candidate) ([]rerank.RankedCandidate, rerank.Label)
}

// AskHandler runs the full read path: hybrid retrieval, LLM reranking, and
// citation assembly.
type AskHandler struct {
	retriever retriever
	reranker  reranker
}

// NewAskHandler creates a new AskHandler.
func NewAskHandler(r retriever, rr reranker) *AskHandler {
	return &AskHandler{retriever: r, reranker: rr}
}

// AskRequest represents the HTTP request payload for full-pipeline queries.
//
// swagger:model AskRequest
type AskRequest struct {
	Query string `json:"query"`
}

// AskResponse represents the HTTP response payload for full-pipeline queries.
//
// swagger:model AskResponse
type AskResponse struct {
	// Citations for the final ranked chunks, best first.
	Citations []citation.Citation `json:"citations"`

	// RetrievalLabel classifies the overall outcome: PASS, NO_RESULTS,
	// IRRELEVANT, or HALLUCINATION_RISK.
	RetrievalLabel string `json:"retrieval_label"`

	// RerankStatus is "ok" when the judge scored the candidates and
	// "fallback" when similarity-derived scores were used instead.
	RerankStatus string `json:"rerank_status,omitempty"`
}

// ServeHTTP handles full-pipeline queries.
//
// swagger:route POST /api/v1/ask ask
func (h *AskHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodPost {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Query == "" {
		logger.WarnContext(ctx, "empty query in request")
		writeError(w, http.StatusBadRequest, "Query is required")
		return
	}

	candidates, err := h.retriever.Retrieve(ctx, req.Query)
	if err != nil {
		writePipelineError(w, ctx, err, "Failed to retrieve")
		return
	}

	ranked, label := h.reranker.Rerank(ctx, req.Query, candidates)

	resp := AskResponse{
		Citations:      citation.Assemble(ranked),
		RetrievalLabel: string(label),
	}
	if len(ranked) > 0 {
		resp.RerankStatus = string(ranked[0].Status)
	}
	if resp.Citations == nil {
		resp.Citations = []citation.Citation{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}
