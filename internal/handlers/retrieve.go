package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"notefinder/internal/contextutil"
	"notefinder/internal/retrieval"
)

// retriever is the slice of the retrieval pipeline this handler needs.
type retriever interface {
	Retrieve(ctx context.Context, query string) ([]retrieval.Candidate, error)
}

// RetrieveHandler handles raw hybrid search requests. No LLM is involved;
// this endpoint is cheap and suitable for interactive consumers.
type RetrieveHandler struct {
	retriever retriever
}

// NewRetrieveHandler creates a new RetrieveHandler.
func NewRetrieveHandler(r retriever) *RetrieveHandler {
	return &RetrieveHandler{retriever: r}
}

// RetrieveRequest represents the HTTP request payload for hybrid search.
//
// swagger:model RetrieveRequest
type RetrieveRequest struct {
	Query string `json:"query"`
}

// CandidateResponse represents one fused search result.
//
// swagger:model CandidateResponse
type CandidateResponse struct {
	ChunkID     string   `json:"chunk_id"`
	NotePath    string   `json:"note_path"`
	NoteTitle   string   `json:"note_title"`
	HeadingPath []string `json:"heading_path"`
	Text        string   `json:"text"`
	LexicalRank *int     `json:"lexical_rank,omitempty"`
	VectorRank  *int     `json:"vector_rank,omitempty"`
	Similarity  *float64 `json:"similarity,omitempty"`
	RRFScore    float64  `json:"rrf_score"`
}

// RetrieveResponse represents the HTTP response payload for hybrid search.
//
// swagger:model RetrieveResponse
type RetrieveResponse struct {
	Candidates []CandidateResponse `json:"candidates"`
}

// ServeHTTP handles hybrid search requests.
//
// swagger:route POST /api/v1/retrieve retrieve
func (h *RetrieveHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodPost {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req RetrieveRequest
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

	resp := RetrieveResponse{
		Candidates: make([]CandidateResponse, len(candidates)),
	}
	for i, cand := range candidates {
		resp.Candidates[i] = CandidateResponse{
			ChunkID:     cand.ChunkID,
			NotePath:    cand.NotePath,
			NoteTitle:   cand.NoteTitle,
			HeadingPath: cand.HeadingPath,
			Text:        cand.Text,
			LexicalRank: cand.LexicalRank,
			VectorRank:  cand.VectorRank,
			Similarity:  cand.Similarity,
			RRFScore:    cand.RRFScore,
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}
