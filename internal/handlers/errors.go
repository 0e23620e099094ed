package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"notefinder/internal/contextutil"
)

// ErrorResponse represents an error response.
//
// swagger:model ErrorResponse
type ErrorResponse struct {
	Error string `json:"error"`
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error: message,
	})
}

// writePipelineError maps retrieval pipeline errors to HTTP status codes.
// Index backends map to 503, external providers to 502, everything else 500.
func writePipelineError(w http.ResponseWriter, ctx context.Context, err error, defaultMsg string) {
	logger := contextutil.LoggerFromContext(ctx)
	logger.ErrorContext(ctx, "pipeline error", "error", err)

	if err == nil {
		writeError(w, http.StatusInternalServerError, defaultMsg)
		return
	}

	errMsg := strings.ToLower(err.Error())

	if strings.Contains(errMsg, "vector search") ||
		strings.Contains(errMsg, "qdrant") ||
		strings.Contains(errMsg, "lexical search") {
		writeError(w, http.StatusServiceUnavailable, "Search index unavailable")
		return
	}

	if strings.Contains(errMsg, "embed") {
		writeError(w, http.StatusBadGateway, "Embedding service error")
		return
	}

	writeError(w, http.StatusInternalServerError, defaultMsg)
}
