package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"notefinder/internal/contextutil"
)

// chunkCounter reports how many chunks the store holds.
type chunkCounter interface {
	Count(ctx context.Context) (int, error)
}

// HealthHandler handles HTTP requests for health checks. The chunk store is
// the critical dependency; the embedding and judge providers are checked
// lazily by the endpoints that use them.
type HealthHandler struct {
	chunks       chunkCounter
	checkTimeout time.Duration
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(chunks chunkCounter) *HealthHandler {
	return &HealthHandler{
		chunks:       chunks,
		checkTimeout: 5 * time.Second,
	}
}

// HealthResponse represents the health check response.
//
// swagger:model HealthResponse
type HealthResponse struct {
	// Overall health status: "healthy" or "unhealthy"
	Status string `json:"status"`

	// Timestamp of the health check
	Timestamp string `json:"timestamp"`

	// Number of indexed chunks
	ChunkCount int `json:"chunk_count"`
}

// ServeHTTP handles health check requests.
//
// swagger:route GET /api/v1/health health
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodGet {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	checkCtx, cancel := context.WithTimeout(ctx, h.checkTimeout)
	defer cancel()

	status := "healthy"
	httpStatus := http.StatusOK

	count, err := h.chunks.Count(checkCtx)
	if err != nil {
		logger.WarnContext(ctx, "chunk store health check failed", "error", err)
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	}

	response := HealthResponse{
		Status:     status,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		ChunkCount: count,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		logger.ErrorContext(ctx, "failed to encode health response", "error", err)
	}
}
