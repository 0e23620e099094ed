package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"notefinder/internal/contextutil"
	"notefinder/internal/indexer"
	"notefinder/internal/notes"
)

// noteSource lists the notes to reconcile against.
type noteSource interface {
	Scan(ctx context.Context) ([]notes.Note, error)
}

// syncer runs one reconciliation pass.
type syncer interface {
	Sync(ctx context.Context, scanned []notes.Note) (indexer.SyncReport, error)
}

// SyncHandler triggers an indexing pass over the note source. Syncs are
// single-flight; a request arriving while one runs gets a 409.
type SyncHandler struct {
	source  noteSource
	indexer syncer
}

// NewSyncHandler creates a new SyncHandler.
func NewSyncHandler(source noteSource, idx syncer) *SyncHandler {
	return &SyncHandler{source: source, indexer: idx}
}

// SyncResponse represents the HTTP response payload for a sync pass.
//
// swagger:model SyncResponse
type SyncResponse struct {
	Report indexer.SyncReport `json:"report"`
}

// ServeHTTP handles sync requests.
//
// swagger:route POST /api/v1/sync sync
func (h *SyncHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodPost {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	scanned, err := h.source.Scan(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "failed to scan note source", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to scan note source")
		return
	}

	report, err := h.indexer.Sync(ctx, scanned)
	if err != nil {
		if errors.Is(err, indexer.ErrSyncInProgress) {
			writeError(w, http.StatusConflict, "Sync already in progress")
			return
		}
		logger.ErrorContext(ctx, "sync failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Sync failed")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(SyncResponse{Report: report}); err != nil {
		logger.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}
