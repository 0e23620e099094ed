// Package indexer drives incremental index maintenance. It diffs the note
// source against persisted state at two levels: note checksums skip untouched
// notes entirely, and content-addressed chunk IDs confine work within a
// changed note to the chunks that actually changed.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"notefinder/internal/chunker"
	"notefinder/internal/contextutil"
	"notefinder/internal/lexical"
	"notefinder/internal/notes"
	"notefinder/internal/storage"
	"notefinder/internal/vectorindex"
)

// ErrSyncInProgress is returned when a sync is requested while another one
// is still running. Sync is single-flight; callers retry later.
var ErrSyncInProgress = errors.New("sync already in progress")

// ErrChunkIdentity is returned when two chunks share an ID but carry
// different checksums. The ID is derived from the chunk content, so this
// indicates corrupted state and aborts the sync.
var ErrChunkIdentity = errors.New("chunk identity collision")

// SyncReport summarizes one sync pass.
type SyncReport struct {
	NotesSeen       int `json:"notes_seen"`
	NotesUnchanged  int `json:"notes_unchanged"`
	NotesUpserted   int `json:"notes_upserted"`
	NotesDeleted    int `json:"notes_deleted"`
	NotesFailed     int `json:"notes_failed"`
	ChunksUpserted  int `json:"chunks_upserted"`
	ChunksDeleted   int `json:"chunks_deleted"`
	ChunksUnchanged int `json:"chunks_unchanged"`
}

// chunkEmbedder produces vectors for chunks, keyed by chunk ID.
type chunkEmbedder interface {
	EmbedChunks(ctx context.Context, chunks []chunker.Chunk) (map[string][]float32, error)
}

// Indexer reconciles scanned notes with the chunk store and both indexes.
type Indexer struct {
	chunker  *chunker.Chunker
	noteRepo storage.NoteStore
	chunks   storage.ChunkStore
	embedder chunkEmbedder
	lexical  *lexical.Index
	vector   vectorindex.Index

	mu sync.Mutex
}

// New creates an Indexer.
func New(
	ck *chunker.Chunker,
	noteRepo storage.NoteStore,
	chunks storage.ChunkStore,
	embedder chunkEmbedder,
	lex *lexical.Index,
	vec vectorindex.Index,
) *Indexer {
	return &Indexer{
		chunker:  ck,
		noteRepo: noteRepo,
		chunks:   chunks,
		embedder: embedder,
		lexical:  lex,
		vector:   vec,
	}
}

// Sync reconciles the given notes against persisted state. Notes whose raw
// checksum matches the stored one are skipped. Notes that were indexed before
// but are absent from the input are removed from all indexes. A failure on
// one note is logged and counted; the note's stored checksum is not advanced,
// so the next sync retries it. Only identity collisions and context
// cancellation abort the whole pass.
func (i *Indexer) Sync(ctx context.Context, scanned []notes.Note) (SyncReport, error) {
	if !i.mu.TryLock() {
		return SyncReport{}, ErrSyncInProgress
	}
	defer i.mu.Unlock()

	logger := contextutil.LoggerFromContext(ctx)
	start := time.Now()

	var report SyncReport
	report.NotesSeen = len(scanned)

	seen := make(map[string]struct{}, len(scanned))
	for _, note := range scanned {
		seen[note.Path] = struct{}{}
		if err := i.syncNote(ctx, note, &report); err != nil {
			if errors.Is(err, ErrChunkIdentity) || ctx.Err() != nil {
				return report, err
			}
			report.NotesFailed++
			logger.ErrorContext(ctx, "failed to sync note", "path", note.Path, "error", err)
		}
	}

	stored, err := i.noteRepo.ListPaths(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to list indexed notes: %w", err)
	}
	for _, path := range stored {
		if _, ok := seen[path]; ok {
			continue
		}
		if err := i.deleteNote(ctx, path, &report); err != nil {
			if ctx.Err() != nil {
				return report, err
			}
			report.NotesFailed++
			logger.ErrorContext(ctx, "failed to remove deleted note", "path", path, "error", err)
			continue
		}
		report.NotesDeleted++
	}

	logger.InfoContext(ctx, "sync complete",
		"duration", time.Since(start).Round(time.Millisecond).String(),
		"seen", report.NotesSeen,
		"unchanged", report.NotesUnchanged,
		"upserted", report.NotesUpserted,
		"deleted", report.NotesDeleted,
		"failed", report.NotesFailed,
		"chunks_upserted", report.ChunksUpserted,
		"chunks_deleted", report.ChunksDeleted,
	)
	return report, nil
}

func (i *Indexer) syncNote(ctx context.Context, note notes.Note, report *SyncReport) error {
	checksum := chunker.Checksum(note.RawText)

	prev, err := i.noteRepo.GetChecksum(ctx, note.Path)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("failed to load note checksum: %w", err)
	}
	if err == nil && prev == checksum {
		report.NotesUnchanged++
		return nil
	}

	fresh := i.chunker.Chunk(note)
	existing, err := i.chunks.ListByNote(ctx, note.Path)
	if err != nil {
		return fmt.Errorf("failed to list stored chunks: %w", err)
	}

	existingByID := make(map[string]chunker.Chunk, len(existing))
	for _, chunk := range existing {
		existingByID[chunk.ID] = chunk
	}

	var toUpsert []chunker.Chunk
	freshIDs := make(map[string]struct{}, len(fresh))
	for _, chunk := range fresh {
		freshIDs[chunk.ID] = struct{}{}
		old, ok := existingByID[chunk.ID]
		if !ok {
			toUpsert = append(toUpsert, chunk)
			continue
		}
		if old.Checksum != chunk.Checksum {
			return fmt.Errorf("chunk %s in note %s: %w", chunk.ID, note.Path, ErrChunkIdentity)
		}
		report.ChunksUnchanged++
	}

	var toDelete []string
	for _, chunk := range existing {
		if _, ok := freshIDs[chunk.ID]; !ok {
			toDelete = append(toDelete, chunk.ID)
		}
	}

	// Embed before touching any index so a provider failure leaves the
	// previous state fully intact.
	vectors, err := i.embedder.EmbedChunks(ctx, toUpsert)
	if err != nil {
		return fmt.Errorf("failed to embed chunks: %w", err)
	}

	if err := i.removeChunks(ctx, toDelete); err != nil {
		return err
	}
	if err := i.addChunks(ctx, toUpsert, vectors); err != nil {
		return err
	}

	// Advancing the note checksum is the last step. If anything above
	// failed the note is retried wholesale on the next sync, which is
	// safe because every index write is idempotent by chunk ID.
	if err := i.noteRepo.Upsert(ctx, storage.NoteRecord{
		Path:      note.Path,
		Title:     note.Title,
		Checksum:  checksum,
		IndexedAt: time.Now().UTC(),
	}); err != nil {
		return fmt.Errorf("failed to record note checksum: %w", err)
	}

	report.NotesUpserted++
	report.ChunksUpserted += len(toUpsert)
	report.ChunksDeleted += len(toDelete)
	return nil
}

func (i *Indexer) deleteNote(ctx context.Context, path string, report *SyncReport) error {
	existing, err := i.chunks.ListByNote(ctx, path)
	if err != nil {
		return fmt.Errorf("failed to list stored chunks: %w", err)
	}
	ids := make([]string, len(existing))
	for n, chunk := range existing {
		ids[n] = chunk.ID
	}
	if err := i.removeChunks(ctx, ids); err != nil {
		return err
	}
	if err := i.noteRepo.Delete(ctx, path); err != nil {
		return fmt.Errorf("failed to delete note record: %w", err)
	}
	report.ChunksDeleted += len(ids)
	return nil
}

func (i *Indexer) removeChunks(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := i.vector.Remove(ctx, ids); err != nil {
		return fmt.Errorf("failed to remove vectors: %w", err)
	}
	if err := i.lexical.Remove(ctx, ids); err != nil {
		return fmt.Errorf("failed to remove lexical entries: %w", err)
	}
	if err := i.chunks.DeleteByIDs(ctx, ids); err != nil {
		return fmt.Errorf("failed to delete chunk records: %w", err)
	}
	return nil
}

func (i *Indexer) addChunks(ctx context.Context, chunks []chunker.Chunk, vectors map[string][]float32) error {
	if len(chunks) == 0 {
		return nil
	}
	if err := i.lexical.Add(ctx, chunks); err != nil {
		return fmt.Errorf("failed to index chunks lexically: %w", err)
	}
	if err := i.upsertVectors(ctx, chunks, vectors); err != nil {
		return err
	}
	// Chunk rows commit last. The next pass diffs against this table, so a
	// chunk only counts as indexed once both indexes hold it; a retry after
	// an index failure re-applies the same idempotent writes.
	if err := i.chunks.Upsert(ctx, chunks); err != nil {
		return fmt.Errorf("failed to store chunk records: %w", err)
	}
	return nil
}

// WarmVector repopulates the vector index from the chunk store. The memory
// backend starts empty on every boot; vectors come from the embedding cache
// so no provider calls are made for chunks embedded before.
func (i *Indexer) WarmVector(ctx context.Context) (int, error) {
	chunks, err := i.chunks.ListAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list stored chunks: %w", err)
	}
	if len(chunks) == 0 {
		return 0, nil
	}
	vectors, err := i.embedder.EmbedChunks(ctx, chunks)
	if err != nil {
		return 0, fmt.Errorf("failed to embed stored chunks: %w", err)
	}
	if err := i.upsertVectors(ctx, chunks, vectors); err != nil {
		return 0, err
	}
	return len(chunks), nil
}

func (i *Indexer) upsertVectors(ctx context.Context, chunks []chunker.Chunk, vectors map[string][]float32) error {
	points := make([]vectorindex.Point, 0, len(chunks))
	for _, chunk := range chunks {
		vector, ok := vectors[chunk.ID]
		if !ok {
			return fmt.Errorf("no vector produced for chunk %s", chunk.ID)
		}
		points = append(points, vectorindex.Point{
			ID:     chunk.ID,
			Vector: vector,
			Meta: map[string]any{
				"note_path":   chunk.NotePath,
				"note_title":  chunk.NoteTitle,
				"chunk_index": chunk.Index,
			},
		})
	}
	if err := i.vector.Upsert(ctx, points); err != nil {
		return fmt.Errorf("failed to upsert vectors: %w", err)
	}
	return nil
}
