package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"notefinder/internal/chunker"
)

// ChunkStore defines chunk metadata persistence. The chunk table is the
// system of record that both indexes hang off: the lexical index and the
// vector index only ever reference chunk IDs stored here.
type ChunkStore interface {
	// Upsert writes chunk records. Existing IDs are replaced.
	Upsert(ctx context.Context, chunks []chunker.Chunk) error
	// DeleteByIDs removes chunk records by ID.
	DeleteByIDs(ctx context.Context, ids []string) error
	// ListByNote returns all chunks of a note ordered by chunk_index.
	ListByNote(ctx context.Context, notePath string) ([]chunker.Chunk, error)
	// GetByIDs returns the chunks for the given IDs, keyed by ID.
	// Missing IDs are simply absent from the result.
	GetByIDs(ctx context.Context, ids []string) (map[string]chunker.Chunk, error)
	// ListAll returns every stored chunk. Used to rebuild a volatile
	// vector index from persistent state on startup.
	ListAll(ctx context.Context) ([]chunker.Chunk, error)
	// Count returns the total number of stored chunks.
	Count(ctx context.Context) (int, error)
}

// ChunkRepo implements ChunkStore on sqlite.
type ChunkRepo struct {
	db *sql.DB
}

// NewChunkRepo creates a new ChunkRepo.
func NewChunkRepo(db *sql.DB) *ChunkRepo {
	return &ChunkRepo{db: db}
}

// Upsert writes chunk records. Existing IDs are replaced.
func (r *ChunkRepo) Upsert(ctx context.Context, chunks []chunker.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, chunk := range chunks {
		headingPath, err := json.Marshal(chunk.HeadingPath)
		if err != nil {
			return fmt.Errorf("failed to encode heading path: %w", err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO chunks (id, note_path, note_title, heading_path, chunk_index, text, checksum, token_count)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET
				note_path = excluded.note_path,
				note_title = excluded.note_title,
				heading_path = excluded.heading_path,
				chunk_index = excluded.chunk_index,
				text = excluded.text,
				checksum = excluded.checksum,
				token_count = excluded.token_count`,
			chunk.ID, chunk.NotePath, chunk.NoteTitle, string(headingPath),
			chunk.Index, chunk.Text, chunk.Checksum, chunk.TokenCount,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert chunk: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit chunk upsert: %w", err)
	}
	return nil
}

// DeleteByIDs removes chunk records by ID.
func (r *ChunkRepo) DeleteByIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	query := fmt.Sprintf("DELETE FROM chunks WHERE id IN (%s)", placeholders(len(ids)))
	_, err := r.db.ExecContext(ctx, query, toAnySlice(ids)...)
	if err != nil {
		return fmt.Errorf("failed to delete chunks: %w", err)
	}
	return nil
}

// ListByNote returns all chunks of a note ordered by chunk_index.
// Returns an empty slice when the note has no chunks (not an error).
func (r *ChunkRepo) ListByNote(ctx context.Context, notePath string) ([]chunker.Chunk, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, note_path, note_title, heading_path, chunk_index, text, checksum, token_count
		 FROM chunks WHERE note_path = ? ORDER BY chunk_index`,
		notePath,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks by note: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var chunks []chunker.Chunk
	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return chunks, nil
}

// GetByIDs returns the chunks for the given IDs, keyed by ID.
func (r *ChunkRepo) GetByIDs(ctx context.Context, ids []string) (map[string]chunker.Chunk, error) {
	result := make(map[string]chunker.Chunk, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	query := fmt.Sprintf(
		`SELECT id, note_path, note_title, heading_path, chunk_index, text, checksum, token_count
		 FROM chunks WHERE id IN (%s)`, placeholders(len(ids)))
	rows, err := r.db.QueryContext(ctx, query, toAnySlice(ids)...)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks by IDs: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		result[chunk.ID] = chunk
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return result, nil
}

// ListAll returns every stored chunk ordered by note path and chunk_index.
func (r *ChunkRepo) ListAll(ctx context.Context) ([]chunker.Chunk, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, note_path, note_title, heading_path, chunk_index, text, checksum, token_count
		 FROM chunks ORDER BY note_path, chunk_index`)
	if err != nil {
		return nil, fmt.Errorf("failed to query all chunks: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var chunks []chunker.Chunk
	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return chunks, nil
}

// Count returns the total number of stored chunks.
func (r *ChunkRepo) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return count, nil
}

func scanChunk(rows *sql.Rows) (chunker.Chunk, error) {
	var chunk chunker.Chunk
	var headingPath string
	if err := rows.Scan(&chunk.ID, &chunk.NotePath, &chunk.NoteTitle, &headingPath,
		&chunk.Index, &chunk.Text, &chunk.Checksum, &chunk.TokenCount); err != nil {
		return chunker.Chunk{}, fmt.Errorf("failed to scan chunk: %w", err)
	}
	if err := json.Unmarshal([]byte(headingPath), &chunk.HeadingPath); err != nil {
		return chunker.Chunk{}, fmt.Errorf("failed to decode heading path: %w", err)
	}
	return chunk, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func toAnySlice(ids []string) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}
