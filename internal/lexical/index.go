// Package lexical implements the keyword half of hybrid retrieval: an FTS5
// full-text index over chunk text and note title with bm25 ranking. Only the
// rank position travels downstream; bm25 scores never leave this package, so
// fusion stays immune to score-scale mismatches between indexes.
package lexical

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"notefinder/internal/chunker"
	"notefinder/internal/contextutil"
)

// Hit is a lexical search result: a chunk ID and its 1-based rank position.
type Hit struct {
	ChunkID string
	Rank    int
}

// Index is the FTS5-backed lexical index.
type Index struct {
	db *sql.DB
}

// NewIndex creates a lexical index over the given database. The chunks_fts
// virtual table is created by storage.Migrate.
func NewIndex(db *sql.DB) *Index {
	return &Index{db: db}
}

// Add indexes the given chunks, replacing any rows with the same chunk ID.
func (ix *Index) Add(ctx context.Context, chunks []chunker.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := ix.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, chunk := range chunks {
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM chunks_fts WHERE chunk_id = ?", chunk.ID,
		); err != nil {
			return fmt.Errorf("failed to clear stale fts row: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO chunks_fts (chunk_id, note_title, text) VALUES (?, ?, ?)",
			chunk.ID, chunk.NoteTitle, chunk.Text,
		); err != nil {
			return fmt.Errorf("failed to index chunk: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit lexical index: %w", err)
	}
	return nil
}

// Remove drops the given chunk IDs from the index.
func (ix *Index) Remove(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	query := fmt.Sprintf("DELETE FROM chunks_fts WHERE chunk_id IN (%s)",
		strings.TrimSuffix(strings.Repeat("?,", len(ids)), ","))
	if _, err := ix.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to remove chunks from lexical index: %w", err)
	}
	return nil
}

// Search runs a ranked keyword query and returns up to k hits in bm25 order.
// A query that sanitizes down to nothing returns no hits.
func (ix *Index) Search(ctx context.Context, query string, k int) ([]Hit, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if k <= 0 {
		return nil, fmt.Errorf("k must be greater than 0")
	}

	sanitized := sanitizeQuery(query)
	if sanitized == "" {
		return nil, nil
	}

	rows, err := ix.db.QueryContext(ctx,
		`SELECT chunk_id, bm25(chunks_fts) AS rank
		 FROM chunks_fts
		 WHERE chunks_fts MATCH ?
		 ORDER BY rank
		 LIMIT ?`,
		sanitized, k,
	)
	if err != nil {
		return nil, fmt.Errorf("lexical search failed: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var hits []Hit
	for rows.Next() {
		var chunkID string
		var score float64
		if err := rows.Scan(&chunkID, &score); err != nil {
			return nil, fmt.Errorf("failed to scan lexical hit: %w", err)
		}
		hits = append(hits, Hit{ChunkID: chunkID, Rank: len(hits) + 1})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	logger.DebugContext(ctx, "lexical search completed", "query", sanitized, "hits", len(hits))
	return hits, nil
}

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {}, "but": {}, "by": {},
	"for": {}, "from": {}, "has": {}, "have": {}, "in": {}, "is": {}, "it": {}, "of": {}, "on": {},
	"or": {}, "the": {}, "to": {}, "was": {}, "were": {}, "with": {},
}

// sanitizeQuery turns free text into an FTS5 MATCH expression. Punctuation
// and FTS operators are stripped, stopwords dropped, and the remaining terms
// joined with OR: finding any matching term beats finding nothing.
func sanitizeQuery(query string) string {
	var b strings.Builder
	b.Grow(len(query))
	for _, r := range strings.ToLower(query) {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == ' ' {
			b.WriteRune(r)
		} else if r >= 0x80 {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}

	var quoted []string
	for _, word := range strings.Fields(b.String()) {
		if len(word) < 2 {
			continue
		}
		if _, isStop := stopwords[word]; isStop {
			continue
		}
		quoted = append(quoted, `"`+word+`"`)
	}
	return strings.Join(quoted, " OR ")
}
