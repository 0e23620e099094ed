package storage

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
)

// EmbeddingCache persists chunk vectors keyed by (model_id, checksum).
// The value is a pure function of the key, so concurrent writers racing on
// the same key are harmless: last-writer-wins rewrites an identical vector.
type EmbeddingCache interface {
	// EnsureModel compares the stored model identity against modelID and
	// wipes the whole cache on mismatch. Returns true when the cache was
	// invalidated. Mixing embedding spaces silently is the one failure this
	// table must never allow.
	EnsureModel(ctx context.Context, modelID string) (bool, error)
	// Get returns cached vectors for the given checksums, keyed by checksum.
	Get(ctx context.Context, modelID string, checksums []string) (map[string][]float32, error)
	// Put stores vectors keyed by checksum.
	Put(ctx context.Context, modelID string, vectors map[string][]float32) error
}

// EmbeddingCacheRepo implements EmbeddingCache on sqlite.
type EmbeddingCacheRepo struct {
	db *sql.DB
}

// NewEmbeddingCacheRepo creates a new EmbeddingCacheRepo.
func NewEmbeddingCacheRepo(db *sql.DB) *EmbeddingCacheRepo {
	return &EmbeddingCacheRepo{db: db}
}

// EnsureModel compares the stored model identity and wipes the cache on mismatch.
func (r *EmbeddingCacheRepo) EnsureModel(ctx context.Context, modelID string) (bool, error) {
	var stored string
	err := r.db.QueryRowContext(ctx, "SELECT model_id FROM embedding_model WHERE id = 1").Scan(&stored)
	if err != nil && err != sql.ErrNoRows {
		return false, fmt.Errorf("failed to read embedding model identity: %w", err)
	}

	if err == nil && stored == modelID {
		return false, nil
	}

	tx, txErr := r.db.BeginTx(ctx, nil)
	if txErr != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", txErr)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, "DELETE FROM embedding_cache"); err != nil {
		return false, fmt.Errorf("failed to clear embedding cache: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO embedding_model (id, model_id) VALUES (1, ?)
		 ON CONFLICT(id) DO UPDATE SET model_id = excluded.model_id`,
		modelID,
	); err != nil {
		return false, fmt.Errorf("failed to record embedding model identity: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit model identity: %w", err)
	}

	// A fresh database counts as a silent initialization, not an invalidation.
	return stored != "", nil
}

// Get returns cached vectors for the given checksums.
func (r *EmbeddingCacheRepo) Get(ctx context.Context, modelID string, checksums []string) (map[string][]float32, error) {
	result := make(map[string][]float32, len(checksums))
	if len(checksums) == 0 {
		return result, nil
	}

	query := fmt.Sprintf(
		"SELECT checksum, vector FROM embedding_cache WHERE model_id = ? AND checksum IN (%s)",
		placeholders(len(checksums)))
	args := append([]any{modelID}, toAnySlice(checksums)...)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query embedding cache: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	for rows.Next() {
		var checksum string
		var blob []byte
		if err := rows.Scan(&checksum, &blob); err != nil {
			return nil, fmt.Errorf("failed to scan cached vector: %w", err)
		}
		vec, err := decodeVector(blob)
		if err != nil {
			return nil, fmt.Errorf("corrupt cached vector for %s: %w", checksum, err)
		}
		result[checksum] = vec
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return result, nil
}

// Put stores vectors keyed by checksum.
func (r *EmbeddingCacheRepo) Put(ctx context.Context, modelID string, vectors map[string][]float32) error {
	if len(vectors) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for checksum, vec := range vectors {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO embedding_cache (model_id, checksum, vector) VALUES (?, ?, ?)
			 ON CONFLICT(model_id, checksum) DO UPDATE SET vector = excluded.vector`,
			modelID, checksum, encodeVector(vec),
		)
		if err != nil {
			return fmt.Errorf("failed to store cached vector: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit embedding cache: %w", err)
	}
	return nil
}

// encodeVector serializes a float32 vector as little-endian bytes.
func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// decodeVector deserializes a little-endian float32 vector.
func decodeVector(blob []byte) ([]float32, error) {
	if len(blob)%4 != 0 {
		return nil, fmt.Errorf("vector blob length %d is not a multiple of 4", len(blob))
	}
	vec := make([]float32, len(blob)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return vec, nil
}
