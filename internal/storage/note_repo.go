package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// NoteRecord is the persisted per-note state used for incremental diffing.
type NoteRecord struct {
	Path      string
	Title     string
	Checksum  string
	IndexedAt time.Time
}

// NoteStore defines per-note checksum persistence.
type NoteStore interface {
	// GetChecksum returns the recorded content checksum for a note path.
	// Returns ErrNotFound for notes never indexed.
	GetChecksum(ctx context.Context, path string) (string, error)
	// Upsert records the latest indexed state of a note.
	Upsert(ctx context.Context, note NoteRecord) error
	// Delete removes the record for a vanished note.
	Delete(ctx context.Context, path string) error
	// ListPaths returns every note path currently recorded.
	ListPaths(ctx context.Context) ([]string, error)
}

// NoteRepo implements NoteStore on sqlite.
type NoteRepo struct {
	db *sql.DB
}

// NewNoteRepo creates a new NoteRepo.
func NewNoteRepo(db *sql.DB) *NoteRepo {
	return &NoteRepo{db: db}
}

// GetChecksum returns the recorded content checksum for a note path.
func (r *NoteRepo) GetChecksum(ctx context.Context, path string) (string, error) {
	var checksum string
	err := r.db.QueryRowContext(ctx,
		"SELECT checksum FROM notes WHERE path = ?", path,
	).Scan(&checksum)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to query note checksum: %w", err)
	}
	return checksum, nil
}

// Upsert records the latest indexed state of a note.
func (r *NoteRepo) Upsert(ctx context.Context, note NoteRecord) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO notes (path, title, checksum, indexed_at) VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(path) DO UPDATE SET title = excluded.title, checksum = excluded.checksum, indexed_at = CURRENT_TIMESTAMP`,
		note.Path, note.Title, note.Checksum,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert note: %w", err)
	}
	return nil
}

// Delete removes the record for a vanished note.
func (r *NoteRepo) Delete(ctx context.Context, path string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM notes WHERE path = ?", path)
	if err != nil {
		return fmt.Errorf("failed to delete note: %w", err)
	}
	return nil
}

// ListPaths returns every note path currently recorded.
func (r *NoteRepo) ListPaths(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT path FROM notes ORDER BY path")
	if err != nil {
		return nil, fmt.Errorf("failed to query note paths: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var paths []string
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			return nil, fmt.Errorf("failed to scan note path: %w", err)
		}
		paths = append(paths, path)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return paths, nil
}
