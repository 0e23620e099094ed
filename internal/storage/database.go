package storage

import (
	"database/sql"
	"errors"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// New opens a SQLite database at the given path.
// WAL mode keeps readers unblocked while an indexing pass writes, which is
// what lets queries run concurrently with a sync.
func New(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	pragmas := []string{
		"PRAGMA foreign_keys = ON;",
		"PRAGMA journal_mode = WAL;",
		"PRAGMA busy_timeout = 5000;",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// Migrate creates the required tables. Idempotent.
func Migrate(db *sql.DB) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS notes (
			path TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			checksum TEXT NOT NULL,
			indexed_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS chunks (
			id TEXT PRIMARY KEY,
			note_path TEXT NOT NULL,
			note_title TEXT NOT NULL,
			heading_path TEXT NOT NULL,
			chunk_index INTEGER NOT NULL,
			text TEXT NOT NULL,
			checksum TEXT NOT NULL,
			token_count INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_chunks_note_path ON chunks(note_path);`,
		// FTS5 for keyword search over chunk text and note title (hybrid
		// with vector similarity).
		`CREATE VIRTUAL TABLE IF NOT EXISTS chunks_fts USING fts5(
			chunk_id UNINDEXED,
			note_title,
			text,
			tokenize = 'porter unicode61'
		);`,
		`CREATE TABLE IF NOT EXISTS embedding_cache (
			model_id TEXT NOT NULL,
			checksum TEXT NOT NULL,
			vector BLOB NOT NULL,
			PRIMARY KEY (model_id, checksum)
		);`,
		`CREATE TABLE IF NOT EXISTS embedding_model (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			model_id TEXT NOT NULL
		);`,
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}

	return nil
}
