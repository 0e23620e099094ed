package notes

import (
	"context"
	"time"
)

// Note is a single markdown document as produced by a note source.
// The retrieval core treats notes as read-only input.
type Note struct {
	// Path is the vault-relative path, unique within a source (e.g. "projects/meeting-notes.md").
	Path string
	// Title is the extracted document title.
	Title string
	// RawText is the full markdown text.
	RawText string
	// ModifiedAt is the source modification timestamp.
	ModifiedAt time.Time
}

// Source yields the current set of notes. The indexer diffs successive
// snapshots, so a source only needs to report the latest state of each note.
type Source interface {
	Scan(ctx context.Context) ([]Note, error)
}
