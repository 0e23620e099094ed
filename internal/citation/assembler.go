// Package citation maps final ranked chunks onto stable citations a consumer
// can deep-link from. It is a pure mapping: nothing is filtered here, anything
// excluded was already dropped by gating or reranking.
package citation

import (
	"strings"
	"unicode/utf8"

	"notefinder/internal/rerank"
)

// snippetRunes bounds the display snippet. The full chunk text stays
// addressable through the chunk ID.
const snippetRunes = 280

// Citation points a consumer at the exact section of the source note a
// chunk came from. HeadingPath stays structured for machine consumers;
// HeadingDisplay is the human-readable join.
type Citation struct {
	NotePath       string   `json:"note_path"`
	NoteTitle      string   `json:"note_title"`
	HeadingPath    []string `json:"heading_path"`
	HeadingDisplay string   `json:"heading_display,omitempty"`
	ChunkID        string   `json:"chunk_id"`
	Snippet        string   `json:"snippet"`
}

// Assemble produces one citation per ranked candidate, in rank order.
func Assemble(ranked []rerank.RankedCandidate) []Citation {
	citations := make([]Citation, len(ranked))
	for n, cand := range ranked {
		citations[n] = Citation{
			NotePath:       cand.NotePath,
			NoteTitle:      cand.NoteTitle,
			HeadingPath:    cand.HeadingPath,
			HeadingDisplay: strings.Join(cand.HeadingPath, " > "),
			ChunkID:        cand.ChunkID,
			Snippet:        truncate(cand.Text, snippetRunes),
		}
	}
	return citations
}

// truncate cuts text at a word boundary near max runes and appends an
// ellipsis. Text at or under the limit is returned unchanged.
func truncate(text string, max int) string {
	if utf8.RuneCountInString(text) <= max {
		return text
	}
	runes := []rune(text)
	cut := max
	for n := max; n > max/2; n-- {
		if runes[n] == ' ' || runes[n] == '\n' {
			cut = n
			break
		}
	}
	return strings.TrimRight(string(runes[:cut]), " \n") + "…"
}
