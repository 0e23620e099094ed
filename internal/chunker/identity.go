package chunker

import (
	"crypto/sha256"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Namespace for deterministic chunk IDs. Changing it invalidates every
// chunk ID ever produced, so it is fixed for the life of the index format.
var chunkNamespace = uuid.MustParse("9a3f5f41-2c6d-4a8e-bb1e-7d0c3f8a6e52")

// Normalize canonicalizes chunk text before hashing: line endings are
// unified and surrounding whitespace is stripped, so editor differences do
// not churn chunk identity.
func Normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.TrimSpace(text)
}

// Checksum returns the hex SHA-256 of the normalized chunk text.
// It answers "did this exact chunk body change" independently of where the
// chunk sits in the note.
func Checksum(text string) string {
	sum := sha256.Sum256([]byte(Normalize(text)))
	return fmt.Sprintf("%x", sum)
}

// ID derives the stable chunk identity from the note path, enclosing heading
// chain, position within the note and normalized text. It is a UUIDv5 so the
// same value doubles as a vector index point ID. Identical input always
// yields the identical ID, which is what turns reindexing into a set diff.
func ID(notePath string, headingPath []string, index int, text string) string {
	var b strings.Builder
	b.WriteString(notePath)
	b.WriteByte(0)
	for _, h := range headingPath {
		b.WriteString(h)
		b.WriteByte(0)
	}
	b.WriteString(strconv.Itoa(index))
	b.WriteByte(0)
	b.WriteString(Normalize(text))
	return uuid.NewSHA1(chunkNamespace, []byte(b.String())).String()
}

// estimateTokens approximates the token count of a chunk. Four runes per
// token tracks the embedding models we target closely enough for sizing.
func estimateTokens(text string) int {
	return utf8.RuneCountInString(text)/4 + 1
}
