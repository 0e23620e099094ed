package chunker

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestIDDeterministic(t *testing.T) {
	a := ID("notes/go.md", []string{"Go", "Concurrency"}, 2, "Channels carry values.")
	b := ID("notes/go.md", []string{"Go", "Concurrency"}, 2, "Channels carry values.")
	if a != b {
		t.Fatalf("same input produced different IDs: %s vs %s", a, b)
	}
}

func TestIDIsValidUUID(t *testing.T) {
	id := ID("notes/go.md", nil, 0, "text")
	if _, err := uuid.Parse(id); err != nil {
		t.Fatalf("ID is not a valid UUID: %v", err)
	}
}

func TestIDSensitivity(t *testing.T) {
	base := ID("notes/go.md", []string{"Go"}, 0, "Channels carry values.")

	tests := []struct {
		name string
		id   string
	}{
		{"different path", ID("notes/rust.md", []string{"Go"}, 0, "Channels carry values.")},
		{"different heading path", ID("notes/go.md", []string{"Rust"}, 0, "Channels carry values.")},
		{"different index", ID("notes/go.md", []string{"Go"}, 1, "Channels carry values.")},
		{"different text", ID("notes/go.md", []string{"Go"}, 0, "Goroutines are cheap.")},
	}
	for _, tt := range tests {
		if tt.id == base {
			t.Errorf("%s: expected a different ID", tt.name)
		}
	}
}

func TestIDNormalizesLineEndings(t *testing.T) {
	unix := ID("n.md", nil, 0, "line one\nline two")
	windows := ID("n.md", nil, 0, "line one\r\nline two")
	if unix != windows {
		t.Fatalf("CRLF input should hash like LF input")
	}
}

func TestChecksumIgnoresSurroundingWhitespace(t *testing.T) {
	if Checksum("some text") != Checksum("  some text\n\n") {
		t.Fatal("surrounding whitespace should not affect the checksum")
	}
}

func TestChecksumSensitivity(t *testing.T) {
	if Checksum("some text") == Checksum("other text") {
		t.Fatal("different text should produce different checksums")
	}
}

func TestEstimateTokens(t *testing.T) {
	if got := estimateTokens(""); got != 1 {
		t.Errorf("empty text: got %d, want 1", got)
	}
	if got := estimateTokens(strings.Repeat("a", 400)); got != 101 {
		t.Errorf("400 runes: got %d, want 101", got)
	}
}
