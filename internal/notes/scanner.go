package notes

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"notefinder/internal/contextutil"
)

// Scanner is a filesystem note source rooted at a single vault directory.
// It yields every markdown file under the root, skipping the .obsidian
// configuration directory and other hidden directories.
type Scanner struct {
	root string
}

// NewScanner creates a scanner for the given vault root directory.
func NewScanner(root string) (*Scanner, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("vault root not accessible: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("vault root is not a directory: %s", root)
	}
	return &Scanner{root: root}, nil
}

// Scan walks the vault and returns all markdown notes found.
// Individual unreadable files are skipped with a warning rather than
// failing the whole scan.
func (s *Scanner) Scan(ctx context.Context) ([]Note, error) {
	logger := contextutil.LoggerFromContext(ctx)

	var scanned []Note
	err := filepath.Walk(s.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return fmt.Errorf("failed to access path %s: %w", path, err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if info.IsDir() {
			// Skip Obsidian configuration and hidden directories.
			if name := info.Name(); name != "." && strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}

		if filepath.Ext(path) != ".md" {
			return nil
		}

		relPath, err := filepath.Rel(s.root, path)
		if err != nil {
			return fmt.Errorf("failed to compute relative path for %s: %w", path, err)
		}
		relPath = filepath.ToSlash(relPath)

		content, err := os.ReadFile(path)
		if err != nil {
			logger.WarnContext(ctx, "skipping unreadable note", "rel_path", relPath, "error", err)
			return nil
		}

		scanned = append(scanned, Note{
			Path:       relPath,
			Title:      ExtractTitle(string(content), relPath),
			RawText:    string(content),
			ModifiedAt: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan vault %s: %w", s.root, err)
	}

	logger.DebugContext(ctx, "vault scanned", "root", s.root, "notes", len(scanned))
	return scanned, nil
}

// ExtractTitle derives a note title from its content:
// the first H1 heading, else the first H2, else the filename without
// extension with each word capitalized.
func ExtractTitle(content, relPath string) string {
	var firstH2 string
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if text, ok := strings.CutPrefix(trimmed, "# "); ok {
			if t := strings.TrimSpace(text); t != "" {
				return t
			}
		}
		if text, ok := strings.CutPrefix(trimmed, "## "); ok && firstH2 == "" {
			firstH2 = strings.TrimSpace(text)
		}
	}
	if firstH2 != "" {
		return firstH2
	}
	return titleFromFilename(relPath)
}

// titleFromFilename strips the extension and capitalizes each word.
func titleFromFilename(relPath string) string {
	name := filepath.Base(relPath)
	if ext := filepath.Ext(name); ext != "" {
		name = name[:len(name)-len(ext)]
	}
	name = strings.NewReplacer("-", " ", "_", " ").Replace(name)

	words := strings.Fields(name)
	for i, word := range words {
		runes := []rune(word)
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}
