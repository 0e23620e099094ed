package chunker

import (
	"strings"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"

	"notefinder/internal/notes"
)

const (
	// targetChunkSize is the preferred chunk size in runes. It targets
	// roughly 450 tokens for 512-token embedding models.
	targetChunkSize = 700
	// overlapSize is carried from the tail of a chunk into the next chunk
	// of the same section so boundary sentences stay retrievable.
	overlapSize = 100
	// minChunkSize is the floor below which a trailing fragment is merged
	// into its section neighbor instead of emitted standalone.
	minChunkSize = 100
)

// Chunk is a contiguous addressable unit of note text, the atomic retrieval
// granule. Identity is content-addressed: ID and Checksum are pure functions
// of the chunk's position and normalized text, which is what makes
// incremental reindexing a set diff instead of a rebuild.
type Chunk struct {
	ID          string
	NotePath    string
	NoteTitle   string
	HeadingPath []string
	Index       int
	Text        string
	Checksum    string
	TokenCount  int
}

// Chunker splits markdown notes into chunks along semantic boundaries using
// goldmark AST parsing. Chunk is deterministic: the same note always yields
// the same chunk IDs.
type Chunker struct {
	parser goldmark.Markdown
}

// New creates a markdown chunker.
func New() *Chunker {
	return &Chunker{
		parser: goldmark.New(
			goldmark.WithExtensions(extension.Table),
		),
	}
}

// unit is a single block-level piece of section content. Atomic units
// (code blocks) are never split internally regardless of size.
type unit struct {
	text   string
	atomic bool
}

// section is a run of units under one heading chain.
type section struct {
	headingPath []string
	units       []unit
}

// headingInfo tracks heading level and text while building heading paths.
type headingInfo struct {
	level int
	text  string
}

// Chunk splits a note into ordered chunks. An empty note yields no chunks;
// a note without headings yields chunks with an empty heading path.
func (c *Chunker) Chunk(note notes.Note) []Chunk {
	content := []byte(note.RawText)
	if len(strings.TrimSpace(note.RawText)) == 0 {
		return []Chunk{}
	}

	reader := text.NewReader(content)
	doc := c.parser.Parser().Parse(reader)

	sections := collectSections(doc, content)

	var chunks []Chunk
	index := 0
	for _, sec := range sections {
		for _, chunkText := range packSection(sec.units) {
			chunkText = strings.TrimSpace(chunkText)
			if chunkText == "" {
				continue
			}
			chunks = append(chunks, Chunk{
				ID:          ID(note.Path, sec.headingPath, index, chunkText),
				NotePath:    note.Path,
				NoteTitle:   note.Title,
				HeadingPath: sec.headingPath,
				Index:       index,
				Text:        chunkText,
				Checksum:    Checksum(chunkText),
				TokenCount:  estimateTokens(chunkText),
			})
			index++
		}
	}

	return chunks
}

// collectSections walks the document's top-level blocks, maintaining the
// heading stack and grouping content units under their nearest enclosing
// heading chain.
func collectSections(doc ast.Node, content []byte) []section {
	var sections []section
	var headingStack []headingInfo
	current := section{headingPath: []string{}}

	flush := func() {
		if len(current.units) > 0 {
			sections = append(sections, current)
		}
	}

	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		if heading, ok := n.(*ast.Heading); ok {
			flush()

			// Pop headings of equal or deeper level, then push this one.
			level := heading.Level
			for len(headingStack) > 0 && headingStack[len(headingStack)-1].level >= level {
				headingStack = headingStack[:len(headingStack)-1]
			}
			headingStack = append(headingStack, headingInfo{
				level: level,
				text:  headingText(heading, content),
			})

			path := make([]string, len(headingStack))
			for i, h := range headingStack {
				path[i] = h.text
			}
			current = section{headingPath: path}
			continue
		}

		current.units = append(current.units, blockUnits(n, content)...)
	}
	flush()

	return sections
}

// blockUnits converts one top-level block into content units. Lists are
// exploded into per-item units so packing can split at list-item boundaries.
func blockUnits(n ast.Node, content []byte) []unit {
	switch n.Kind() {
	case ast.KindFencedCodeBlock, ast.KindCodeBlock:
		if t := nodeText(n, content); t != "" {
			return []unit{{text: t, atomic: true}}
		}
		return nil
	case ast.KindList:
		var units []unit
		for item := n.FirstChild(); item != nil; item = item.NextSibling() {
			if t := nodeText(item, content); t != "" {
				units = append(units, unit{text: "- " + t})
			}
		}
		return units
	case ast.KindThematicBreak:
		return nil
	default:
		if t := nodeText(n, content); t != "" {
			return []unit{{text: t}}
		}
		return nil
	}
}

// nodeText extracts the source text of a block node. Leaf blocks use their
// raw source lines; containers recurse. Table rows are rendered with pipe
// separators so tabular content survives as searchable text.
func nodeText(n ast.Node, content []byte) string {
	switch v := n.(type) {
	case *ast.Text:
		return string(v.Segment.Value(content))
	case *ast.String:
		return string(v.Value)
	}

	kindName := n.Kind().String()
	if strings.Contains(kindName, "TableRow") || strings.Contains(kindName, "TableHeader") {
		var cells []string
		for cell := n.FirstChild(); cell != nil; cell = cell.NextSibling() {
			cells = append(cells, strings.TrimSpace(inlineText(cell, content)))
		}
		return strings.Join(cells, " | ")
	}

	if n.Type() == ast.TypeBlock {
		if lines := n.Lines(); lines != nil && lines.Len() > 0 {
			var b strings.Builder
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				b.Write(seg.Value(content))
			}
			return strings.TrimRight(b.String(), "\n")
		}
	}

	var parts []string
	for child := n.FirstChild(); child != nil; child = child.NextSibling() {
		if t := nodeText(child, content); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n")
}

// inlineText collects the flattened inline text of a node subtree.
func inlineText(n ast.Node, content []byte) string {
	var b strings.Builder
	_ = ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch v := node.(type) {
		case *ast.Text:
			b.Write(v.Segment.Value(content))
		case *ast.String:
			b.Write(v.Value)
		}
		return ast.WalkContinue, nil
	})
	return b.String()
}

// headingText extracts the plain text of a heading node.
func headingText(n ast.Node, content []byte) string {
	return strings.TrimSpace(inlineText(n, content))
}

// packSection packs a section's units into chunk texts around
// targetChunkSize, carrying an overlap tail between adjacent chunks of the
// same section. Oversized non-atomic units are split by paragraph, line and
// finally sentence punctuation; atomic units are emitted whole.
func packSection(units []unit) []string {
	var out []string
	cur := ""
	seed := ""      // overlap tail carried into cur, if any
	seeded := false // whether cur starts with an overlap tail

	flush := func() {
		// Never emit a chunk that is only the carried overlap.
		if strings.TrimSpace(cur) == "" || (seeded && cur == seed) {
			cur, seed, seeded = "", "", false
			return
		}
		out = append(out, cur)
		seed = overlapTail(cur)
		cur = seed
		seeded = seed != ""
	}

	appendPiece := func(text string) {
		if cur != "" && utf8.RuneCountInString(cur)+utf8.RuneCountInString(text) > targetChunkSize {
			flush()
		}
		if cur == "" {
			cur = text
		} else {
			cur += "\n\n" + text
		}
	}

	for _, u := range units {
		if u.atomic {
			// Code blocks are never split internally. If one does not fit
			// alongside the accumulated text, it gets its own chunk, even
			// when that chunk exceeds the target size.
			if cur != "" && utf8.RuneCountInString(cur)+utf8.RuneCountInString(u.text) > targetChunkSize {
				flush()
			}
			appendPiece(u.text)
			if utf8.RuneCountInString(cur) > targetChunkSize {
				flush()
				// No overlap out of a code block; carrying code into a
				// prose chunk only pollutes it.
				cur, seed, seeded = "", "", false
			}
			continue
		}

		if utf8.RuneCountInString(u.text) > targetChunkSize {
			for _, piece := range splitOversized(u.text, targetChunkSize, oversizeSeparators) {
				appendPiece(piece)
			}
			continue
		}

		appendPiece(u.text)
	}

	// Trailing fragment: merge into the previous chunk of the section when
	// it is too small to stand alone. A fragment seeded with overlap already
	// repeats the previous tail, so it is emitted as-is.
	if strings.TrimSpace(cur) != "" {
		if !seeded && len(out) > 0 && utf8.RuneCountInString(cur) < minChunkSize {
			out[len(out)-1] += "\n\n" + cur
		} else {
			out = append(out, cur)
		}
	}

	return out
}

// oversizeSeparators are tried in priority order when a single unit exceeds
// the chunk size: paragraph breaks first, sentence punctuation last.
var oversizeSeparators = []string{"\n\n", "\n", ". ", "? ", "! ", "; ", ": "}

// splitOversized splits text into pieces of at most limit runes, preferring
// the earliest separator in seps that actually divides the text. Pieces are
// packed greedily so splits stay as coarse as possible.
func splitOversized(text string, limit int, seps []string) []string {
	if utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}
	if len(seps) == 0 {
		return hardSplit(text, limit)
	}

	parts := strings.SplitAfter(text, seps[0])
	if len(parts) == 1 {
		return splitOversized(text, limit, seps[1:])
	}

	var out []string
	cur := ""
	for _, part := range parts {
		if utf8.RuneCountInString(part) > limit {
			if cur != "" {
				out = append(out, cur)
				cur = ""
			}
			out = append(out, splitOversized(part, limit, seps[1:])...)
			continue
		}
		if cur != "" && utf8.RuneCountInString(cur)+utf8.RuneCountInString(part) > limit {
			out = append(out, cur)
			cur = ""
		}
		cur += part
	}
	if cur != "" {
		out = append(out, cur)
	}
	return out
}

// hardSplit cuts text every limit runes. Last resort for pathological input
// with no separators at all.
func hardSplit(text string, limit int) []string {
	runes := []rune(text)
	var out []string
	for start := 0; start < len(runes); start += limit {
		end := start + limit
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[start:end]))
	}
	return out
}

// overlapTail returns the word-aligned tail of a chunk, at most overlapSize
// runes, used to seed the next chunk of the same section. Returns empty when
// the tail would cover the whole chunk.
func overlapTail(text string) string {
	runes := []rune(text)
	if len(runes) <= overlapSize {
		return ""
	}
	tail := string(runes[len(runes)-overlapSize:])
	if idx := strings.IndexAny(tail, " \n\t"); idx >= 0 {
		tail = tail[idx+1:]
	}
	return strings.TrimSpace(tail)
}
