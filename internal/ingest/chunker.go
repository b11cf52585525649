package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"

	"github.com/noterank/noterank/internal/store"
)

// headingPattern matches an ATX heading line: 1-6 '#' followed by
// whitespace and the heading text. Frontmatter, tables, and fenced code
// blocks are deliberately not special-cased; a passage boundary is
// exactly any ATX heading, nothing more.
var headingPattern = regexp.MustCompile(`^(#{1,6})[ \t]+(.+?)[ \t]*$`)

// ChunkedPassage is a passage produced by chunking, before it has been
// assigned a store id.
type ChunkedPassage struct {
	Heading    string
	HasHeading bool
	Content    string
}

// Chunk splits Markdown text into passages at ATX heading boundaries.
// Content runs from a boundary up to (but excluding) the next boundary or
// EOF. A file with no headings produces a single null-heading passage.
// Passages whose trimmed body is empty are dropped. The returned slice is
// in source order; callers assign dense 0-based ordinals.
func Chunk(text string) []ChunkedPassage {
	lines := strings.Split(text, "\n")

	type boundary struct {
		lineIdx int
		heading string
	}
	var boundaries []boundary
	for i, line := range lines {
		if m := headingPattern.FindStringSubmatch(line); m != nil {
			boundaries = append(boundaries, boundary{lineIdx: i, heading: m[2]})
		}
	}

	var passages []ChunkedPassage
	if len(boundaries) == 0 {
		body := strings.TrimSpace(text)
		if body != "" {
			passages = append(passages, ChunkedPassage{HasHeading: false, Content: body})
		}
		return passages
	}

	if boundaries[0].lineIdx > 0 {
		body := strings.TrimSpace(strings.Join(lines[:boundaries[0].lineIdx], "\n"))
		if body != "" {
			passages = append(passages, ChunkedPassage{HasHeading: false, Content: body})
		}
	}

	for i, b := range boundaries {
		start := b.lineIdx + 1
		end := len(lines)
		if i+1 < len(boundaries) {
			end = boundaries[i+1].lineIdx
		}
		body := strings.TrimSpace(strings.Join(lines[start:end], "\n"))
		if body == "" {
			continue
		}
		passages = append(passages, ChunkedPassage{Heading: b.heading, HasHeading: true, Content: body})
	}

	return passages
}

// ToStorePassages assigns dense 0-based ordinals to chunked passages for
// insertion via store.ReplaceFile.
func ToStorePassages(filePath string, chunks []ChunkedPassage) []store.Passage {
	out := make([]store.Passage, len(chunks))
	for i, c := range chunks {
		out[i] = store.Passage{
			FilePath:   filePath,
			Heading:    c.Heading,
			HasHeading: c.HasHeading,
			Ordinal:    i,
			Content:    c.Content,
			ContentLen: len(c.Content),
		}
	}
	return out
}

// ContentHash returns the hex SHA-256 digest used to detect unchanged files.
func ContentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
