package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunk_NoHeadings(t *testing.T) {
	// Given: a file with no ATX headings
	text := "just a paragraph\nwith two lines"

	chunks := Chunk(text)

	require.Len(t, chunks, 1)
	assert.False(t, chunks[0].HasHeading)
	assert.Equal(t, "just a paragraph\nwith two lines", chunks[0].Content)
}

func TestChunk_SplitsAtHeadingBoundaries(t *testing.T) {
	text := "# Title\nintro\n\n## Section A\nbody a\n\n## Section B\nbody b\n"

	chunks := Chunk(text)

	require.Len(t, chunks, 3)
	assert.Equal(t, "Title", chunks[0].Heading)
	assert.Equal(t, "intro", chunks[0].Content)
	assert.Equal(t, "Section A", chunks[1].Heading)
	assert.Equal(t, "body a", chunks[1].Content)
	assert.Equal(t, "Section B", chunks[2].Heading)
	assert.Equal(t, "body b", chunks[2].Content)
}

func TestChunk_PreambleBeforeFirstHeadingBecomesNullHeadingPassage(t *testing.T) {
	text := "some preamble text\n\n# First Heading\nbody\n"

	chunks := Chunk(text)

	require.Len(t, chunks, 2)
	assert.False(t, chunks[0].HasHeading)
	assert.Equal(t, "some preamble text", chunks[0].Content)
	assert.True(t, chunks[1].HasHeading)
}

func TestChunk_DropsEmptyBodyPassages(t *testing.T) {
	// Given: two adjacent headings with no body text between them
	text := "# A\n## B\nbody\n"

	chunks := Chunk(text)

	require.Len(t, chunks, 1)
	assert.Equal(t, "B", chunks[0].Heading)
}

func TestChunk_IgnoresNonATXHashes(t *testing.T) {
	// A '#' not followed by whitespace, or more than 6 '#', is not a heading.
	text := "#nospace\nbody text\n####### toomany\nmore text"

	chunks := Chunk(text)

	require.Len(t, chunks, 1)
	assert.False(t, chunks[0].HasHeading)
}

func TestChunk_EmptyInputProducesNoPassages(t *testing.T) {
	assert.Empty(t, Chunk(""))
	assert.Empty(t, Chunk("   \n\n  "))
}

func TestToStorePassages_AssignsDenseOrdinals(t *testing.T) {
	chunks := []ChunkedPassage{
		{HasHeading: false, Content: "a"},
		{Heading: "H", HasHeading: true, Content: "bb"},
	}

	passages := ToStorePassages("notes/x.md", chunks)

	require.Len(t, passages, 2)
	assert.Equal(t, 0, passages[0].Ordinal)
	assert.Equal(t, 1, passages[1].Ordinal)
	assert.Equal(t, "notes/x.md", passages[0].FilePath)
	assert.Equal(t, 2, passages[1].ContentLen)
}

func TestContentHash_IsStableAndSensitiveToChange(t *testing.T) {
	a := ContentHash("hello")
	b := ContentHash("hello")
	c := ContentHash("hello!")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64) // hex-encoded SHA-256
}
