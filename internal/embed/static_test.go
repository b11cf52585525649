package embed

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticEmbedder_DeterministicForSameText(t *testing.T) {
	e := NewStaticEmbedder()

	a, err := e.EmbedBatch(context.Background(), []string{"hello world"})
	require.NoError(t, err)
	b, err := e.EmbedBatch(context.Background(), []string{"hello world"})
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestStaticEmbedder_DifferentTextsDifferentVectors(t *testing.T) {
	e := NewStaticEmbedder()

	out, err := e.EmbedBatch(context.Background(), []string{"apples and oranges", "completely different topic"})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.NotEqual(t, out[0], out[1])
}

func TestStaticEmbedder_OutputIsUnitNorm(t *testing.T) {
	e := NewStaticEmbedder()

	out, err := e.EmbedBatch(context.Background(), []string{"some reasonably long sentence to embed"})
	require.NoError(t, err)

	var sumSq float64
	for _, f := range out[0] {
		sumSq += float64(f) * float64(f)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sumSq), 1e-5)
}

func TestStaticEmbedder_BlankTextProducesZeroVector(t *testing.T) {
	e := NewStaticEmbedder()

	out, err := e.EmbedBatch(context.Background(), []string{"   "})
	require.NoError(t, err)

	for _, f := range out[0] {
		assert.Equal(t, float32(0), f)
	}
}

func TestStaticEmbedder_DimensionsAndModelName(t *testing.T) {
	e := NewStaticEmbedder()
	assert.Equal(t, StaticDimensions, e.Dimensions())
	assert.Equal(t, "noterank-static-v1", e.ModelName())
}

func TestStaticEmbedder_UnavailableAfterClose(t *testing.T) {
	e := NewStaticEmbedder()
	assert.True(t, e.Available(context.Background()))

	require.NoError(t, e.Close())

	assert.False(t, e.Available(context.Background()))
	_, err := e.EmbedBatch(context.Background(), []string{"x"})
	assert.Error(t, err)
}

func TestTokenize_LowercasesAndSplitsOnNonWordRunes(t *testing.T) {
	got := tokenize("Hello, World! 123")
	assert.Equal(t, []string{"hello", "world", "123"}, got)
}

func TestExtractNgrams_ShorterThanNReturnsNil(t *testing.T) {
	assert.Nil(t, extractNgrams("ab", 3))
	assert.Equal(t, []string{"abc"}, extractNgrams("abc", 3))
	assert.Equal(t, []string{"abc", "bcd"}, extractNgrams("abcd", 3))
}
