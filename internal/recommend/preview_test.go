package recommend

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPreviewOf_CollapsesWhitespace(t *testing.T) {
	got := previewOf("line one\n\n  line  two")
	assert.Equal(t, "line one line two", got)
}

func TestPreviewOf_Truncates(t *testing.T) {
	got := previewOf(strings.Repeat("x", 500))
	assert.LessOrEqual(t, len(got), 200)
}

func TestDot_AndClamp01(t *testing.T) {
	assert.InDelta(t, 1.0, dot([]float32{1, 0}, []float32{1, 0}), 1e-9)
	assert.InDelta(t, -1.0, dot([]float32{-1, 0}, []float32{1, 0}), 1e-9)

	assert.Equal(t, 0.0, clamp01(-0.3))
	assert.Equal(t, 0.3, clamp01(0.3))
	assert.Equal(t, 1.0, clamp01(1.7))
}
