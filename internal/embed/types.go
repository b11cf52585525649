// Package embed provides the pluggable embedder adapter: embed_batch(texts)
// -> unit-norm vectors, consulted only during the offline embed build and
// for one-shot query vectorization.
package embed

import (
	"context"
	"math"
)

// Embedder maps passage or query text to unit-norm float32 vectors. Every
// implementation guarantees all returned vectors share Dimensions() and are
// L2-normalized, except that blank text maps to the zero vector.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	ModelName() string
	Available(ctx context.Context) bool
	Close() error
}

func normalizeVector(v []float32) []float32 {
	var sumSq float64
	for _, f := range v {
		sumSq += float64(f) * float64(f)
	}
	if sumSq == 0 {
		return v
	}
	norm := float32(math.Sqrt(sumSq))
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = f / norm
	}
	return out
}
