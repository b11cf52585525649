package store

import (
	"context"
	"sync/atomic"

	"github.com/google/uuid"
)

// Matrix is an immutable snapshot of every passage's embedding, held as a
// contiguous row-major float32 array alongside a parallel id index, per
// design note "cache the full embedding matrix and a parallel id index
// once per Store snapshot; invalidation is by snapshot id". Readers never
// mutate a Matrix; a rebuild constructs a new one and the cache swaps the
// pointer atomically.
type Matrix struct {
	SnapshotID string
	Model      string
	Dims       int
	IDs        []int64
	Rows       [][]float32 // unit-norm, Rows[i] corresponds to IDs[i]
	byID       map[int64]int
}

// RowFor returns the embedding row for passageID and whether it exists.
func (m *Matrix) RowFor(passageID int64) ([]float32, bool) {
	idx, ok := m.byID[passageID]
	if !ok {
		return nil, false
	}
	return m.Rows[idx], true
}

// Len returns the number of rows in the matrix.
func (m *Matrix) Len() int {
	return len(m.IDs)
}

// BuildMatrix loads every embedding for model from the store into a fresh
// Matrix. Call this once per build and publish it via MatrixCache.Swap.
func BuildMatrix(ctx context.Context, s *Store, model string) (*Matrix, error) {
	embeddings, err := s.GetAllEmbeddings(ctx, model)
	if err != nil {
		return nil, err
	}

	m := &Matrix{
		SnapshotID: uuid.NewString(),
		Model:      model,
		IDs:        make([]int64, len(embeddings)),
		Rows:       make([][]float32, len(embeddings)),
		byID:       make(map[int64]int, len(embeddings)),
	}
	if len(embeddings) > 0 {
		m.Dims = embeddings[0].Dims
	}
	for i, e := range embeddings {
		m.IDs[i] = e.PassageID
		m.Rows[i] = e.Vector
		m.byID[e.PassageID] = i
	}
	return m, nil
}

// VectorIndex builds an approximate nearest-neighbor index over the
// matrix's rows. It is an accelerator for candidate narrowing only; exact
// paths (the recommender's embed mode) keep scanning the matrix directly.
func (m *Matrix) VectorIndex() (VectorIndex, error) {
	idx := newHNSWIndex(m.Dims)
	for i, id := range m.IDs {
		if err := idx.Add(id, m.Rows[i]); err != nil {
			return nil, err
		}
	}
	return idx, nil
}

// MatrixCache holds the process-wide embedding matrix behind an RCU-style
// atomic pointer: readers call Current() and keep their own reference for
// the duration of a request; a build calls Swap with a freshly built
// Matrix, and old readers simply finish against their already-acquired
// snapshot (no locking, no partial-state visibility).
type MatrixCache struct {
	ptr atomic.Pointer[Matrix]
}

// NewMatrixCache returns a cache with no matrix loaded (Current returns nil
// until the first Swap).
func NewMatrixCache() *MatrixCache {
	return &MatrixCache{}
}

// Current returns the active Matrix snapshot, or nil if none has been
// published yet.
func (c *MatrixCache) Current() *Matrix {
	return c.ptr.Load()
}

// Swap publishes a new Matrix as the active snapshot.
func (c *MatrixCache) Swap(m *Matrix) {
	c.ptr.Store(m)
}
