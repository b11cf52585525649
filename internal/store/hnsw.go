package store

import (
	"sync"

	"github.com/coder/hnsw"
)

// hnswIndex is an optional accelerated VectorIndex built on coder/hnsw. It
// is wired only as the semantic reranker's candidate-narrowing path ahead
// of an exact rerank; the recommender's embed mode always does an exact
// brute-force scan (see internal/search and internal/recommend), since an
// ANN approximation would break the embed-mode symmetry law.
type hnswIndex struct {
	mu    sync.RWMutex
	graph *hnsw.Graph[int64]
	dims  int

	// lazy deletion: removing the graph's last node is unreliable in
	// coder/hnsw, so Remove only orphans the id from `live` rather than
	// mutating the graph itself.
	live map[int64]bool
}

var _ VectorIndex = (*hnswIndex)(nil)

func newHNSWIndex(dims int) *hnswIndex {
	graph := hnsw.NewGraph[int64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = 16
	graph.EfSearch = 64
	return &hnswIndex{graph: graph, dims: dims, live: make(map[int64]bool)}
}

func (h *hnswIndex) Add(id int64, vec []float32) error {
	if len(vec) != h.dims {
		return ErrDimensionMismatch{Expected: h.dims, Got: len(vec)}
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.graph.Add(hnsw.MakeNode(id, vec))
	h.live[id] = true
	return nil
}

func (h *hnswIndex) Remove(id int64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.live, id)
	return nil
}

func (h *hnswIndex) Search(query []float32, k int) ([]VectorHit, error) {
	if len(query) != h.dims {
		return nil, ErrDimensionMismatch{Expected: h.dims, Got: len(query)}
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.graph.Len() == 0 {
		return []VectorHit{}, nil
	}

	// Over-fetch to compensate for lazily-deleted (orphaned) nodes still
	// occupying graph slots.
	fetch := k
	if orphans := h.graph.Len() - len(h.live); orphans > 0 {
		fetch += orphans
	}

	nodes := h.graph.Search(query, fetch)
	hits := make([]VectorHit, 0, k)
	for _, node := range nodes {
		if !h.live[node.Key] {
			continue
		}
		distance := h.graph.Distance(query, node.Value)
		hits = append(hits, VectorHit{PassageID: node.Key, Score: cosineDistanceToScore(distance)})
		if len(hits) == k {
			break
		}
	}
	return hits, nil
}

func (h *hnswIndex) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.live)
}

// cosineDistanceToScore maps coder/hnsw's cosine distance (0 identical, 2
// opposite) to the [0,1] similarity scale the rest of the search pipeline
// uses.
func cosineDistanceToScore(distance float32) float64 {
	return float64(1.0 - distance/2.0)
}
