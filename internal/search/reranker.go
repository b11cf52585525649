package search

import "sort"

// SemanticHit is one reranked candidate: passage id and its cosine
// similarity to the query vector.
type SemanticHit struct {
	PassageID int64
	Cosine    float64 // in [-1, 1]
}

// Rerank scores each candidate vector against q by plain dot product
// (vectors are unit-norm by invariant, so cosine reduces to the dot
// product). Candidates with no vector in candidateVecs are simply absent
// from the result, never scored 0. The reranker does no I/O; callers
// supply the candidate set and its vectors.
func Rerank(candidateIDs []int64, candidateVecs map[int64][]float32, q []float32) []SemanticHit {
	out := make([]SemanticHit, 0, len(candidateIDs))
	for _, id := range candidateIDs {
		vec, ok := candidateVecs[id]
		if !ok {
			continue
		}
		out = append(out, SemanticHit{PassageID: id, Cosine: dot(vec, q)})
	}
	sortSemanticDesc(out)
	return out
}

func dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func sortSemanticDesc(hits []SemanticHit) {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Cosine != hits[j].Cosine {
			return hits[i].Cosine > hits[j].Cosine
		}
		return hits[i].PassageID < hits[j].PassageID
	})
}
