// Package recommend implements passage- and file-level relatedness in two
// modes: same-topic (cluster membership) and embedding-kNN (exact
// brute-force cosine).
package recommend

import (
	"context"
	"sort"

	noteerr "github.com/noterank/noterank/internal/errors"
	"github.com/noterank/noterank/internal/store"
)

// Reason labels why a passage was recommended.
type Reason string

const (
	ReasonSameTopic          Reason = "same_topic"
	ReasonSemanticSimilarity Reason = "semantic_similarity"
)

// Mode selects the recommender's algorithm.
type Mode string

const (
	ModeCluster Mode = "cluster"
	ModeEmbed   Mode = "embed"
)

// PassageResult is one related-passage hit.
type PassageResult struct {
	PassageID int64
	FilePath  string
	Heading   string
	Preview   string
	Score     float64
	Reason    Reason
}

// Recommender serves passage- and file-level relatedness queries against a
// store snapshot.
type Recommender struct {
	s      *store.Store
	model  string
	matrix *store.MatrixCache
}

func New(s *store.Store, model string) *Recommender {
	return &Recommender{s: s, model: model}
}

// SetMatrixCache attaches an in-memory embedding matrix cache so repeated
// relatedness queries against the same snapshot skip the per-request
// GetAllEmbeddings/GetEmbedding round trips.
func (r *Recommender) SetMatrixCache(c *store.MatrixCache) {
	r.matrix = c
}

// currentMatrix returns the cached matrix if one is attached and it was
// built for this recommender's model, else nil.
func (r *Recommender) currentMatrix() *store.Matrix {
	if r.matrix == nil {
		return nil
	}
	m := r.matrix.Current()
	if m == nil || m.Model != r.model {
		return nil
	}
	return m
}

func (r *Recommender) embeddingVector(ctx context.Context, passageID int64) ([]float32, error) {
	if m := r.currentMatrix(); m != nil {
		if v, ok := m.RowFor(passageID); ok {
			return v, nil
		}
	}
	e, err := r.s.GetEmbedding(ctx, passageID)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, nil
	}
	return e.Vector, nil
}

// RelatedPassages returns passages related to passageID, excluding the
// input passage, deterministically ordered (ties broken by lower passage
// id).
func (r *Recommender) RelatedPassages(ctx context.Context, passageID int64, mode Mode, k int) ([]PassageResult, error) {
	switch mode {
	case ModeCluster:
		return r.relatedByCluster(ctx, passageID, k)
	case ModeEmbed:
		return r.relatedByEmbedding(ctx, passageID, k, nil)
	default:
		return nil, noteerr.RequestBadInput("mode must be \"cluster\" or \"embed\"")
	}
}

func (r *Recommender) relatedByCluster(ctx context.Context, passageID int64, k int) ([]PassageResult, error) {
	clusterID, ok, err := r.s.ClusterOfPassage(ctx, passageID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []PassageResult{}, nil
	}
	memberIDs, err := r.s.ClusterMembers(ctx, clusterID)
	if err != nil {
		return nil, err
	}

	inputVec, err := r.embeddingVector(ctx, passageID)
	if err != nil {
		return nil, err
	}

	type scored struct {
		id    int64
		score float64
	}
	var candidates []scored

	if inputVec != nil {
		for i, id := range memberIDs {
			if i%deadlineCheckEvery == 0 {
				if err := checkDeadline(ctx); err != nil {
					return nil, err
				}
			}
			if id == passageID {
				continue
			}
			vec, err := r.embeddingVector(ctx, id)
			if err != nil {
				return nil, err
			}
			if vec == nil {
				continue
			}
			candidates = append(candidates, scored{id: id, score: dot(vec, inputVec)})
		}
		sort.Slice(candidates, func(i, j int) bool {
			if candidates[i].score != candidates[j].score {
				return candidates[i].score > candidates[j].score
			}
			return candidates[i].id < candidates[j].id
		})
	} else {
		// No embeddings exist: fall back to ordinal order (passage ids are
		// assigned in source order within a rebuild, so ordering by id
		// approximates ordinal order across the cluster's members).
		for _, id := range memberIDs {
			if id == passageID {
				continue
			}
			candidates = append(candidates, scored{id: id, score: 0})
		}
		sort.Slice(candidates, func(i, j int) bool { return candidates[i].id < candidates[j].id })
	}

	if k > 0 && len(candidates) > k {
		candidates = candidates[:k]
	}

	ids := make([]int64, len(candidates))
	for i, c := range candidates {
		ids[i] = c.id
	}
	passages, err := r.s.GetPassages(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]PassageResult, 0, len(candidates))
	for _, c := range candidates {
		p, ok := passages[c.id]
		if !ok {
			continue
		}
		out = append(out, PassageResult{
			PassageID: c.id,
			FilePath:  p.FilePath,
			Heading:   p.Heading,
			Preview:   previewOf(p.Content),
			Score:     c.score,
			Reason:    ReasonSameTopic,
		})
	}
	return out, nil
}

// relatedByEmbedding implements mode "embed": exact brute-force cosine kNN
// over every embedding excluding the input. excludeIDs additionally
// excludes ids; nil (what RelatedPassages passes) means only the input
// itself is excluded. Negative cosines are dropped unless fewer than
// k positives exist.
func (r *Recommender) relatedByEmbedding(ctx context.Context, passageID int64, k int, excludeIDs map[int64]bool) ([]PassageResult, error) {
	inputVec, err := r.embeddingVector(ctx, passageID)
	if err != nil {
		return nil, err
	}
	if inputVec == nil {
		return []PassageResult{}, nil
	}

	// The full scan always runs against the cached matrix when one is
	// published; only a cold process without a snapshot pays the
	// GetAllEmbeddings round trip. Either way the scan is exact.
	ids, rowAt, err := r.scanSource(ctx)
	if err != nil {
		return nil, err
	}

	type scored struct {
		id    int64
		score float64
	}
	var positives, nonPositives []scored
	for i, id := range ids {
		if i%deadlineCheckEvery == 0 {
			if err := checkDeadline(ctx); err != nil {
				return nil, err
			}
		}
		if id == passageID || excludeIDs[id] {
			continue
		}
		cosine := clamp01(dot(rowAt(i), inputVec))
		s := scored{id: id, score: cosine}
		if cosine > 0 {
			positives = append(positives, s)
		} else {
			nonPositives = append(nonPositives, s)
		}
	}

	sortScored := func(list []scored) {
		sort.Slice(list, func(i, j int) bool {
			if list[i].score != list[j].score {
				return list[i].score > list[j].score
			}
			return list[i].id < list[j].id
		})
	}
	sortScored(positives)

	candidates := positives
	if k > 0 && len(candidates) < k {
		sortScored(nonPositives)
		need := k - len(candidates)
		if need > len(nonPositives) {
			need = len(nonPositives)
		}
		candidates = append(candidates, nonPositives[:need]...)
	}
	if k > 0 && len(candidates) > k {
		candidates = candidates[:k]
	}

	resultIDs := make([]int64, len(candidates))
	for i, c := range candidates {
		resultIDs[i] = c.id
	}
	passages, err := r.s.GetPassages(ctx, resultIDs)
	if err != nil {
		return nil, err
	}

	out := make([]PassageResult, 0, len(candidates))
	for _, c := range candidates {
		p, ok := passages[c.id]
		if !ok {
			continue
		}
		out = append(out, PassageResult{
			PassageID: c.id,
			FilePath:  p.FilePath,
			Heading:   p.Heading,
			Preview:   previewOf(p.Content),
			Score:     c.score,
			Reason:    ReasonSemanticSimilarity,
		})
	}
	return out, nil
}

// scanSource yields the id list and a row accessor for the exact kNN scan:
// the cached matrix when published, else a one-shot load from the store.
func (r *Recommender) scanSource(ctx context.Context) ([]int64, func(int) []float32, error) {
	if m := r.currentMatrix(); m != nil {
		return m.IDs, func(i int) []float32 { return m.Rows[i] }, nil
	}
	all, err := r.s.GetAllEmbeddings(ctx, r.model)
	if err != nil {
		return nil, nil, err
	}
	ids := make([]int64, len(all))
	for i, e := range all {
		ids[i] = e.PassageID
	}
	return ids, func(i int) []float32 { return all[i].Vector }, nil
}

// deadlineCheckEvery is how often the kNN scan polls the request deadline:
// every 1024 candidates, so an expired request returns Cancelled rather
// than a partial list.
const deadlineCheckEvery = 1024

func checkDeadline(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return noteerr.RequestCancelled(ctx.Err())
	default:
		return nil
	}
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

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
