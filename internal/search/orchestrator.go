package search

import (
	"context"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/noterank/noterank/internal/embed"
	noteerr "github.com/noterank/noterank/internal/errors"
	"github.com/noterank/noterank/internal/store"
)

// Orchestrator runs the lexical searcher and semantic reranker and fuses
// their scores with the fixed lex_norm/semantic_norm arithmetic. The
// -8.0/0.25/W=10 constants are wire-visible and pin the formula, so this
// is not a reciprocal-rank fusion.
type Orchestrator struct {
	lexical  *LexicalSearcher
	s        *store.Store
	embedder embed.Embedder
	matrix   *store.MatrixCache
	vindex   store.VectorIndex
}

// hnswNarrowCutoff is the candidate-set size above which an attached
// VectorIndex pre-narrows the exact rerank. Below it, exact rerank over
// the whole candidate set is already cheap.
const hnswNarrowCutoff = 512

func NewOrchestrator(lexical *LexicalSearcher, s *store.Store, embedder embed.Embedder) *Orchestrator {
	return &Orchestrator{lexical: lexical, s: s, embedder: embedder}
}

// SetMatrixCache attaches the process-wide embedding matrix cache. When
// present and its snapshot matches the embedder's model, candidate vector
// lookups are served from the cached matrix instead of one store round
// trip per candidate.
func (o *Orchestrator) SetMatrixCache(c *store.MatrixCache) {
	o.matrix = c
}

// SetVectorIndex attaches an approximate nearest-neighbor index used only
// to narrow large lexical candidate sets before the exact rerank.
// Candidates the index does not surface keep the semantic floor score of
// 0, the same floor a missing embedding gets.
func (o *Orchestrator) SetVectorIndex(v store.VectorIndex) {
	o.vindex = v
}

// Search runs the hybrid pipeline: lexical candidates, query embedding,
// semantic rerank over the candidates that have embeddings, fusion,
// classification, truncation to limit, and preview building.
func (o *Orchestrator) Search(ctx context.Context, query string, ftsK, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = 10
	}
	lexHits, err := o.lexical.Search(ctx, query, ftsK)
	if err != nil {
		return nil, err
	}
	if len(lexHits) == 0 {
		return []Result{}, nil
	}

	semHits, embedderDown := o.semanticRerank(ctx, query, lexHits)
	// An expired deadline must surface as Cancelled, never as a silent
	// degrade to lexical-only partial output.
	if err := ctx.Err(); err != nil {
		return nil, noteerr.RequestCancelled(err)
	}

	results := fuse(lexHits, semHits, embedderDown)
	if len(results) > limit {
		results = results[:limit]
	}

	if err := o.attachPreviews(ctx, results); err != nil {
		return nil, err
	}
	return results, nil
}

// semanticRerank embeds the query and reranks the lexical candidates that
// have a stored embedding. An unavailable embedder degrades to
// lexical-only (non-fatal; every class collapses to keyword), signaled by
// the second return value.
func (o *Orchestrator) semanticRerank(ctx context.Context, query string, lexHits []store.LexicalHit) ([]SemanticHit, bool) {
	if o.embedder == nil || !o.embedder.Available(ctx) {
		return nil, true
	}

	ids := make([]int64, len(lexHits))
	for i, h := range lexHits {
		ids[i] = h.PassageID
	}

	// When a VectorIndex is attached and the candidate set is large, the
	// vector fetch waits for the query vector so the index can narrow the
	// set first; otherwise both sides run in parallel.
	narrow := o.vindex != nil && len(ids) > hnswNarrowCutoff

	var qVec []float32
	var vecs map[int64][]float32
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		out, err := o.embedder.EmbedBatch(gctx, []string{query})
		if err != nil || len(out) == 0 {
			return err
		}
		qVec = out[0]
		return nil
	})
	if !narrow {
		g.Go(func() error {
			v, err := o.vectorsFor(gctx, ids)
			vecs = v
			return err
		})
	}
	if err := g.Wait(); err != nil || qVec == nil {
		return nil, true
	}

	if narrow {
		ids = o.narrowCandidates(ids, qVec)
		v, err := o.vectorsFor(ctx, ids)
		if err != nil {
			return nil, true
		}
		vecs = v
	}

	return Rerank(ids, vecs, qVec), false
}

// narrowCandidates intersects the lexical candidate ids with the
// VectorIndex's top hnswNarrowCutoff neighbors of qVec. On any index error
// the full candidate set is kept (exact rerank is the safe fallback).
func (o *Orchestrator) narrowCandidates(ids []int64, qVec []float32) []int64 {
	hits, err := o.vindex.Search(qVec, hnswNarrowCutoff)
	if err != nil {
		return ids
	}
	keep := make(map[int64]bool, len(hits))
	for _, h := range hits {
		keep[h.PassageID] = true
	}
	narrowed := make([]int64, 0, len(hits))
	for _, id := range ids {
		if keep[id] {
			narrowed = append(narrowed, id)
		}
	}
	return narrowed
}

func (o *Orchestrator) vectorsFor(ctx context.Context, ids []int64) (map[int64][]float32, error) {
	out := make(map[int64][]float32, len(ids))

	var m *store.Matrix
	if o.matrix != nil {
		if cur := o.matrix.Current(); cur != nil && cur.Model == o.embedder.ModelName() {
			m = cur
		}
	}

	for i, id := range ids {
		if i%deadlineCheckEvery == 0 {
			select {
			case <-ctx.Done():
				return nil, noteerr.RequestCancelled(ctx.Err())
			default:
			}
		}
		if m != nil {
			if v, ok := m.RowFor(id); ok {
				out[id] = v
				continue
			}
		}
		e, err := o.s.GetEmbedding(ctx, id)
		if err != nil {
			return nil, err
		}
		if e != nil {
			out[id] = e.Vector
		}
	}
	return out, nil
}

// fuse normalizes lexical scores against the candidate set's best score,
// folds semantic scores to [0,1], combines 50/50, classifies against the
// raw (un-normalized) thresholds, and sorts with the deterministic
// tie-break (higher semantic, then lower passage id).
func fuse(lexHits []store.LexicalHit, semHits []SemanticHit, embedderDown bool) []Result {
	semByID := make(map[int64]float64, len(semHits))
	for _, h := range semHits {
		semByID[h.PassageID] = h.Cosine
	}

	lBest := lexHits[0].Score
	for _, h := range lexHits {
		if h.Score > lBest {
			lBest = h.Score
		}
	}

	results := make([]Result, len(lexHits))
	for i, h := range lexHits {
		lexNorm := clamp01(1 - (lBest-h.Score)/fusionWidth)

		cosine, hasSem := semByID[h.PassageID]
		semNorm := 0.0
		if hasSem {
			semNorm = clamp01(cosine)
		}

		strongLex := h.Score > lexicalThreshold
		strongSem := hasSem && cosine > semanticThreshold

		class := classify(strongLex, strongSem, embedderDown)

		results[i] = Result{
			PassageID:     h.PassageID,
			Score:         0.5*lexNorm + 0.5*semNorm,
			LexicalScore:  h.Score,
			HasLexical:    true,
			SemanticScore: semNorm,
			HasSemantic:   hasSem && !embedderDown,
			Class:         class,
		}
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if results[i].SemanticScore != results[j].SemanticScore {
			return results[i].SemanticScore > results[j].SemanticScore
		}
		return results[i].PassageID < results[j].PassageID
	})
	return results
}

func classify(strongLex, strongSem, embedderDown bool) MatchClass {
	if embedderDown {
		return ClassKeyword
	}
	switch {
	case strongLex && strongSem:
		return ClassHybrid
	case strongLex:
		return ClassKeyword
	case strongSem:
		return ClassSemantic
	default:
		return ClassKeyword
	}
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

// attachPreviews fills FilePath, Heading, and a collapsed-whitespace,
// ≤200-char Preview for each result by loading its passage body.
func (o *Orchestrator) attachPreviews(ctx context.Context, results []Result) error {
	if len(results) == 0 {
		return nil
	}
	ids := make([]int64, len(results))
	for i, r := range results {
		ids[i] = r.PassageID
	}
	passages, err := o.s.GetPassages(ctx, ids)
	if err != nil {
		return noteerr.SearchIndex(err)
	}
	for i := range results {
		p, ok := passages[results[i].PassageID]
		if !ok {
			continue
		}
		results[i].FilePath = p.FilePath
		results[i].Heading = p.Heading
		results[i].Preview = preview(p.Content)
	}
	return nil
}

func preview(content string) string {
	collapsed := strings.Join(strings.Fields(content), " ")
	if len(collapsed) > 200 {
		return collapsed[:200]
	}
	return collapsed
}
