package recommend

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noterank/noterank/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "notes.db")
	s, err := store.Open(dbPath, "sqlite")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// seedPassages inserts one file with the given bodies as separate passages
// (one per body, without headings) and returns their assigned ids in
// insertion order.
func seedPassages(t *testing.T, s *store.Store, filePath string, bodies []string) []int64 {
	t.Helper()
	ctx := context.Background()
	passages := make([]store.Passage, len(bodies))
	for i, b := range bodies {
		passages[i] = store.Passage{Ordinal: i, Content: b, ContentLen: len(b)}
	}
	inserted, err := s.ReplaceFile(ctx, store.File{Path: filePath, Hash: "h-" + filePath}, passages)
	require.NoError(t, err)
	ids := make([]int64, len(inserted))
	for i, p := range inserted {
		ids[i] = p.ID
	}
	return ids
}

func seedEmbedding(t *testing.T, s *store.Store, passageID int64, vec []float32) {
	t.Helper()
	err := s.SaveEmbeddings(context.Background(), []store.Embedding{
		{PassageID: passageID, Model: "test-model", Dims: len(vec), Vector: vec},
	})
	require.NoError(t, err)
}

func TestRelatedPassages_EmbedMode_ExcludesSelfAndRanksByCosine(t *testing.T) {
	s := newTestStore(t)
	ids := seedPassages(t, s, "a.md", []string{"alpha body", "beta body", "gamma body"})

	// id0 is the query passage; id1 is near-identical, id2 is orthogonal.
	seedEmbedding(t, s, ids[0], []float32{1, 0})
	seedEmbedding(t, s, ids[1], []float32{0.99, 0.14})
	seedEmbedding(t, s, ids[2], []float32{0, 1})

	r := New(s, "test-model")
	got, err := r.RelatedPassages(context.Background(), ids[0], ModeEmbed, 1)
	require.NoError(t, err)

	require.Len(t, got, 1) // k=1 caps at the single positive-cosine match
	assert.Equal(t, ids[1], got[0].PassageID)
	assert.Equal(t, ReasonSemanticSimilarity, got[0].Reason)

	for _, p := range got {
		assert.NotEqual(t, ids[0], p.PassageID)
	}
}

func TestRelatedPassages_EmbedMode_PadsWithNonPositiveWhenFewerThanK(t *testing.T) {
	s := newTestStore(t)
	ids := seedPassages(t, s, "a.md", []string{"alpha", "beta", "gamma"})

	seedEmbedding(t, s, ids[0], []float32{1, 0})
	seedEmbedding(t, s, ids[1], []float32{0.99, 0.14})
	seedEmbedding(t, s, ids[2], []float32{-1, 0}) // cosine -1, would normally be dropped

	r := New(s, "test-model")
	got, err := r.RelatedPassages(context.Background(), ids[0], ModeEmbed, 2)
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, ids[1], got[0].PassageID)
	assert.Equal(t, ids[2], got[1].PassageID)
	assert.Equal(t, 0.0, got[1].Score)
}

func TestRelatedPassages_EmbedMode_Symmetry(t *testing.T) {
	s := newTestStore(t)
	ids := seedPassages(t, s, "a.md", []string{"one", "two"})

	seedEmbedding(t, s, ids[0], []float32{0.6, 0.8})
	seedEmbedding(t, s, ids[1], []float32{0.8, 0.6})

	r := New(s, "test-model")
	ctx := context.Background()

	fwd, err := r.RelatedPassages(ctx, ids[0], ModeEmbed, 10)
	require.NoError(t, err)
	back, err := r.RelatedPassages(ctx, ids[1], ModeEmbed, 10)
	require.NoError(t, err)

	require.Len(t, fwd, 1)
	require.Len(t, back, 1)
	assert.InDelta(t, fwd[0].Score, back[0].Score, 1e-6)
}

func TestRelatedPassages_ClusterMode_RanksByCosineToInput(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ids := seedPassages(t, s, "a.md", []string{"x", "y", "z", "unrelated"})

	seedEmbedding(t, s, ids[0], []float32{1, 0})
	seedEmbedding(t, s, ids[1], []float32{0.9, 0.3})
	seedEmbedding(t, s, ids[2], []float32{0.5, 0.5})
	seedEmbedding(t, s, ids[3], []float32{0, 1})

	clusters := []store.Cluster{{K: 2, Name: "topic", Size: 3, Centroid: []float32{0.8, 0.2}}}
	members := map[int64][]int64{0: {ids[0], ids[1], ids[2]}}
	require.NoError(t, s.ReplaceClusters(ctx, "kmeans", clusters, members))

	r := New(s, "test-model")
	got, err := r.RelatedPassages(ctx, ids[0], ModeCluster, 10)
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, ids[1], got[0].PassageID) // closer to ids[0] than ids[2] is
	assert.Equal(t, ids[2], got[1].PassageID)
	for _, p := range got {
		assert.Equal(t, ReasonSameTopic, p.Reason)
		assert.NotEqual(t, ids[3], p.PassageID) // unclustered passage never appears
	}
}

func TestRelatedPassages_ClusterMode_UnclusteredPassageReturnsEmpty(t *testing.T) {
	s := newTestStore(t)
	ids := seedPassages(t, s, "a.md", []string{"lonely"})

	r := New(s, "test-model")
	got, err := r.RelatedPassages(context.Background(), ids[0], ModeCluster, 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRelatedPassages_InvalidMode(t *testing.T) {
	s := newTestStore(t)
	r := New(s, "test-model")
	_, err := r.RelatedPassages(context.Background(), 1, Mode("bogus"), 10)
	assert.Error(t, err)
}

func TestRelatedFiles_AggregatesByMaxScoreAndBestReason(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// File "x" has two passages close to the query; file "y" has one
	// passage slightly further away.
	queryID := seedPassages(t, s, "q.md", []string{"query"})[0]
	xIDs := seedPassages(t, s, "x.md", []string{"x one", "x two"})
	yIDs := seedPassages(t, s, "y.md", []string{"y one"})

	seedEmbedding(t, s, queryID, []float32{1, 0})
	seedEmbedding(t, s, xIDs[0], []float32{0.99, 0.14})
	seedEmbedding(t, s, xIDs[1], []float32{0.9, 0.43})
	seedEmbedding(t, s, yIDs[0], []float32{0.5, 0.86})

	r := New(s, "test-model")
	got, err := r.RelatedFiles(ctx, queryID, ModeEmbed, 2)
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, "x.md", got[0].FilePath)
	assert.Equal(t, 2, got[0].MatchedChunks)
	assert.Equal(t, ReasonSemanticSimilarity, got[0].Reason)
	assert.Equal(t, "y.md", got[1].FilePath)
	assert.Equal(t, 1, got[1].MatchedChunks)

	// Deterministic top-passage-id ordering within a file.
	assert.Equal(t, []int64{xIDs[0], xIDs[1]}, got[0].TopPassageIDs)
}

func TestRelatedFiles_TruncatesToK(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	queryID := seedPassages(t, s, "q.md", []string{"query"})[0]
	seedEmbedding(t, s, queryID, []float32{1, 0})
	for _, f := range []string{"a.md", "b.md", "c.md"} {
		id := seedPassages(t, s, f, []string{"body"})[0]
		seedEmbedding(t, s, id, []float32{0.9, 0.1})
	}

	r := New(s, "test-model")
	got, err := r.RelatedFiles(ctx, queryID, ModeEmbed, 1)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
