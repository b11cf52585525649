package cluster

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	noteerr "github.com/noterank/noterank/internal/errors"
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

// seedEmbedded inserts one passage per vector and saves its embedding,
// returning ids in insertion order.
func seedEmbedded(t *testing.T, s *store.Store, vectors [][]float32) []int64 {
	t.Helper()
	ctx := context.Background()

	passages := make([]store.Passage, len(vectors))
	for i := range vectors {
		passages[i] = store.Passage{Heading: "Topic", HasHeading: true, Ordinal: i, Content: "body text", ContentLen: 9}
	}
	inserted, err := s.ReplaceFile(ctx, store.File{Path: "corpus.md", Hash: "h1"}, passages)
	require.NoError(t, err)

	ids := make([]int64, len(inserted))
	embeddings := make([]store.Embedding, len(inserted))
	for i, p := range inserted {
		ids[i] = p.ID
		embeddings[i] = store.Embedding{PassageID: p.ID, Model: "test-model", Dims: len(vectors[i]), Vector: vectors[i]}
	}
	require.NoError(t, s.SaveEmbeddings(ctx, embeddings))
	require.NoError(t, s.SetState(ctx, store.StateKeyCorpusHash, "fixed-corpus-hash"))
	return ids
}

// twoGroupVectors is five near-duplicates plus one orthogonal outlier.
func twoGroupVectors() [][]float32 {
	return [][]float32{
		{1, 0}, {0.99, 0.14}, {0.98, 0.2}, {0.97, 0.24}, {0.96, 0.28},
		{0, 1},
	}
}

func TestRun_SeparatesNearDuplicatesFromOutlier(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ids := seedEmbedded(t, s, twoGroupVectors())

	require.NoError(t, Run(ctx, s, Options{Model: "test-model", K: 2}))

	clusters, err := s.ListClusters(ctx, Method)
	require.NoError(t, err)
	require.Len(t, clusters, 2)

	outlierCluster, ok, err := s.ClusterOfPassage(ctx, ids[5])
	require.NoError(t, err)
	require.True(t, ok)
	outlierMembers, err := s.ClusterMembers(ctx, outlierCluster)
	require.NoError(t, err)
	assert.Equal(t, []int64{ids[5]}, outlierMembers)

	for _, id := range ids[:5] {
		c, ok, err := s.ClusterOfPassage(ctx, id)
		require.NoError(t, err)
		require.True(t, ok)
		assert.NotEqual(t, outlierCluster, c)
	}
}

func TestRun_SizeMatchesMembersAndCentroidsAreUnitNorm(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedEmbedded(t, s, twoGroupVectors())

	require.NoError(t, Run(ctx, s, Options{Model: "test-model", K: 2}))

	clusters, err := s.ListClusters(ctx, Method)
	require.NoError(t, err)
	for _, c := range clusters {
		members, err := s.ClusterMembers(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, c.Size, len(members))
		assert.NotEmpty(t, c.Name)

		var norm float64
		for _, v := range c.Centroid {
			norm += float64(v) * float64(v)
		}
		assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-4)
	}
}

func TestRun_DeterministicForFixedCorpusHash(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ids := seedEmbedded(t, s, twoGroupVectors())

	membership := func() map[int64]int64 {
		out := make(map[int64]int64, len(ids))
		for _, id := range ids {
			c, ok, err := s.ClusterOfPassage(ctx, id)
			require.NoError(t, err)
			require.True(t, ok)
			out[id] = c
		}
		return out
	}

	require.NoError(t, Run(ctx, s, Options{Model: "test-model", K: 2}))
	first := membership()
	firstClusters, err := s.ListClusters(ctx, Method)
	require.NoError(t, err)

	// Rerunning against the same corpus hash reassigns identical groups
	// (cluster ids advance because prior rows are dropped, so compare
	// groupings by co-membership rather than raw ids).
	require.NoError(t, Run(ctx, s, Options{Model: "test-model", K: 2}))
	second := membership()
	secondClusters, err := s.ListClusters(ctx, Method)
	require.NoError(t, err)

	require.Len(t, secondClusters, len(firstClusters))
	for _, a := range ids {
		for _, b := range ids {
			assert.Equal(t, first[a] == first[b], second[a] == second[b],
				"passages %d and %d changed co-membership between runs", a, b)
		}
	}
}

func TestRun_NotEnoughDataOnEmptyStore(t *testing.T) {
	s := newTestStore(t)
	err := Run(context.Background(), s, Options{Model: "test-model"})
	assert.Equal(t, noteerr.ErrCodeClusterNotEnoughData, noteerr.Code(err))
}

func TestRun_SinglePassageProducesOneClusterOfSizeOne(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ids := seedEmbedded(t, s, [][]float32{{1, 0}})

	require.NoError(t, Run(ctx, s, Options{Model: "test-model"}))

	clusters, err := s.ListClusters(ctx, Method)
	require.NoError(t, err)
	require.Len(t, clusters, 1)
	assert.Equal(t, 1, clusters[0].Size)

	members, err := s.ClusterMembers(ctx, clusters[0].ID)
	require.NoError(t, err)
	assert.Equal(t, ids, members)
}
