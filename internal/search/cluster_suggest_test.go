package search

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

// newSuggestFixture builds a store with two clusters: "databases" holding
// two passages that match the query and "networking" holding one.
func newSuggestFixture(t *testing.T) (*Orchestrator, *store.Store) {
	t.Helper()
	s := newTestStore(t)
	ctx := context.Background()

	inserted, err := s.ReplaceFile(ctx, store.File{Path: "notes.md", Hash: "h1"}, []store.Passage{
		{Heading: "Postgres Indexing", HasHeading: true, Ordinal: 0, Content: "btree indexing strategies", ContentLen: 25},
		{Heading: "Postgres Vacuum", HasHeading: true, Ordinal: 1, Content: "vacuum and indexing health", ContentLen: 26},
		{Heading: "TCP Windows", HasHeading: true, Ordinal: 2, Content: "congestion and indexing of segments", ContentLen: 35},
	})
	require.NoError(t, err)

	clusters := []store.Cluster{
		{Method: "kmeans", K: 2, Name: "databases", Size: 2, Centroid: []float32{1, 0}},
		{Method: "kmeans", K: 2, Name: "networking", Size: 1, Centroid: []float32{0, 1}},
	}
	members := map[int64][]int64{
		0: {inserted[0].ID, inserted[1].ID},
		1: {inserted[2].ID},
	}
	require.NoError(t, s.ReplaceClusters(ctx, "kmeans", clusters, members))

	// nil embedder: the suggest pass runs lexical-only, which is the
	// degraded path every other pipeline stage must tolerate.
	orch := NewOrchestrator(NewLexicalSearcher(s.Lexical()), s, nil)
	return orch, s
}

func TestSuggestClusters_RanksMultiMemberClusterFirst(t *testing.T) {
	orch, _ := newSuggestFixture(t)

	got, err := orch.SuggestClusters(context.Background(), "indexing", 200, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)

	// The singleton cluster is retained but deprioritized.
	assert.Equal(t, "databases", got[0].Name)
	assert.Equal(t, "networking", got[1].Name)
	for _, c := range got {
		assert.GreaterOrEqual(t, c.Score, 0.0)
		assert.LessOrEqual(t, c.Score, 1.0)
	}
}

func TestSuggestClusters_NeverReturnsMoreThanLimit(t *testing.T) {
	orch, _ := newSuggestFixture(t)

	got, err := orch.SuggestClusters(context.Background(), "indexing", 200, 1)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestSuggestClusters_EmptyQueryReturnsEmpty(t *testing.T) {
	orch, _ := newSuggestFixture(t)

	got, err := orch.SuggestClusters(context.Background(), "", 200, 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSuggestClusters_UnclusteredMatchesContributeNothing(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.ReplaceFile(ctx, store.File{Path: "a.md", Hash: "h1"}, []store.Passage{
		{Heading: "Orphan", HasHeading: true, Ordinal: 0, Content: "matching text", ContentLen: 13},
	})
	require.NoError(t, err)

	orch := NewOrchestrator(NewLexicalSearcher(s.Lexical()), s, nil)
	got, err := orch.SuggestClusters(ctx, "matching", 200, 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestOrchestratorSearch_LexicalOnlyWhenEmbedderNil(t *testing.T) {
	orch, _ := newSuggestFixture(t)

	results, err := orch.Search(context.Background(), "postgres", 200, 10)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	for _, r := range results {
		assert.Equal(t, ClassKeyword, r.Class)
		assert.False(t, r.HasSemantic)
		assert.Zero(t, r.SemanticScore)
		assert.NotEmpty(t, r.Preview)
	}
}
