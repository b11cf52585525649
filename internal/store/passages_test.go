package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "notes.db")
	s, err := Open(dbPath, "sqlite")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestReplaceFile_AssignsIDsAndPreservesOrdinals(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	inserted, err := s.ReplaceFile(ctx, File{Path: "a.md", Hash: "h1"}, []Passage{
		{Heading: "One", HasHeading: true, Ordinal: 0, Content: "first body", ContentLen: 10},
		{Heading: "Two", HasHeading: true, Ordinal: 1, Content: "second body", ContentLen: 11},
	})
	require.NoError(t, err)
	require.Len(t, inserted, 2)
	assert.NotZero(t, inserted[0].ID)
	assert.Equal(t, "a.md", inserted[0].FilePath)

	got, err := s.GetPassagesByFile(ctx, "a.md")
	require.NoError(t, err)
	require.Len(t, got, 2)
	for i, p := range got {
		assert.Equal(t, i, p.Ordinal)
	}
}

func TestReplaceFile_ReplacesOldPassagesAndPostings(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	old, err := s.ReplaceFile(ctx, File{Path: "a.md", Hash: "h1"}, []Passage{
		{Heading: "Volcanoes", HasHeading: true, Ordinal: 0, Content: "magma chambers", ContentLen: 14},
	})
	require.NoError(t, err)

	fresh, err := s.ReplaceFile(ctx, File{Path: "a.md", Hash: "h2"}, []Passage{
		{Heading: "Glaciers", HasHeading: true, Ordinal: 0, Content: "ice flows", ContentLen: 9},
	})
	require.NoError(t, err)
	assert.NotEqual(t, old[0].ID, fresh[0].ID) // ids are never reused across a rebuild

	gone, err := s.GetPassage(ctx, old[0].ID)
	require.NoError(t, err)
	assert.Nil(t, gone)

	// The stale postings are gone with the row; only the new content matches.
	hits, err := s.Lexical().Search(ctx, "magma", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)

	hits, err = s.Lexical().Search(ctx, "glaciers", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, fresh[0].ID, hits[0].PassageID)
}

func TestLexicalSearch_HeadingTokenRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	inserted, err := s.ReplaceFile(ctx, File{Path: "notes/lists.md", Hash: "h1"}, []Passage{
		{Heading: "Linked Lists", HasHeading: true, Ordinal: 0, Content: "content about pointers", ContentLen: 22},
	})
	require.NoError(t, err)

	hits, err := s.Lexical().Search(ctx, "linked", 10)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, inserted[0].ID, hits[0].PassageID)
	assert.Negative(t, hits[0].Score) // raw bm25 output, less negative = better
}

func TestLexicalSearch_EmptyQueryAndEmptyIndex(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	hits, err := s.Lexical().Search(ctx, "", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)

	hits, err = s.Lexical().Search(ctx, "anything", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestBuildMatchQuery_DisjunctionAndPhrases(t *testing.T) {
	assert.Equal(t, `"linked" OR "lists"`, buildMatchQuery("linked lists"))
	assert.Equal(t, `"exact phrase" OR "other"`, buildMatchQuery(`"exact phrase" other`))
	assert.Equal(t, `"mixed case"`, buildMatchQuery(`"Mixed CASE"`))
	assert.Equal(t, "", buildMatchQuery("   "))
}

func TestGetPassages_MissingIDsAreAbsentNotErrors(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	inserted, err := s.ReplaceFile(ctx, File{Path: "a.md", Hash: "h1"}, []Passage{
		{Ordinal: 0, Content: "body", ContentLen: 4},
	})
	require.NoError(t, err)

	got, err := s.GetPassages(ctx, []int64{inserted[0].ID, 424242})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestSaveEmbeddings_NormalizesAndRoundTrips(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	inserted, err := s.ReplaceFile(ctx, File{Path: "a.md", Hash: "h1"}, []Passage{
		{Ordinal: 0, Content: "body", ContentLen: 4},
	})
	require.NoError(t, err)

	require.NoError(t, s.SaveEmbeddings(ctx, []Embedding{
		{PassageID: inserted[0].ID, Model: "m", Dims: 2, Vector: []float32{3, 4}},
	}))

	e, err := s.GetEmbedding(ctx, inserted[0].ID)
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.InDelta(t, 0.6, float64(e.Vector[0]), 1e-6)
	assert.InDelta(t, 0.8, float64(e.Vector[1]), 1e-6)
}

func TestSaveEmbeddings_RejectsDimsMismatch(t *testing.T) {
	s := newTestStore(t)
	err := s.SaveEmbeddings(context.Background(), []Embedding{
		{PassageID: 1, Model: "m", Dims: 3, Vector: []float32{1, 0}},
	})
	assert.Error(t, err)
}

func TestBuildMatrix_ParallelsIDsAndRows(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	inserted, err := s.ReplaceFile(ctx, File{Path: "a.md", Hash: "h1"}, []Passage{
		{Ordinal: 0, Content: "one", ContentLen: 3},
		{Ordinal: 1, Content: "two", ContentLen: 3},
	})
	require.NoError(t, err)
	require.NoError(t, s.SaveEmbeddings(ctx, []Embedding{
		{PassageID: inserted[0].ID, Model: "m", Dims: 2, Vector: []float32{1, 0}},
		{PassageID: inserted[1].ID, Model: "m", Dims: 2, Vector: []float32{0, 1}},
	}))

	m, err := BuildMatrix(ctx, s, "m")
	require.NoError(t, err)
	assert.Equal(t, 2, m.Len())
	assert.Equal(t, 2, m.Dims)
	assert.NotEmpty(t, m.SnapshotID)

	row, ok := m.RowFor(inserted[1].ID)
	require.True(t, ok)
	assert.Equal(t, float32(1), row[1])

	_, ok = m.RowFor(999999)
	assert.False(t, ok)
}

func TestReplaceClusters_DropsPriorMethodRows(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	inserted, err := s.ReplaceFile(ctx, File{Path: "a.md", Hash: "h1"}, []Passage{
		{Ordinal: 0, Content: "one", ContentLen: 3},
		{Ordinal: 1, Content: "two", ContentLen: 3},
	})
	require.NoError(t, err)

	first := []Cluster{{Method: "kmeans", K: 1, Name: "old", Size: 2, Centroid: []float32{1, 0}}}
	require.NoError(t, s.ReplaceClusters(ctx, "kmeans", first, map[int64][]int64{
		0: {inserted[0].ID, inserted[1].ID},
	}))

	second := []Cluster{
		{Method: "kmeans", K: 2, Name: "a", Size: 1, Centroid: []float32{1, 0}},
		{Method: "kmeans", K: 2, Name: "b", Size: 1, Centroid: []float32{0, 1}},
	}
	require.NoError(t, s.ReplaceClusters(ctx, "kmeans", second, map[int64][]int64{
		0: {inserted[0].ID},
		1: {inserted[1].ID},
	}))

	clusters, err := s.ListClusters(ctx, "kmeans")
	require.NoError(t, err)
	require.Len(t, clusters, 2)

	// One cluster per passage, enforced by the unique chunk_id index.
	for _, id := range []int64{inserted[0].ID, inserted[1].ID} {
		clusterID, ok, err := s.ClusterOfPassage(ctx, id)
		require.NoError(t, err)
		require.True(t, ok)
		members, err := s.ClusterMembers(ctx, clusterID)
		require.NoError(t, err)
		assert.Contains(t, members, id)
	}
}
