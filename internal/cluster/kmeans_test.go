package cluster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTargetK_ClampsToMinAndMax(t *testing.T) {
	assert.Equal(t, 1, TargetK(1))     // n itself caps k even though the heuristic wants minK
	assert.Equal(t, 0, TargetK(0))     // no points, no clusters
	assert.Equal(t, 8, TargetK(50))    // round(sqrt(25)) = 5, clamped to minK
	assert.Equal(t, 14, TargetK(400))  // round(sqrt(200)) = 14
	assert.Equal(t, 128, TargetK(1_000_000)) // clamped to maxK
}

func unitVec(x, y float32) []float32 {
	return normalizeUnit([]float32{x, y})
}

func TestKMeans_SeparatesObviousClusters(t *testing.T) {
	// Given: two tight, well-separated clusters of unit vectors
	points := []Point{
		{PassageID: 1, Vector: unitVec(1, 0.01)},
		{PassageID: 2, Vector: unitVec(1, -0.01)},
		{PassageID: 3, Vector: unitVec(0.99, 0.02)},
		{PassageID: 4, Vector: unitVec(0.01, 1)},
		{PassageID: 5, Vector: unitVec(-0.01, 1)},
		{PassageID: 6, Vector: unitVec(0.02, 0.99)},
	}

	assignment := KMeans(points, 2, 42)

	require.Len(t, assignment.ClusterOf, 6)
	// The first three points should land in one cluster, the last three in
	// the other.
	a := assignment.ClusterOf[1]
	assert.Equal(t, a, assignment.ClusterOf[2])
	assert.Equal(t, a, assignment.ClusterOf[3])

	b := assignment.ClusterOf[4]
	assert.Equal(t, b, assignment.ClusterOf[5])
	assert.Equal(t, b, assignment.ClusterOf[6])

	assert.NotEqual(t, a, b)
}

func TestKMeans_DeterministicForFixedSeed(t *testing.T) {
	points := []Point{
		{PassageID: 1, Vector: unitVec(1, 0)},
		{PassageID: 2, Vector: unitVec(0, 1)},
		{PassageID: 3, Vector: unitVec(1, 1)},
		{PassageID: 4, Vector: unitVec(-1, 0)},
	}

	a := KMeans(points, 2, 7)
	b := KMeans(points, 2, 7)

	assert.Equal(t, a.ClusterOf, b.ClusterOf)
}

func TestKMeans_KClampedToPointCount(t *testing.T) {
	points := []Point{
		{PassageID: 1, Vector: unitVec(1, 0)},
		{PassageID: 2, Vector: unitVec(0, 1)},
	}

	assignment := KMeans(points, 10, 1)

	assert.Len(t, assignment.Centroids, 2)
}

func TestKMeans_ZeroK(t *testing.T) {
	assignment := KMeans(nil, 0, 1)
	assert.Empty(t, assignment.ClusterOf)
}

func TestTopNByProximity_OrdersByDescendingScoreThenID(t *testing.T) {
	points := []Point{
		{PassageID: 3, Vector: []float32{1, 0}},
		{PassageID: 1, Vector: []float32{1, 0}}, // ties with 3, lower id first
		{PassageID: 2, Vector: []float32{0, 1}},
	}

	top := TopNByProximity(points, []float32{1, 0}, 2)

	require.Len(t, top, 2)
	assert.Equal(t, int64(1), top[0])
	assert.Equal(t, int64(3), top[1])
}

func TestTopNByProximity_ClampsNToLength(t *testing.T) {
	points := []Point{{PassageID: 1, Vector: []float32{1, 0}}}
	top := TopNByProximity(points, []float32{1, 0}, 5)
	assert.Len(t, top, 1)
}
