// Package cluster implements the offline clusterer: spherical k-means over
// passage embeddings, label extraction, and optional LLM-assisted naming.
package cluster

import (
	"math"
	"math/rand"
	"sort"
)

const (
	minK           = 8
	maxK           = 128
	convergenceEps = 1e-4
	maxIterations  = 50
)

// TargetK picks a cluster count for n points: round(sqrt(n/2)), clamped
// to [8, 128] and never above n.
func TargetK(n int) int {
	k := int(math.Round(math.Sqrt(float64(n) / 2)))
	if k < minK {
		k = minK
	}
	if k > maxK {
		k = maxK
	}
	if k > n {
		k = n
	}
	return k
}

// Point is one vector to cluster, carrying the passage id it came from.
type Point struct {
	PassageID int64
	Vector    []float32
}

// Assignment is the clustering result: each point's cluster index and the
// renormalized unit-norm centroid of every cluster.
type Assignment struct {
	ClusterOf map[int64]int // passage id -> cluster index
	Centroids [][]float32
	Sizes     []int
}

// KMeans runs spherical k-means (cosine-equivalent k-means on unit-norm
// vectors) with k-means++ seeding from a fixed RNG seed, to convergence
// (centroid shift < convergenceEps) or maxIterations, whichever first.
// Renormalizes each centroid to unit length every iteration.
func KMeans(points []Point, k int, seed int64) Assignment {
	n := len(points)
	if k > n {
		k = n
	}
	if k < 1 {
		return Assignment{ClusterOf: map[int64]int{}}
	}

	rng := rand.New(rand.NewSource(seed))
	centroids := seedPlusPlus(points, k, rng)

	assign := make([]int, n)
	for iter := 0; iter < maxIterations; iter++ {
		changed := false
		for i, p := range points {
			best, bestScore := 0, -2.0
			for c, centroid := range centroids {
				score := dot(p.Vector, centroid)
				if score > bestScore {
					best, bestScore = c, score
				}
			}
			if assign[i] != best {
				changed = true
			}
			assign[i] = best
		}

		newCentroids := recompute(points, assign, k, len(centroids[0]))
		shift := maxShift(centroids, newCentroids)
		centroids = newCentroids

		if !changed || shift < convergenceEps {
			break
		}
	}

	clusterOf := make(map[int64]int, n)
	sizes := make([]int, k)
	for i, p := range points {
		clusterOf[p.PassageID] = assign[i]
		sizes[assign[i]]++
	}

	return Assignment{ClusterOf: clusterOf, Centroids: centroids, Sizes: sizes}
}

// seedPlusPlus picks k initial centroids via k-means++: each subsequent
// seed is chosen with probability proportional to its squared cosine
// distance from the nearest already-chosen seed.
func seedPlusPlus(points []Point, k int, rng *rand.Rand) [][]float32 {
	n := len(points)
	chosen := make([][]float32, 0, k)
	first := rng.Intn(n)
	chosen = append(chosen, cloneUnit(points[first].Vector))

	dist := make([]float64, n)
	for len(chosen) < k {
		var total float64
		for i, p := range points {
			best := math.Inf(1)
			for _, c := range chosen {
				d := 1 - dot(p.Vector, c)
				if d < best {
					best = d
				}
			}
			d2 := best * best
			dist[i] = d2
			total += d2
		}
		if total == 0 {
			// All remaining points coincide with chosen centroids; fill
			// deterministically in corpus order.
			idx := len(chosen) % n
			chosen = append(chosen, cloneUnit(points[idx].Vector))
			continue
		}
		target := rng.Float64() * total
		var cum float64
		picked := n - 1
		for i, d2 := range dist {
			cum += d2
			if cum >= target {
				picked = i
				break
			}
		}
		chosen = append(chosen, cloneUnit(points[picked].Vector))
	}
	return chosen
}

func recompute(points []Point, assign []int, k, dims int) [][]float32 {
	sums := make([][]float64, k)
	for i := range sums {
		sums[i] = make([]float64, dims)
	}
	counts := make([]int, k)

	for i, p := range points {
		c := assign[i]
		counts[c]++
		for d, v := range p.Vector {
			sums[c][d] += float64(v)
		}
	}

	out := make([][]float32, k)
	for c := range out {
		if counts[c] == 0 {
			// Empty cluster: keep a zero vector; seedPlusPlus's
			// diversity makes this rare, and the zero centroid scores 0
			// against every point, so next iteration it only wins a point
			// whose dot product with every other centroid is negative.
			out[c] = make([]float32, dims)
			continue
		}
		vec := make([]float32, dims)
		for d := range vec {
			vec[d] = float32(sums[c][d] / float64(counts[c]))
		}
		out[c] = normalizeUnit(vec)
	}
	return out
}

func maxShift(a, b [][]float32) float64 {
	var max float64
	for i := range a {
		shift := 1 - dot(a[i], b[i])
		if shift > max {
			max = shift
		}
	}
	return max
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

func normalizeUnit(v []float32) []float32 {
	var sumSq float64
	for _, f := range v {
		sumSq += float64(f) * float64(f)
	}
	if sumSq == 0 {
		return v
	}
	norm := float32(math.Sqrt(sumSq))
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = f / norm
	}
	return out
}

func cloneUnit(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	return normalizeUnit(out)
}

// TopNByProximity returns the N passage ids in points closest to centroid,
// best first, used for label extraction.
func TopNByProximity(points []Point, centroid []float32, n int) []int64 {
	type scored struct {
		id    int64
		score float64
	}
	scoredPts := make([]scored, len(points))
	for i, p := range points {
		scoredPts[i] = scored{id: p.PassageID, score: dot(p.Vector, centroid)}
	}
	sort.Slice(scoredPts, func(i, j int) bool {
		if scoredPts[i].score != scoredPts[j].score {
			return scoredPts[i].score > scoredPts[j].score
		}
		return scoredPts[i].id < scoredPts[j].id
	})
	if n > len(scoredPts) {
		n = len(scoredPts)
	}
	out := make([]int64, n)
	for i := 0; i < n; i++ {
		out[i] = scoredPts[i].id
	}
	return out
}
