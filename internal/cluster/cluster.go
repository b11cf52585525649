package cluster

import (
	"context"
	"hash/fnv"

	noteerr "github.com/noterank/noterank/internal/errors"
	"github.com/noterank/noterank/internal/store"
)

// Method is the tag persisted with every cluster row this package writes;
// readers pass it back to Store.ListClusters to see the active clustering.
const Method = "kmeans"

// topProximityForLabeling is how many passages near each centroid feed
// label extraction.
const topProximityForLabeling = 10

// Options configures one clustering run.
type Options struct {
	Model string // embedding model id to cluster
	K     int    // 0 means the round(sqrt(N/2)) heuristic
	Namer Namer  // FallbackNamer{} if no LLM adapter is configured
}

// Run is the offline clustering build: load every embedding for Model,
// run spherical k-means with a corpus-hash-derived deterministic seed,
// label each cluster, and persist atomically via Store.ReplaceClusters.
func Run(ctx context.Context, s *store.Store, opts Options) error {
	embeddings, err := s.GetAllEmbeddings(ctx, opts.Model)
	if err != nil {
		return err
	}
	if len(embeddings) == 0 {
		return noteerr.ClusterNotEnoughData(0, 1)
	}

	points := make([]Point, len(embeddings))
	for i, e := range embeddings {
		points[i] = Point{PassageID: e.PassageID, Vector: e.Vector}
	}

	corpusHash, _, err := s.GetState(ctx, store.StateKeyCorpusHash)
	if err != nil {
		return err
	}
	seed := hashSeed(corpusHash)

	k := opts.K
	if k <= 0 {
		k = TargetK(len(points))
	}
	if k > len(points) {
		k = len(points)
	}
	assignment := KMeans(points, k, seed)

	namer := opts.Namer
	if namer == nil {
		namer = FallbackNamer{}
	}

	clusters := make([]store.Cluster, k)
	members := make(map[int64][]int64, k)
	byCluster := groupByCluster(points, assignment.ClusterOf, k)

	for c := 0; c < k; c++ {
		memberPoints := byCluster[c]
		memberIDs := make([]int64, len(memberPoints))
		for i, p := range memberPoints {
			memberIDs[i] = p.PassageID
		}
		members[int64(c)] = memberIDs

		topIDs := TopNByProximity(memberPoints, assignment.Centroids[c], topProximityForLabeling)
		headings, bodies, err := headingsAndBodies(ctx, s, topIDs)
		if err != nil {
			return err
		}

		labelTokens := ExtractLabelTokens(headings, bodies)
		naming, err := namer.Name(ctx, headings, labelTokens)
		if err != nil || naming.Name == "" {
			naming = Naming{Name: FallbackName(labelTokens)}
		}

		clusters[c] = store.Cluster{
			Method:   Method,
			K:        k,
			Name:     naming.Name,
			Summary:  naming.Summary,
			Size:     len(memberIDs),
			Centroid: assignment.Centroids[c],
		}
	}

	return s.ReplaceClusters(ctx, Method, clusters, members)
}

func groupByCluster(points []Point, clusterOf map[int64]int, k int) [][]Point {
	out := make([][]Point, k)
	for _, p := range points {
		c := clusterOf[p.PassageID]
		out[c] = append(out[c], p)
	}
	return out
}

func headingsAndBodies(ctx context.Context, s *store.Store, ids []int64) ([]string, []string, error) {
	passages, err := s.GetPassages(ctx, ids)
	if err != nil {
		return nil, nil, err
	}
	var headings, bodies []string
	for _, id := range ids {
		p, ok := passages[id]
		if !ok {
			continue
		}
		if p.HasHeading {
			headings = append(headings, p.Heading)
		}
		bodies = append(bodies, p.Content)
	}
	return headings, bodies, nil
}

// hashSeed derives a deterministic int64 RNG seed from the corpus hash
// state value, so rebuilds against the same corpus reproduce identical
// cluster assignments.
func hashSeed(corpusHash string) int64 {
	h := fnv.New64a()
	h.Write([]byte(corpusHash))
	return int64(h.Sum64())
}
