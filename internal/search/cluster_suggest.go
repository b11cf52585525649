package search

import (
	"context"
	"sort"

	noteerr "github.com/noterank/noterank/internal/errors"
)

// SuggestClusters routes a query to topics: lexical candidates, semantic
// rerank, group by cluster membership, rank-weighted mean of member
// scores, min-max normalized across the returned clusters.
func (o *Orchestrator) SuggestClusters(ctx context.Context, query string, ftsK, limit int) ([]ClusterSuggestion, error) {
	lexHits, err := o.lexical.Search(ctx, query, ftsK)
	if err != nil {
		return nil, err
	}
	if len(lexHits) == 0 {
		return []ClusterSuggestion{}, nil
	}

	semHits, embedderDown := o.semanticRerank(ctx, query, lexHits)
	if err := ctx.Err(); err != nil {
		return nil, noteerr.RequestCancelled(err)
	}
	fused := fuse(lexHits, semHits, embedderDown)

	type clusterAccum struct {
		weightedSum float64
		weightTotal float64
		memberCount int
	}
	accum := make(map[int64]*clusterAccum)

	for rank, r := range fused {
		clusterID, ok, err := o.s.ClusterOfPassage(ctx, r.PassageID)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		// Higher-ranked members (earlier in fused, already sorted
		// best-first) count more: weight decays with rank position.
		weight := 1.0 / float64(rank+1)
		a, ok := accum[clusterID]
		if !ok {
			a = &clusterAccum{}
			accum[clusterID] = a
		}
		a.weightedSum += weight * r.Score
		a.weightTotal += weight
		a.memberCount++
	}

	type scored struct {
		clusterID int64
		raw       float64
		members   int
	}
	var scoredClusters []scored
	for id, a := range accum {
		mean := 0.0
		if a.weightTotal > 0 {
			mean = a.weightedSum / a.weightTotal
		}
		scoredClusters = append(scoredClusters, scored{clusterID: id, raw: mean, members: a.memberCount})
	}

	if len(scoredClusters) == 0 {
		return []ClusterSuggestion{}, nil
	}

	minScore, maxScore := scoredClusters[0].raw, scoredClusters[0].raw
	for _, c := range scoredClusters {
		if c.raw < minScore {
			minScore = c.raw
		}
		if c.raw > maxScore {
			maxScore = c.raw
		}
	}
	spread := maxScore - minScore

	out := make([]ClusterSuggestion, 0, len(scoredClusters))
	for _, c := range scoredClusters {
		norm := 1.0
		if spread > 0 {
			norm = (c.raw - minScore) / spread
		}
		cluster, err := o.s.GetCluster(ctx, c.clusterID)
		if err != nil {
			return nil, err
		}
		if cluster == nil {
			continue
		}
		out = append(out, ClusterSuggestion{ClusterID: c.clusterID, Name: cluster.Name, Score: norm})
	}

	// Clusters with fewer than two matched members are retained but
	// deprioritized: sort by score desc, then by cluster id for
	// determinism, then stably move them after every multi-member cluster.
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ClusterID < out[j].ClusterID
	})
	sort.SliceStable(out, func(i, j int) bool {
		iDeprioritized := accum[out[i].ClusterID].memberCount < 2
		jDeprioritized := accum[out[j].ClusterID].memberCount < 2
		return !iDeprioritized && jDeprioritized
	})

	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
