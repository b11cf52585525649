package recommend

import (
	"context"
	"sort"
)

// FileResult is one related-file hit.
type FileResult struct {
	FilePath      string
	Score         float64
	Reason        Reason
	MatchedChunks int
	TopPassageIDs []int64
}

const maxTopPassageIDs = 5

// RelatedFiles aggregates passage-level relatedness to files: the
// passage-level result is oversampled to max(50, 5k) internally, then
// grouped by file_path. File score is the max passage score in that file;
// reason is the reason of the best-scoring passage in the file. Ties
// break by (a) more matched passages, (b) lower minimum passage id.
func (r *Recommender) RelatedFiles(ctx context.Context, passageID int64, mode Mode, k int) ([]FileResult, error) {
	oversample := 5 * k
	if oversample < 50 {
		oversample = 50
	}

	passages, err := r.RelatedPassages(ctx, passageID, mode, oversample)
	if err != nil {
		return nil, err
	}

	type fileAccum struct {
		bestScore  float64
		bestReason Reason
		minID      int64
		count      int
		topIDs     []int64
	}
	byFile := make(map[string]*fileAccum)
	var order []string

	for _, p := range passages {
		a, ok := byFile[p.FilePath]
		if !ok {
			a = &fileAccum{minID: p.PassageID}
			byFile[p.FilePath] = a
			order = append(order, p.FilePath)
		}
		a.count++
		if p.PassageID < a.minID {
			a.minID = p.PassageID
		}
		if p.Score > a.bestScore || a.count == 1 {
			a.bestScore = p.Score
			a.bestReason = p.Reason
		}
		if len(a.topIDs) < maxTopPassageIDs {
			a.topIDs = append(a.topIDs, p.PassageID)
		}
	}

	out := make([]FileResult, 0, len(order))
	for _, filePath := range order {
		a := byFile[filePath]
		sort.Slice(a.topIDs, func(i, j int) bool { return a.topIDs[i] < a.topIDs[j] })
		out = append(out, FileResult{
			FilePath:      filePath,
			Score:         a.bestScore,
			Reason:        a.bestReason,
			MatchedChunks: a.count,
			TopPassageIDs: a.topIDs,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		ai, aj := byFile[out[i].FilePath], byFile[out[j].FilePath]
		if ai.count != aj.count {
			return ai.count > aj.count
		}
		return ai.minID < aj.minID
	})

	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}
