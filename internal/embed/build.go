package embed

import (
	"context"
	"strconv"

	"github.com/noterank/noterank/internal/store"
)

// BuildOptions configures one embed-build run.
type BuildOptions struct {
	BatchSize int // passages embedded per EmbedBatch call, default 32

	// Progress, if set, is called after every batch with the embedded and
	// pending-total counts so a CLI can report build progress.
	Progress func(embedded, total int)
}

// BuildResult summarizes an embed build.
type BuildResult struct {
	TotalPassages int
	Embedded      int
	Skipped       int // already embedded for this model, resumed past
}

// Run embeds every passage lacking an embedding for embedder's model,
// batching calls and checkpointing progress after every batch so an
// interrupted build resumes without re-embedding completed passages. A
// change of model identifier invalidates every embedding the previous
// model wrote.
func Run(ctx context.Context, s *store.Store, embedder Embedder, opts BuildOptions) (BuildResult, error) {
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = 32
	}

	model := embedder.ModelName()
	dims := embedder.Dimensions()

	prevModel, ok, err := s.GetState(ctx, store.StateKeyIndexModel)
	if err != nil {
		return BuildResult{}, err
	}
	if ok && prevModel != model {
		// Model changed: drop every embedding written by a different
		// model id before embedding anything new.
		if err := s.DeleteEmbeddingsForModel(ctx, model); err != nil {
			return BuildResult{}, err
		}
	}

	if err := s.SetState(ctx, store.StateKeyIndexModel, model); err != nil {
		return BuildResult{}, err
	}
	if err := s.SetState(ctx, store.StateKeyIndexDims, strconv.Itoa(dims)); err != nil {
		return BuildResult{}, err
	}

	total, err := s.CountPassages(ctx)
	if err != nil {
		return BuildResult{}, err
	}

	pending, err := s.PassagesMissingEmbedding(ctx, model)
	if err != nil {
		return BuildResult{}, err
	}

	res := BuildResult{TotalPassages: total, Skipped: total - len(pending)}
	if err := s.SetState(ctx, store.StateKeyBuildStage, store.BuildStageEmbedding); err != nil {
		return BuildResult{}, err
	}
	if err := s.SetState(ctx, store.StateKeyBuildTotal, strconv.Itoa(total)); err != nil {
		return BuildResult{}, err
	}

	for start := 0; start < len(pending); start += batchSize {
		end := start + batchSize
		if end > len(pending) {
			end = len(pending)
		}
		batch := pending[start:end]

		texts := make([]string, len(batch))
		for i, p := range batch {
			texts[i] = batchText(p)
		}

		vecs, err := embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return res, err
		}

		embeddings := make([]store.Embedding, len(batch))
		for i, p := range batch {
			embeddings[i] = store.Embedding{PassageID: p.ID, Model: model, Dims: dims, Vector: vecs[i]}
		}
		if err := s.SaveEmbeddings(ctx, embeddings); err != nil {
			return res, err
		}

		res.Embedded += len(batch)
		if err := s.SetState(ctx, store.StateKeyBuildEmbedded, strconv.Itoa(res.Embedded)); err != nil {
			return res, err
		}
		if opts.Progress != nil {
			opts.Progress(res.Embedded, len(pending))
		}

		select {
		case <-ctx.Done():
			return res, ctx.Err()
		default:
		}
	}

	corpusHash, err := s.ComputeCorpusHash(ctx)
	if err != nil {
		return res, err
	}
	if err := s.SetState(ctx, store.StateKeyCorpusHash, corpusHash); err != nil {
		return res, err
	}
	if err := s.SetState(ctx, store.StateKeyBuildStage, store.BuildStageComplete); err != nil {
		return res, err
	}

	return res, nil
}

// batchText is the text handed to the embedder for one passage: heading
// (when present) followed by body, so the vector captures the passage's
// topical framing as well as its content.
func batchText(p store.Passage) string {
	if p.HasHeading && p.Heading != "" {
		return p.Heading + "\n\n" + p.Content
	}
	return p.Content
}
