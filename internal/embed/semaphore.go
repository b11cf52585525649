package embed

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// boundedBatcher runs batchFn over chunks of texts with at most width
// batches in flight at once; the backend must never be assumed to have
// concurrent capacity beyond that. Results preserve input order.
func boundedBatcher(ctx context.Context, texts []string, batchSize, width int, batchFn func(context.Context, []string) ([][]float32, error)) ([][]float32, error) {
	if width <= 0 {
		width = 1
	}
	if batchSize <= 0 {
		batchSize = len(texts)
		if batchSize == 0 {
			batchSize = 1
		}
	}

	type batch struct {
		start int
		texts []string
	}
	var batches []batch
	for start := 0; start < len(texts); start += batchSize {
		end := start + batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batches = append(batches, batch{start: start, texts: texts[start:end]})
	}

	out := make([][]float32, len(texts))
	sem := semaphore.NewWeighted(int64(width))
	errCh := make(chan error, len(batches))

	for _, b := range batches {
		b := b
		if err := sem.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		go func() {
			defer sem.Release(1)
			vecs, err := batchFn(ctx, b.texts)
			if err != nil {
				errCh <- err
				return
			}
			copy(out[b.start:b.start+len(vecs)], vecs)
			errCh <- nil
		}()
	}

	for range batches {
		if err := <-errCh; err != nil {
			return nil, err
		}
	}

	return out, nil
}
