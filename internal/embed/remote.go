package embed

import (
	"context"
	"fmt"
	"strings"
	"sync"

	openai "github.com/sashabaranov/go-openai"

	noteerr "github.com/noterank/noterank/internal/errors"
)

// RemoteConfig configures the OpenAI-compatible remote embedder backend.
type RemoteConfig struct {
	APIBase     string
	APIKey      string
	Model       string
	Dimensions  int
	BatchSize   int
	Concurrency int
	Retry       RetryConfig
}

// RemoteEmbedder calls an OpenAI-compatible embeddings endpoint, batched
// and bounded by a semaphore, with exponential-backoff retry on transient
// 429/5xx responses.
type RemoteEmbedder struct {
	client *openai.Client
	cfg    RemoteConfig

	mu     sync.RWMutex
	closed bool
}

var _ Embedder = (*RemoteEmbedder)(nil)

func NewRemoteEmbedder(cfg RemoteConfig) (*RemoteEmbedder, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, noteerr.SearchEmbedderDown(fmt.Errorf("remote embedder requires an API key"))
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 32
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.Retry == (RetryConfig{}) {
		cfg.Retry = DefaultRetryConfig()
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.APIBase != "" {
		clientCfg.BaseURL = cfg.APIBase
	}

	return &RemoteEmbedder{
		client: openai.NewClientWithConfig(clientCfg),
		cfg:    cfg,
	}, nil
}

func (e *RemoteEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return nil, noteerr.SearchEmbedderDown(errClosed)
	}
	if len(texts) == 0 {
		return nil, nil
	}

	return boundedBatcher(ctx, texts, e.cfg.BatchSize, e.cfg.Concurrency, e.embedBatchOnce)
}

func (e *RemoteEmbedder) embedBatchOnce(ctx context.Context, batch []string) ([][]float32, error) {
	// Preserve blank-input semantics: an all-whitespace text embeds to the
	// zero vector without a round trip, matching the local backend.
	indices := make([]int, 0, len(batch))
	nonEmpty := make([]string, 0, len(batch))
	for i, t := range batch {
		if strings.TrimSpace(t) != "" {
			indices = append(indices, i)
			nonEmpty = append(nonEmpty, t)
		}
	}

	out := make([][]float32, len(batch))
	for i := range out {
		out[i] = make([]float32, e.cfg.Dimensions)
	}
	if len(nonEmpty) == 0 {
		return out, nil
	}

	var resp openai.EmbeddingResponse
	err := withRetry(ctx, e.cfg.Retry, func() (bool, error) {
		r, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
			Input: nonEmpty,
			Model: openai.EmbeddingModel(e.cfg.Model),
		})
		if err != nil {
			var apiErr *openai.APIError
			if ok := asAPIError(err, &apiErr); ok {
				return isTransientStatus(apiErr.HTTPStatusCode), err
			}
			return true, err
		}
		resp = r
		return false, nil
	})
	if err != nil {
		return nil, noteerr.SearchEmbedderDown(err)
	}
	if len(resp.Data) != len(nonEmpty) {
		return nil, noteerr.SearchEmbedderDown(fmt.Errorf("embedding count mismatch: got %d, want %d", len(resp.Data), len(nonEmpty)))
	}

	for j, d := range resp.Data {
		vec := make([]float32, len(d.Embedding))
		copy(vec, d.Embedding)
		out[indices[j]] = normalizeVector(vec)
	}
	return out, nil
}

func asAPIError(err error, target **openai.APIError) bool {
	if apiErr, ok := err.(*openai.APIError); ok {
		*target = apiErr
		return true
	}
	return false
}

func (e *RemoteEmbedder) Dimensions() int   { return e.cfg.Dimensions }
func (e *RemoteEmbedder) ModelName() string { return e.cfg.Model }

func (e *RemoteEmbedder) Available(ctx context.Context) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return false
	}
	_, err := e.client.ListModels(ctx)
	return err == nil
}

func (e *RemoteEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}
