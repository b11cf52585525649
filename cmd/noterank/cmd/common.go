package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/noterank/noterank/internal/config"
	"github.com/noterank/noterank/internal/embed"
	noteerr "github.com/noterank/noterank/internal/errors"
	"github.com/noterank/noterank/internal/store"
)

// resolveCorpusRoot returns args[0] if supplied, else the current
// directory.
func resolveCorpusRoot(args []string) (string, error) {
	if len(args) > 1 {
		return "", newUsageError(fmt.Sprintf("expected at most one path argument, got %d", len(args)))
	}
	if len(args) == 1 {
		return args[0], nil
	}
	return ".", nil
}

// loadConfig loads layered configuration for the corpus rooted at path,
// converting validation failures into usage errors (exit code 2).
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, newUsageError(err.Error())
	}
	return cfg, nil
}

// openStoreForBuild acquires the coarse cross-process build lock (a build
// in progress blocks a concurrent build, never readers) and opens the
// store, returning a cleanup func that releases the lock and closes the
// store. Callers must defer the cleanup.
func openStoreForBuild(cfg *config.Config) (*store.Store, func(), error) {
	lock := store.NewBuildLock(cfg.Store.Path)
	if err := lock.TryLock(); err != nil {
		return nil, nil, err
	}

	s, err := store.Open(cfg.Store.Path, cfg.Search.LexicalBackend)
	if err != nil {
		lock.Unlock()
		return nil, nil, err
	}

	cleanup := func() {
		s.Close()
		lock.Unlock()
	}
	return s, cleanup, nil
}

// newEmbedder constructs the configured Embedder backend; the API key only
// ever comes from the environment.
func newEmbedder(cfg *config.Config) (embed.Embedder, error) {
	e, err := embed.New(embed.Config{
		Backend:     cfg.Embeddings.Backend,
		Model:       cfg.Embeddings.Model,
		Dimensions:  cfg.Embeddings.Dimensions,
		BatchSize:   cfg.Embeddings.BatchSize,
		Concurrency: cfg.Embeddings.Concurrency,
		APIBase:     cfg.Embeddings.APIBase,
		APIKey:      cfg.Embeddings.APIKey,
	})
	if err != nil {
		return nil, noteerr.SearchEmbedderDown(err)
	}
	return e, nil
}

// buildContext returns a background context with a generous default
// deadline for offline build commands; builds are long-running by design
// but must still terminate.
func buildContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 2*time.Hour)
}
