package embed

import (
	"fmt"
)

// Config selects and configures one of the Embedder backends. It mirrors
// internal/config.EmbeddingsConfig so the build CLIs don't need to import
// the config package's full surface.
type Config struct {
	Backend     string // "local" (default) or "remote"
	Model       string
	Dimensions  int
	BatchSize   int
	Concurrency int
	APIBase     string
	APIKey      string
}

// New constructs the configured Embedder backend.
func New(cfg Config) (Embedder, error) {
	switch cfg.Backend {
	case "", "local":
		return NewStaticEmbedder(), nil
	case "remote":
		return NewRemoteEmbedder(RemoteConfig{
			APIBase:     cfg.APIBase,
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			Dimensions:  cfg.Dimensions,
			BatchSize:   cfg.BatchSize,
			Concurrency: cfg.Concurrency,
		})
	default:
		return nil, fmt.Errorf("unknown embedder backend %q", cfg.Backend)
	}
}
