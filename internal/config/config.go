// Package config loads the layered YAML + environment configuration used
// by every noterank command: hardcoded defaults, then a project config
// file, then environment variables, highest precedence last.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the complete noterank configuration.
type Config struct {
	Version    int              `yaml:"version" json:"version"`
	Paths      PathsConfig      `yaml:"paths" json:"paths"`
	Store      StoreConfig      `yaml:"store" json:"store"`
	Search     SearchConfig     `yaml:"search" json:"search"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	Cluster    ClusterConfig    `yaml:"cluster" json:"cluster"`
	Perf       PerfConfig       `yaml:"performance" json:"performance"`
}

// PathsConfig configures which files ingestion considers.
type PathsConfig struct {
	Root      string   `yaml:"root" json:"root"`
	Extension string   `yaml:"extension" json:"extension"` // default ".md"
	Exclude   []string `yaml:"exclude" json:"exclude"`
}

// StoreConfig configures the on-disk SQLite store.
type StoreConfig struct {
	Path string `yaml:"path" json:"path"`
}

// SearchConfig configures the hybrid lexical+semantic fusion. The fusion
// arithmetic itself (lex_norm/semantic_norm, the -8.0/0.25 classification
// thresholds, W=10) is a wire-visible contract, so it is pinned as named
// constants in internal/search, not exposed here as free-floating config.
// What IS configurable is which lexical backend implements InvertedIndex
// and how many lexical candidates feed the reranker.
type SearchConfig struct {
	LexicalBackend  string `yaml:"lexical_backend" json:"lexical_backend"` // "sqlite" (default) or "bleve"
	CandidateLimit  int    `yaml:"candidate_limit" json:"candidate_limit"`
	UseHNSWRerank   bool   `yaml:"use_hnsw_rerank" json:"use_hnsw_rerank"`
	ClassifierCache int    `yaml:"classifier_cache_size" json:"classifier_cache_size"`
}

// EmbeddingsConfig selects and tunes the embedder adapter backend.
type EmbeddingsConfig struct {
	Backend     string `yaml:"backend" json:"backend"` // "local" (default, deterministic) or "remote"
	Model       string `yaml:"model" json:"model"`
	Dimensions  int    `yaml:"dimensions" json:"dimensions"`
	BatchSize   int    `yaml:"batch_size" json:"batch_size"`
	Concurrency int    `yaml:"concurrency" json:"concurrency"`
	APIBase     string `yaml:"api_base" json:"api_base"`
	APIKey      string `yaml:"-" json:"-"` // never serialized; comes from env only
}

// ClusterConfig configures the offline spherical k-means clusterer.
// MinK/MaxK are validated here but not passed to the clusterer, whose K
// heuristic clamps to the fixed range [8, 128].
type ClusterConfig struct {
	MinK    int    `yaml:"min_k" json:"min_k"`
	MaxK    int    `yaml:"max_k" json:"max_k"`
	NameLLM bool   `yaml:"name_llm" json:"name_llm"`
	Model   string `yaml:"model" json:"model"`
}

// PerfConfig holds performance settings for offline build commands.
// IngestWorkers is defaulted, read from the environment and validated; the
// ingest pipeline does not read it.
type PerfConfig struct {
	IngestWorkers int `yaml:"ingest_workers" json:"ingest_workers"`
}

// NewConfig returns the built-in defaults; every value is safe without a
// config file.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Paths: PathsConfig{
			Extension: ".md",
			Exclude:   []string{"**/.git/**", "**/node_modules/**"},
		},
		Store: StoreConfig{
			Path: defaultStorePath(),
		},
		Search: SearchConfig{
			LexicalBackend:  "sqlite",
			CandidateLimit:  200,
			UseHNSWRerank:   false,
			ClassifierCache: 512,
		},
		Embeddings: EmbeddingsConfig{
			Backend:     "local",
			Model:       "noterank-static-v1",
			Dimensions:  256,
			BatchSize:   32,
			Concurrency: 4,
			APIBase:     "https://api.openai.com/v1",
		},
		Cluster: ClusterConfig{
			MinK:    8,
			MaxK:    128,
			NameLLM: false,
			Model:   "gpt-4o-mini",
		},
		Perf: PerfConfig{
			IngestWorkers: runtime.NumCPU(),
		},
	}
}

func defaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".noterank", "notes.db")
	}
	return filepath.Join(home, ".noterank", "notes.db")
}

// Load resolves configuration for the corpus rooted at dir: defaults, then
// dir/.noterank.yaml (or .yml), then NOTERANK_* environment overrides.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()
	cfg.Paths.Root = dir

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadFromFile(dir string) error {
	for _, name := range []string{".noterank.yaml", ".noterank.yml"} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("parse config file %s: %w", path, err)
		}
		return nil
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("NOTERANK_CORPUS_ROOT"); v != "" {
		c.Paths.Root = v
	}
	if v := os.Getenv("NOTERANK_STORE_PATH"); v != "" {
		c.Store.Path = v
	}
	if v := os.Getenv("NOTERANK_EMBED_BACKEND"); v != "" {
		c.Embeddings.Backend = v
	}
	if v := os.Getenv("NOTERANK_EMBED_MODEL"); v != "" {
		c.Embeddings.Model = v
	}
	if v := os.Getenv("NOTERANK_EMBED_API_BASE"); v != "" {
		c.Embeddings.APIBase = v
	}
	c.Embeddings.APIKey = os.Getenv("NOTERANK_EMBED_API_KEY")
	if v := os.Getenv("NOTERANK_LEXICAL_BACKEND"); v != "" {
		c.Search.LexicalBackend = v
	}
	if v := os.Getenv("NOTERANK_INGEST_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Perf.IngestWorkers = n
		}
	}
}

// Validate enforces the bounds the core operations assume hold.
func (c *Config) Validate() error {
	if c.Search.LexicalBackend != "sqlite" && c.Search.LexicalBackend != "bleve" {
		return fmt.Errorf("search.lexical_backend must be \"sqlite\" or \"bleve\", got %q", c.Search.LexicalBackend)
	}
	if c.Embeddings.Backend != "local" && c.Embeddings.Backend != "remote" {
		return fmt.Errorf("embeddings.backend must be \"local\" or \"remote\", got %q", c.Embeddings.Backend)
	}
	if c.Embeddings.Backend == "remote" && strings.TrimSpace(c.Embeddings.APIKey) == "" {
		return fmt.Errorf("embeddings.backend is \"remote\" but NOTERANK_EMBED_API_KEY is unset")
	}
	if c.Cluster.MinK < 1 || c.Cluster.MaxK < c.Cluster.MinK {
		return fmt.Errorf("cluster.min_k/max_k out of range: [%d,%d]", c.Cluster.MinK, c.Cluster.MaxK)
	}
	if c.Perf.IngestWorkers < 1 {
		return fmt.Errorf("performance.ingest_workers must be >= 1")
	}
	return nil
}
