// Package store is the persistence layer: passage metadata, the inverted
// lexical index, packed embeddings, clusters, and modules, all backed by a
// single SQLite file.
package store

import (
	"context"
	"fmt"
	"time"
)

// File is a tracked source file.
type File struct {
	Path  string // relative path, unique, primary key
	MTime time.Time
	Size  int64
	Hash  string // content hash, used to detect unchanged files
}

// Passage (a.k.a. chunk) is the addressable retrieval unit.
type Passage struct {
	ID         int64
	FilePath   string
	Heading    string // empty means "no heading" (null heading)
	HasHeading bool
	Ordinal    int // 0-based, dense within FilePath
	Content    string
	ContentLen int
}

// Embedding is a per-passage dense unit-norm vector.
type Embedding struct {
	PassageID int64
	Model     string
	Dims      int
	Vector    []float32
}

// Cluster groups passages around a centroid.
type Cluster struct {
	ID       int64
	Method   string
	K        int
	Name     string
	Summary  string // may be empty
	Size     int
	Centroid []float32
}

// Module is an optional coarse classification over files.
type Module struct {
	ID          int64
	Name        string
	Description string
}

// FileModule assigns at most one module to a file.
type FileModule struct {
	FilePath string
	ModuleID int64
	Score    float64
}

// LexicalHit is one candidate returned by an InvertedIndex query. Score is
// the raw, un-negated FTS score: a negative-log style rank score where less
// negative is better. Candidates with no match are simply absent from the
// result slice, never present with a zero score.
type LexicalHit struct {
	PassageID int64
	Score     float64
}

// InvertedIndex is the pluggable lexical search backend contract. The
// default implementation is SQLite FTS5 (sqliteFTS); bleveIndex is the
// alternate pluggable implementation selected by config.
type InvertedIndex interface {
	// Index upserts postings for the given passages. Existing postings for
	// the same passage id are replaced (delete-and-reinsert).
	Index(ctx context.Context, passages []Passage) error
	// Delete removes postings for the given passage ids.
	Delete(ctx context.Context, passageIDs []int64) error
	// Search returns up to limit hits ordered best-first. An empty query or
	// empty index returns an empty, non-nil slice and a nil error.
	Search(ctx context.Context, query string, limit int) ([]LexicalHit, error)
	Close() error
}

// VectorIndex is an optional accelerated nearest-neighbor index over the
// embedding matrix. It is never used for the recommender's embed mode
// (which must be exact); it only ever serves as a candidate-narrowing
// accelerator ahead of an exact rerank.
type VectorIndex interface {
	Add(id int64, vec []float32) error
	Remove(id int64) error
	Search(query []float32, k int) ([]VectorHit, error)
	Len() int
}

// VectorHit is one neighbor returned by a VectorIndex.
type VectorHit struct {
	PassageID int64
	Score     float64 // cosine similarity folded to [0,1]
}

// ErrDimensionMismatch signals that an embedding's declared dims does not
// match its packed vector length, or does not match the store's pinned
// model dimensionality.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("embedding dimension mismatch: expected %d, got %d", e.Expected, e.Got)
}

// State keys used by the key-value state table.
const (
	StateKeyIndexModel     = "index_embedding_model"
	StateKeyIndexDims      = "index_embedding_dims"
	StateKeyCorpusHash     = "corpus_hash" // seeds the clusterer's deterministic RNG
	StateKeyBuildStage     = "build_stage" // scanning|chunking|embedding|clustering|complete
	StateKeyBuildTotal     = "build_total"
	StateKeyBuildEmbedded  = "build_embedded"
	StateKeyBuildTimestamp = "build_timestamp"
)

// Build stage values for StateKeyBuildStage, used to resume an interrupted
// offline build without re-embedding already-completed passages.
const (
	BuildStageScanning   = "scanning"
	BuildStageChunking   = "chunking"
	BuildStageEmbedding  = "embedding"
	BuildStageClustering = "clustering"
	BuildStageComplete   = "complete"
)
