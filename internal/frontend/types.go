// Package frontend exposes the Go-level operations an HTTP layer would
// bind to routes: parameter translation, preview building, and the
// file-tree projection. It does not bind any HTTP route itself; that
// wiring belongs to the serving layer.
package frontend

import (
	"github.com/noterank/noterank/internal/recommend"
	"github.com/noterank/noterank/internal/search"
)

// SearchItem is the wire shape of one GET /search result item.
type SearchItem struct {
	ChunkID       int64             `json:"chunk_id"`
	FilePath      string            `json:"file_path"`
	Heading       string            `json:"heading"`
	Preview       string            `json:"preview"`
	Score         float64           `json:"score"`
	LexicalScore  float64           `json:"lexical_score"`
	SemanticScore float64           `json:"semantic_score"`
	MatchClass    search.MatchClass `json:"match_class"`
}

// SearchResponse is the wire shape of GET /search.
type SearchResponse struct {
	Mode  string       `json:"mode"`
	Total *int         `json:"total"`
	Items []SearchItem `json:"items"`
}

// ClusterSuggestItem is the wire shape of one GET /clusters/suggest item.
type ClusterSuggestItem struct {
	ClusterID int64   `json:"cluster_id"`
	Name      string  `json:"name"`
	Score     float64 `json:"score"`
}

// RelatedPassageItem is the wire shape of one related-passage item.
type RelatedPassageItem struct {
	ChunkID  int64            `json:"chunk_id"`
	FilePath string           `json:"file_path"`
	Heading  string           `json:"heading"`
	Preview  string           `json:"preview"`
	Score    float64          `json:"score"`
	Reason   recommend.Reason `json:"reason"`
}

// RelatedFileItem is the wire shape of one related-file item.
type RelatedFileItem struct {
	FilePath      string           `json:"file_path"`
	Score         float64          `json:"score"`
	Reason        recommend.Reason `json:"reason"`
	MatchedChunks int              `json:"matched_chunks"`
	TopChunkIDs   []int64          `json:"top_passage_ids"`
}

// ChunkRecord is the wire shape of GET /chunks/{id} (full body) and of
// each element of GET /files/chunks.
type ChunkRecord struct {
	ChunkID    int64  `json:"chunk_id"`
	FilePath   string `json:"file_path"`
	Heading    string `json:"heading"`
	Ordinal    int    `json:"ordinal"`
	Content    string `json:"content"`
	ContentLen int    `json:"content_len"`
}

// ClusterItem is the wire shape of one GET /clusters element.
type ClusterItem struct {
	ClusterID int64  `json:"cluster_id"`
	Name      string `json:"name"`
	Summary   string `json:"summary,omitempty"`
	Size      int    `json:"size"`
	K         int    `json:"k"`
}

// ClusterDetail is the wire shape of GET /clusters/{id}: cluster meta plus
// member chunk ids, truncated to the request's limit.
type ClusterDetail struct {
	ClusterItem
	MemberChunkIDs []int64 `json:"member_chunk_ids"`
}

// HealthResponse is the wire shape of GET /health.
type HealthResponse struct {
	OK bool `json:"ok"`
}

// TreeNode is one node of the file-tree projection: a directory (Children
// non-empty, ChunkIDs aggregated from everything beneath it) or a file
// (Children empty, ChunkIDs its own passages).
type TreeNode struct {
	Name     string      `json:"name"`
	Path     string      `json:"path"`
	IsDir    bool        `json:"is_dir"`
	ChunkIDs []int64     `json:"chunk_ids,omitempty"`
	Children []*TreeNode `json:"children,omitempty"`
}
