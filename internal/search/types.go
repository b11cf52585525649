// Package search implements the lexical searcher, semantic reranker, and
// the hybrid orchestrator that fuses them, plus cluster-suggest topic
// routing over the same candidate pipeline.
package search

// MatchClass labels which signal produced a hybrid search result.
type MatchClass string

const (
	ClassHybrid   MatchClass = "hybrid"
	ClassKeyword  MatchClass = "keyword"
	ClassSemantic MatchClass = "semantic"
)

// Result is one ranked hybrid-search hit.
type Result struct {
	PassageID     int64
	FilePath      string
	Heading       string
	Preview       string
	Score         float64
	LexicalScore  float64
	HasLexical    bool
	SemanticScore float64
	HasSemantic   bool
	Class         MatchClass
}

// ClusterSuggestion is one ranked cluster-suggest hit.
type ClusterSuggestion struct {
	ClusterID int64
	Name      string
	Score     float64
}

// Fusion constants are part of the wire-visible contract: clients display
// match_class, so these must never be free-floating configuration.
const (
	fusionWidth       = 10.0
	lexicalThreshold  = -8.0
	semanticThreshold = 0.25
)

// deadlineCheckEvery is how often long candidate loops poll the request
// deadline: every 1024 candidates, at natural batch boundaries.
const deadlineCheckEvery = 1024
