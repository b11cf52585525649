package search

import (
	"context"

	noteerr "github.com/noterank/noterank/internal/errors"
	"github.com/noterank/noterank/internal/store"
)

// DefaultFTSK is the default maximum candidate count for the lexical
// searcher.
const DefaultFTSK = 200

// LexicalSearcher queries the store's configured InvertedIndex. Candidates
// with no match are simply absent from the returned slice, never present
// with a zero score.
type LexicalSearcher struct {
	index store.InvertedIndex
}

func NewLexicalSearcher(index store.InvertedIndex) *LexicalSearcher {
	return &LexicalSearcher{index: index}
}

// Search returns up to ftsK hits ordered best-first. An empty query or an
// empty index both return an empty, non-nil slice and a nil error; neither
// is a failure.
func (l *LexicalSearcher) Search(ctx context.Context, query string, ftsK int) ([]store.LexicalHit, error) {
	if query == "" {
		return []store.LexicalHit{}, nil
	}
	if ftsK <= 0 {
		ftsK = DefaultFTSK
	}
	hits, err := l.index.Search(ctx, query, ftsK)
	if err != nil {
		return nil, noteerr.SearchIndex(err)
	}
	if hits == nil {
		hits = []store.LexicalHit{}
	}
	return hits, nil
}
