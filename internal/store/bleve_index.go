package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/mapping"
)

// notesAnalyzerName is a pure unicode-tokenize + lowercase analyzer: no
// stemmer, no diacritic folding, matching the store's tokenization policy
// for a Chinese+English corpus.
const notesAnalyzerName = "notes_analyzer"

// bleveDoc is the document shape indexed per passage: heading, file_path,
// and content as separate fields so bleve's default field-level scoring
// can weight heading/file_path above body content, mirroring the FTS5
// backend's bm25(passage_fts, heading_weight, path_weight, content_weight).
type bleveDoc struct {
	Heading  string `json:"heading"`
	FilePath string `json:"file_path"`
	Content  string `json:"content"`
}

// bleveIndex is the alternate pluggable InvertedIndex implementation,
// selectable via config.Search.LexicalBackend = "bleve". It is a Bolt-backed
// on-disk index next to the SQLite store file. Its BM25 score scale differs
// from SQLite FTS5's bm25() output, so the -8.0/0.25 classification
// thresholds (calibrated against raw FTS5 output) do not directly transfer
// to it; see DESIGN.md for the recalibration caveat.
type bleveIndex struct {
	mu    sync.RWMutex
	index bleve.Index
	path  string
}

var _ InvertedIndex = (*bleveIndex)(nil)

func newBleveIndex(path string) (*bleveIndex, error) {
	m, err := buildNotesMapping()
	if err != nil {
		return nil, fmt.Errorf("build bleve mapping: %w", err)
	}

	idx, err := bleve.Open(path)
	if err == bleve.ErrorIndexPathDoesNotExist {
		idx, err = bleve.New(path, m)
	}
	if err != nil {
		return nil, fmt.Errorf("open/create bleve index at %s: %w", path, err)
	}

	return &bleveIndex{index: idx, path: path}, nil
}

// buildNotesMapping registers notesAnalyzerName as a custom analyzer built
// from bleve's stock unicode tokenizer plus a lowercase filter only: no
// stemmer, no stop-word filter, no diacritic-folding filter, since the
// corpus is predominantly Chinese + English and stemming/diacritic
// folding would corrupt the former.
func buildNotesMapping() (*mapping.IndexMappingImpl, error) {
	im := bleve.NewIndexMapping()
	if err := im.AddCustomAnalyzer(notesAnalyzerName, map[string]interface{}{
		"type":      custom.Name,
		"tokenizer": "unicode",
		"token_filters": []string{
			lowercase.Name,
		},
	}); err != nil {
		return nil, fmt.Errorf("add %s analyzer: %w", notesAnalyzerName, err)
	}
	im.DefaultAnalyzer = notesAnalyzerName

	headingField := bleve.NewTextFieldMapping()
	headingField.Analyzer = notesAnalyzerName

	contentField := bleve.NewTextFieldMapping()
	contentField.Analyzer = notesAnalyzerName

	docMapping := bleve.NewDocumentMapping()
	docMapping.AddFieldMappingsAt("heading", headingField)
	docMapping.AddFieldMappingsAt("content", contentField)
	docMapping.AddFieldMappingsAt("file_path", headingField)
	im.DefaultMapping = docMapping

	return im, nil
}

func (b *bleveIndex) Index(ctx context.Context, passages []Passage) error {
	if len(passages) == 0 {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	batch := b.index.NewBatch()
	for _, p := range passages {
		doc := bleveDoc{Heading: p.Heading, FilePath: p.FilePath, Content: p.Content}
		if err := batch.Index(passageIDString(p.ID), doc); err != nil {
			return fmt.Errorf("batch index passage %d: %w", p.ID, err)
		}
	}
	return b.index.Batch(batch)
}

func (b *bleveIndex) Delete(ctx context.Context, passageIDs []int64) error {
	if len(passageIDs) == 0 {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	batch := b.index.NewBatch()
	for _, id := range passageIDs {
		batch.Delete(passageIDString(id))
	}
	return b.index.Batch(batch)
}

func (b *bleveIndex) Search(ctx context.Context, query string, limit int) ([]LexicalHit, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return []LexicalHit{}, nil
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	headingQuery := bleve.NewMatchQuery(q)
	headingQuery.SetField("heading")
	headingQuery.SetBoost(3.0)

	pathQuery := bleve.NewMatchQuery(q)
	pathQuery.SetField("file_path")
	pathQuery.SetBoost(2.0)

	contentQuery := bleve.NewMatchQuery(q)
	contentQuery.SetField("content")
	contentQuery.SetBoost(1.0)

	disjunct := bleve.NewDisjunctionQuery(headingQuery, pathQuery, contentQuery)

	req := bleve.NewSearchRequest(disjunct)
	req.Size = limit

	result, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("bleve search: %w", err)
	}

	hits := make([]LexicalHit, 0, len(result.Hits))
	for _, hit := range result.Hits {
		id, err := strconv.ParseInt(hit.ID, 10, 64)
		if err != nil {
			continue
		}
		hits = append(hits, LexicalHit{PassageID: id, Score: hit.Score})
	}
	return hits, nil
}

func (b *bleveIndex) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.index == nil {
		return nil
	}
	err := b.index.Close()
	b.index = nil
	return err
}

func passageIDString(id int64) string {
	return strconv.FormatInt(id, 10)
}
