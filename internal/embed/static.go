package embed

import (
	"context"
	"hash/fnv"
	"strings"
	"sync"
	"unicode"

	noteerr "github.com/noterank/noterank/internal/errors"
)

// StaticDimensions is the vector width produced by StaticEmbedder.
const StaticDimensions = 256

const (
	tokenWeight = 0.7
	ngramWeight = 0.3
	ngramSize   = 3
)

// StaticEmbedder is the deterministic, offline, CPU-only local backend: a
// hash-based bag-of-tokens-and-ngrams vectorizer with no network
// dependency and no model download. It trades semantic quality for
// determinism and zero setup cost, which is what the offline embed build
// needs by default.
type StaticEmbedder struct {
	mu     sync.RWMutex
	closed bool
}

func NewStaticEmbedder() *StaticEmbedder {
	return &StaticEmbedder{}
}

func (e *StaticEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return nil, noteerr.SearchEmbedderDown(nil)
	}

	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = e.embedOne(text)
	}
	return out, nil
}

func (e *StaticEmbedder) embedOne(text string) []float32 {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return make([]float32, StaticDimensions)
	}
	return normalizeVector(generateVector(trimmed))
}

func generateVector(text string) []float32 {
	vector := make([]float32, StaticDimensions)

	for _, tok := range tokenize(text) {
		vector[hashToIndex(tok, StaticDimensions)] += tokenWeight
	}

	normalized := normalizeForNgrams(text)
	for _, ngram := range extractNgrams(normalized, ngramSize) {
		vector[hashToIndex(ngram, StaticDimensions)] += ngramWeight
	}

	return vector
}

// tokenize splits text into runs of Unicode letters and digits and
// lowercases each run. It does not apply the NFC normalization that
// internal/store.normalizeText applies to lexical query terms.
func tokenize(text string) []string {
	var tokens []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, strings.ToLower(cur.String()))
			cur.Reset()
		}
	}
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			cur.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
	return tokens
}

func normalizeForNgrams(text string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func extractNgrams(text string, n int) []string {
	if len(text) < n {
		return nil
	}
	out := make([]string, 0, len(text)-n+1)
	for i := 0; i <= len(text)-n; i++ {
		out = append(out, text[i:i+n])
	}
	return out
}

func hashToIndex(s string, size int) int {
	h := fnv.New64()
	h.Write([]byte(s))
	return int(h.Sum64() % uint64(size))
}

func (e *StaticEmbedder) Dimensions() int   { return StaticDimensions }
func (e *StaticEmbedder) ModelName() string { return "noterank-static-v1" }

func (e *StaticEmbedder) Available(_ context.Context) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return !e.closed
}

func (e *StaticEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}
