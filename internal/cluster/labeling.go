package cluster

import (
	"strings"
	"unicode"

	"github.com/neurosnap/sentences"
	"github.com/neurosnap/sentences/english"
)

// topLabelCandidates is how many top-token labels are considered before
// falling back to top-token concatenation.
const topLabelCandidates = 4

var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "of": true, "and": true, "or": true,
	"to": true, "in": true, "on": true, "for": true, "is": true, "are": true,
	"with": true, "by": true, "at": true, "from": true, "as": true, "this": true,
	"that": true, "it": true, "be": true, "was": true, "were": true, "which": true,
}

// ExtractLabelTokens picks label candidates for one cluster: the most
// frequent non-stopword tokens across the given headings, falling back to
// bodies when no heading text is available.
func ExtractLabelTokens(headings, bodies []string) []string {
	counts := tokenFrequencies(headings)
	if len(counts) == 0 {
		counts = tokenFrequencies(bodyWindows(bodies))
	}
	return topTokens(counts, topLabelCandidates)
}

// maxLabelSentencesPerBody bounds how much of each body feeds fallback
// label extraction, so one long passage cannot dominate the token counts.
const maxLabelSentencesPerBody = 3

func bodyWindows(bodies []string) []string {
	var out []string
	for _, b := range bodies {
		ws := SentenceWindows(b)
		if len(ws) > maxLabelSentencesPerBody {
			ws = ws[:maxLabelSentencesPerBody]
		}
		out = append(out, ws...)
	}
	return out
}

func tokenFrequencies(texts []string) map[string]int {
	counts := make(map[string]int)
	for _, text := range texts {
		for _, tok := range simpleTokenize(text) {
			if stopwords[tok] || len(tok) < 2 {
				continue
			}
			counts[tok]++
		}
	}
	return counts
}

func simpleTokenize(text string) []string {
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

func topTokens(counts map[string]int, n int) []string {
	type tc struct {
		tok   string
		count int
	}
	var list []tc
	for tok, c := range counts {
		list = append(list, tc{tok, c})
	}
	// Stable by count desc, then lexical for determinism across runs.
	for i := 1; i < len(list); i++ {
		for j := i; j > 0 && (list[j].count > list[j-1].count ||
			(list[j].count == list[j-1].count && list[j].tok < list[j-1].tok)); j-- {
			list[j], list[j-1] = list[j-1], list[j]
		}
	}
	if n > len(list) {
		n = len(list)
	}
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = list[i].tok
	}
	return out
}

// FallbackName concatenates the top label tokens into a display name when
// no LLM adapter is configured, title-casing each token.
func FallbackName(tokens []string) string {
	if len(tokens) == 0 {
		return "untitled cluster"
	}
	titled := make([]string, len(tokens))
	for i, t := range tokens {
		if t == "" {
			continue
		}
		r := []rune(t)
		r[0] = unicode.ToUpper(r[0])
		titled[i] = string(r)
	}
	return strings.Join(titled, " ")
}

// sentenceTokenizer lazily builds the shared English sentence tokenizer
// used as the labeling fallback's window boundary: label candidates are
// drawn from sentence-bounded windows of body text, not raw regex splits,
// so a heading-less cluster's fallback tokens come from coherent units.
var sentenceTokenizer *sentences.DefaultSentenceTokenizer

func getSentenceTokenizer() (*sentences.DefaultSentenceTokenizer, error) {
	if sentenceTokenizer != nil {
		return sentenceTokenizer, nil
	}
	tok, err := english.NewSentenceTokenizer(nil)
	if err != nil {
		return nil, err
	}
	sentenceTokenizer = tok
	return tok, nil
}

// SentenceWindows splits body text into sentence-bounded windows for label
// extraction when headings are absent, falling back to the whole text
// unsplit if the tokenizer cannot be constructed.
func SentenceWindows(body string) []string {
	tok, err := getSentenceTokenizer()
	if err != nil {
		return []string{body}
	}
	sents := tok.Tokenize(body)
	out := make([]string, len(sents))
	for i, s := range sents {
		out[i] = s.Text
	}
	if len(out) == 0 {
		return []string{body}
	}
	return out
}
