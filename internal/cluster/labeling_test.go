package cluster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractLabelTokens_PrefersHeadingsOverBodies(t *testing.T) {
	headings := []string{"Database Migrations", "Database Rollback"}
	bodies := []string{"completely unrelated body content about baking bread"}

	tokens := ExtractLabelTokens(headings, bodies)

	require.NotEmpty(t, tokens)
	assert.Contains(t, tokens, "database")
}

func TestExtractLabelTokens_FallsBackToBodiesWhenNoHeadings(t *testing.T) {
	tokens := ExtractLabelTokens(nil, []string{"kubernetes pods and kubernetes services"})

	require.NotEmpty(t, tokens)
	assert.Contains(t, tokens, "kubernetes")
}

func TestExtractLabelTokens_DropsStopwordsAndShortTokens(t *testing.T) {
	tokens := ExtractLabelTokens([]string{"the a of is routing"}, nil)

	assert.Equal(t, []string{"routing"}, tokens)
}

func TestTopTokens_StableByCountThenLexical(t *testing.T) {
	counts := map[string]int{"zeta": 2, "alpha": 2, "beta": 1}

	got := topTokens(counts, 3)

	assert.Equal(t, []string{"alpha", "zeta", "beta"}, got)
}

func TestFallbackName_TitleCasesTokens(t *testing.T) {
	assert.Equal(t, "Database Migrations", FallbackName([]string{"database", "migrations"}))
	assert.Equal(t, "untitled cluster", FallbackName(nil))
}

func TestSentenceWindows_SplitsMultiSentenceBody(t *testing.T) {
	windows := SentenceWindows("First sentence here. Second sentence follows.")
	assert.GreaterOrEqual(t, len(windows), 1)
}
