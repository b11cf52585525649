package errors

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DerivesCategoryAndSeverity(t *testing.T) {
	e := New(ErrCodeIngestIO, "boom")

	assert.Equal(t, CategoryIngest, e.Category)
	assert.Equal(t, SeverityFatal, e.Severity)
	assert.True(t, e.Retryable)
}

func TestNew_EmbedderDownIsWarningSeverity(t *testing.T) {
	e := New(ErrCodeSearchEmbedderDown, "down")
	assert.Equal(t, SeverityWarning, e.Severity)
}

func TestWrap_PreservesCauseAndUnwraps(t *testing.T) {
	cause := stderrors.New("disk full")
	e := Wrap(ErrCodeIngestIO, "write failed", cause)

	assert.ErrorIs(t, e, cause)
	assert.Contains(t, e.Error(), "disk full")
	assert.Contains(t, e.Error(), "write failed")
}

func TestNoteError_IsMatchesByCodeOnly(t *testing.T) {
	a := New(ErrCodeStoreLocked, "first message")
	b := New(ErrCodeStoreLocked, "different message entirely")
	c := New(ErrCodeStoreCorrupt, "first message")

	assert.True(t, stderrors.Is(a, b))
	assert.False(t, stderrors.Is(a, c))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(StoreLocked(nil)))
	assert.False(t, IsRetryable(ClusterConverge(nil)))
	assert.False(t, IsRetryable(stderrors.New("plain error")))
}

func TestCodeAndCategoryOf(t *testing.T) {
	err := SearchDimensionMismatch(256, 128)

	require.Equal(t, ErrCodeSearchDimensionMismatch, Code(err))
	assert.Equal(t, CategorySearch, CategoryOf(err))

	assert.Equal(t, "", Code(stderrors.New("not a note error")))
	assert.Equal(t, Category(""), CategoryOf(stderrors.New("not a note error")))
}

func TestConstructors_WireExpectedCodes(t *testing.T) {
	cases := []struct {
		name string
		err  *NoteError
		code string
	}{
		{"IngestDecode", IngestDecode("a.md", nil), ErrCodeIngestDecode},
		{"IngestParse", IngestParse("a.md", nil), ErrCodeIngestParse},
		{"StoreMigration", StoreMigration(nil), ErrCodeStoreMigration},
		{"SearchEmptyQuery", SearchEmptyQuery(), ErrCodeSearchEmptyQuery},
		{"SearchIndex", SearchIndex(nil), ErrCodeSearchIndex},
		{"ClusterNotEnoughData", ClusterNotEnoughData(1, 8), ErrCodeClusterNotEnoughData},
		{"RequestNotFound", RequestNotFound("passage"), ErrCodeRequestNotFound},
		{"RequestBadInput", RequestBadInput("bad"), ErrCodeRequestBadInput},
		{"RequestCancelled", RequestCancelled(nil), ErrCodeRequestCancelled},
		{"RequestOverloaded", RequestOverloaded(), ErrCodeRequestOverloaded},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.code, tc.err.Code)
		})
	}
}
