// Package errors provides the structured error type used across noterank.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: ingest errors
//   - 2XX: store errors
//   - 3XX: search errors
//   - 4XX: cluster errors
//   - 5XX: request errors
package errors

// Category classifies an error for logging and metrics.
type Category string

const (
	CategoryIngest  Category = "INGEST"
	CategoryStore   Category = "STORE"
	CategorySearch  Category = "SEARCH"
	CategoryCluster Category = "CLUSTER"
	CategoryRequest Category = "REQUEST"
)

// Severity defines how the caller should react to an error.
type Severity string

const (
	SeverityFatal   Severity = "FATAL"   // abort the current build or request
	SeverityWarning Severity = "WARNING" // degrade gracefully, continue
)

// Error codes, one band per category.
const (
	// Ingest (100-199)
	ErrCodeIngestDecode = "ERR_101_INGEST_DECODE"
	ErrCodeIngestIO     = "ERR_102_INGEST_IO"
	ErrCodeIngestParse  = "ERR_103_INGEST_PARSE"

	// Store (200-299)
	ErrCodeStoreLocked    = "ERR_201_STORE_LOCKED"
	ErrCodeStoreCorrupt   = "ERR_202_STORE_CORRUPT"
	ErrCodeStoreMigration = "ERR_203_STORE_MIGRATION"

	// Search (300-399)
	ErrCodeSearchEmptyQuery        = "ERR_301_SEARCH_EMPTY_QUERY"
	ErrCodeSearchIndex             = "ERR_302_SEARCH_INDEX"
	ErrCodeSearchEmbedderDown      = "ERR_303_SEARCH_EMBEDDER_UNAVAILABLE"
	ErrCodeSearchDimensionMismatch = "ERR_304_SEARCH_DIMENSION_MISMATCH"

	// Cluster (400-499)
	ErrCodeClusterNotEnoughData = "ERR_401_CLUSTER_NOT_ENOUGH_DATA"
	ErrCodeClusterConverge      = "ERR_402_CLUSTER_CONVERGE"

	// Request (500-599)
	ErrCodeRequestNotFound   = "ERR_501_REQUEST_NOT_FOUND"
	ErrCodeRequestBadInput   = "ERR_502_REQUEST_BAD_INPUT"
	ErrCodeRequestCancelled  = "ERR_503_REQUEST_CANCELLED"
	ErrCodeRequestOverloaded = "ERR_504_REQUEST_OVERLOADED"
)

// categoryFromCode derives the category from an error code's digit band.
func categoryFromCode(code string) Category {
	switch {
	case len(code) < 5:
		return CategoryRequest
	case code[4] == '1':
		return CategoryIngest
	case code[4] == '2':
		return CategoryStore
	case code[4] == '3':
		return CategorySearch
	case code[4] == '4':
		return CategoryCluster
	default:
		return CategoryRequest
	}
}

// retryableCodes lists codes whose underlying operation may succeed on retry.
// Per the error handling design, the core never retries internally; this only
// advises callers (CLIs, the frontend adapter) whether a retry is sensible.
var retryableCodes = map[string]bool{
	ErrCodeIngestIO:           true,
	ErrCodeStoreLocked:        true,
	ErrCodeSearchEmbedderDown: true,
	ErrCodeRequestOverloaded:  true,
}

func isRetryableCode(code string) bool {
	return retryableCodes[code]
}

func severityFromCode(code string) Severity {
	if code == ErrCodeSearchEmbedderDown {
		return SeverityWarning
	}
	return SeverityFatal
}
