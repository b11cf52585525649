package errors

import (
	"errors"
	"fmt"
)

// NoteError is the structured error type used throughout noterank. It
// carries enough context for both logs and CLI exit-code mapping.
type NoteError struct {
	Code      string
	Message   string
	Category  Category
	Severity  Severity
	Retryable bool
	Cause     error
}

func (e *NoteError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *NoteError) Unwrap() error {
	return e.Cause
}

// Is lets errors.Is match two NoteErrors by code, regardless of message/cause.
func (e *NoteError) Is(target error) bool {
	var other *NoteError
	if errors.As(target, &other) {
		return e.Code == other.Code
	}
	return false
}

// New builds a NoteError with no underlying cause.
func New(code, message string) *NoteError {
	return &NoteError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Retryable: isRetryableCode(code),
	}
}

// Wrap builds a NoteError around an existing error.
func Wrap(code, message string, cause error) *NoteError {
	e := New(code, message)
	e.Cause = cause
	return e
}

func IngestDecode(path string, cause error) *NoteError {
	return Wrap(ErrCodeIngestDecode, fmt.Sprintf("failed to decode %s", path), cause)
}

func IngestIO(path string, cause error) *NoteError {
	return Wrap(ErrCodeIngestIO, fmt.Sprintf("io error reading %s", path), cause)
}

func IngestParse(path string, cause error) *NoteError {
	return Wrap(ErrCodeIngestParse, fmt.Sprintf("failed to parse %s", path), cause)
}

func StoreLocked(cause error) *NoteError {
	return Wrap(ErrCodeStoreLocked, "store is locked by another build", cause)
}

func StoreCorrupt(cause error) *NoteError {
	return Wrap(ErrCodeStoreCorrupt, "store index is corrupt", cause)
}

func StoreMigration(cause error) *NoteError {
	return Wrap(ErrCodeStoreMigration, "store schema migration failed", cause)
}

func SearchEmptyQuery() *NoteError {
	return New(ErrCodeSearchEmptyQuery, "query must not be empty")
}

func SearchIndex(cause error) *NoteError {
	return Wrap(ErrCodeSearchIndex, "lexical index query failed", cause)
}

func SearchEmbedderDown(cause error) *NoteError {
	return Wrap(ErrCodeSearchEmbedderDown, "embedder backend unavailable", cause)
}

func SearchDimensionMismatch(want, got int) *NoteError {
	return New(ErrCodeSearchDimensionMismatch,
		fmt.Sprintf("embedding dimension mismatch: want %d, got %d", want, got))
}

func ClusterNotEnoughData(have, need int) *NoteError {
	return New(ErrCodeClusterNotEnoughData,
		fmt.Sprintf("not enough passages to cluster: have %d, need at least %d", have, need))
}

func ClusterConverge(cause error) *NoteError {
	return Wrap(ErrCodeClusterConverge, "clustering failed to converge", cause)
}

func RequestNotFound(what string) *NoteError {
	return New(ErrCodeRequestNotFound, fmt.Sprintf("%s not found", what))
}

func RequestBadInput(message string) *NoteError {
	return New(ErrCodeRequestBadInput, message)
}

func RequestCancelled(cause error) *NoteError {
	return Wrap(ErrCodeRequestCancelled, "request cancelled", cause)
}

func RequestOverloaded() *NoteError {
	return New(ErrCodeRequestOverloaded, "too many concurrent requests")
}

// IsRetryable reports whether the caller may reasonably retry the operation
// that produced err.
func IsRetryable(err error) bool {
	var ne *NoteError
	if errors.As(err, &ne) {
		return ne.Retryable
	}
	return false
}

// Code extracts the NoteError code from err, or "" if err is not a NoteError.
func Code(err error) string {
	var ne *NoteError
	if errors.As(err, &ne) {
		return ne.Code
	}
	return ""
}

// CategoryOf extracts the NoteError category from err, or "" if not a NoteError.
func CategoryOf(err error) Category {
	var ne *NoteError
	if errors.As(err, &ne) {
		return ne.Category
	}
	return ""
}
