package cmd

import (
	"errors"

	noteerr "github.com/noterank/noterank/internal/errors"
)

// usageError marks a command-line usage mistake (bad flags/args), mapped
// to exit code 2. Domain errors use *noteerr.NoteError instead.
type usageError struct {
	msg string
}

func (e *usageError) Error() string { return e.msg }

func newUsageError(msg string) error {
	return &usageError{msg: msg}
}

// exitCode maps a command error to the build-CLI exit codes:
// 0 success, 2 usage error, 3 I/O error, 4 store/consistency error.
func exitCode(err error) int {
	if err == nil {
		return 0
	}

	var ue *usageError
	if errors.As(err, &ue) {
		return 2
	}

	var ne *noteerr.NoteError
	if errors.As(err, &ne) {
		if ne.Category == noteerr.CategoryIngest && ne.Code == noteerr.ErrCodeIngestIO {
			return 3
		}
		return 4
	}

	// Unclassified errors (I/O from the standard library, etc.) default to
	// the I/O band; these CLIs only ever exit 0/2/3/4.
	return 3
}
