package cli

import (
	"errors"
	"fmt"

	kurterrors "kurt.dev/kurt/internal/errors"
	"kurt.dev/kurt/internal/merge"
)

// ExitError carries the process exit status for a failed command
type ExitError struct {
	Code int
	Err  error
	// Silent means the command already reported the failure
	Silent bool
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// ExitCodeFor maps an error returned by a command to the process exit status
func ExitCodeFor(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	var mergeErr *merge.MergeError
	if errors.As(err, &mergeErr) {
		return mergeErr.ExitCode()
	}
	var syncErr *kurterrors.BranchSyncError
	if errors.As(err, &syncErr) {
		return syncErr.ExitCode()
	}
	return 1
}

// IsSilent reports whether the error was already shown to the user
func IsSilent(err error) bool {
	var exitErr *ExitError
	return errors.As(err, &exitErr) && exitErr.Silent
}
