// Package errors provides sentinel errors and custom error types for kurt.
// Use errors.Is() and errors.As() to check for specific error types.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for common conditions
var (
	// ErrNotInstalled indicates that a required binary could not be found on PATH
	ErrNotInstalled = errors.New("executable not installed")

	// ErrTimeout indicates that an external command exceeded its deadline
	ErrTimeout = errors.New("command timed out")

	// ErrGitNotAvailable indicates git is not usable in this environment
	ErrGitNotAvailable = errors.New("git is not available")

	// ErrDoltNotAvailable indicates dolt is not usable in this environment
	ErrDoltNotAvailable = errors.New("dolt is not available")

	// ErrNotGitRepo indicates the working directory is not inside a git work tree
	ErrNotGitRepo = errors.New("not a git repository")

	// ErrNotDoltRepo indicates the repository has no dolt database
	ErrNotDoltRepo = errors.New("not a dolt repository")

	// ErrInvalidBranchName indicates a branch name rejected by git or dolt
	ErrInvalidBranchName = errors.New("invalid branch name")

	// ErrBranchNotFound indicates that a branch does not exist
	ErrBranchNotFound = errors.New("branch not found")

	// ErrDetachedHead indicates git HEAD does not point at a branch
	ErrDetachedHead = errors.New("HEAD is detached")

	// ErrOrphanBranch indicates the current git branch has no commits yet
	ErrOrphanBranch = errors.New("current branch has no commits")

	// ErrMergeInProgress indicates git, dolt, or kurt has an unfinished merge
	ErrMergeInProgress = errors.New("merge already in progress")

	// ErrConflict indicates a merge or pull stopped on conflicts
	ErrConflict = errors.New("conflict")

	// ErrRollbackFailed indicates dolt could not be restored after a failed git step
	ErrRollbackFailed = errors.New("rollback failed")

	// ErrLockHeld indicates the hook lock is held by another process
	ErrLockHeld = errors.New("hook lock is held")

	// ErrStaleLock indicates a hook lock older than the stale threshold
	ErrStaleLock = errors.New("stale hook lock")
)

// CommandError represents a failed git or dolt invocation
type CommandError struct {
	Command  string
	Args     []string
	Stdout   string
	Stderr   string
	ExitCode int
	Err      error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("%s command failed: %s", e.Command, strings.Join(e.Args, " "))
	if e.ExitCode > 0 {
		msg += fmt.Sprintf(" (exit %d)", e.ExitCode)
	}
	if e.Stderr != "" {
		msg += fmt.Sprintf("\nstderr: %s", strings.TrimSpace(e.Stderr))
	}
	if e.Stdout != "" {
		msg += fmt.Sprintf("\nstdout: %s", strings.TrimSpace(e.Stdout))
	}
	if e.Err != nil {
		msg += fmt.Sprintf("\n%v", e.Err)
	}
	return msg
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// Output returns stdout and stderr joined, which is what most classification
// needs since git and dolt are inconsistent about where they report problems.
func (e *CommandError) Output() string {
	return e.Stdout + "\n" + e.Stderr
}

// NewCommandError creates a new CommandError
func NewCommandError(command string, args []string, stdout, stderr string, exitCode int, err error) *CommandError {
	return &CommandError{
		Command:  command,
		Args:     args,
		Stdout:   stdout,
		Stderr:   stderr,
		ExitCode: exitCode,
		Err:      err,
	}
}

// AsCommandError extracts a *CommandError from err, if present.
func AsCommandError(err error) (*CommandError, bool) {
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr, true
	}
	return nil, false
}

// Is, As and New are re-exported so callers need only one errors import.
var (
	Is  = errors.Is
	As  = errors.As
	New = errors.New
)
