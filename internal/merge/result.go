package merge

import (
	"fmt"

	"kurt.dev/kurt/internal/dolt"
	kurterrors "kurt.dev/kurt/internal/errors"
)

// DoltConflict is one conflicting row
type DoltConflict = dolt.Conflict

// MergeConflict explains why a merge stopped
type MergeConflict struct {
	DoltConflicts  []DoltConflict `json:"dolt_conflicts,omitempty"`
	GitConflicts   []string       `json:"git_conflicts,omitempty"`
	ResolutionHint string         `json:"resolution_hint"`
}

// MergeResult is the immutable record of one merge attempt
type MergeResult struct {
	Success        bool
	SourceBranch   string
	TargetBranch   string
	DoltCommitHash string
	GitCommitHash  string
	Conflicts      *MergeConflict
	Message        string
}

// Outcome classifies a merge attempt
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeConflict
	OutcomeFatal
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeConflict:
		return "conflict"
	default:
		return "fatal"
	}
}

// Outcome returns which of success, conflict, or fatal the result is
func (r *MergeResult) Outcome() Outcome {
	switch {
	case r == nil:
		return OutcomeFatal
	case r.Success:
		return OutcomeSuccess
	case r.Conflicts != nil:
		return OutcomeConflict
	default:
		return OutcomeFatal
	}
}

// ErrorCode identifies why a merge did not complete
type ErrorCode string

const (
	CodeDoltConflict       ErrorCode = "DOLT_CONFLICT"
	CodeGitConflict        ErrorCode = "GIT_CONFLICT"
	CodeRollbackFailed     ErrorCode = "ROLLBACK_FAILED"
	CodeMergeInProgress    ErrorCode = "MERGE_IN_PROGRESS"
	CodeUncommittedChanges ErrorCode = "UNCOMMITTED_CHANGES"
	CodeBranchNotFound     ErrorCode = "BRANCH_NOT_FOUND"
	CodePrecondition       ErrorCode = "PRECONDITION_FAILED"
	CodeDoltMergeFailed    ErrorCode = "DOLT_MERGE_FAILED"
	CodeGitMergeFailed     ErrorCode = "GIT_MERGE_FAILED"
	CodeVerificationFailed ErrorCode = "VERIFICATION_FAILED"
)

// Exit codes for `kurt sync merge`
const (
	ExitSuccess        = 0
	ExitDoltConflict   = 1
	ExitGitConflict    = 2
	ExitRollbackFailed = 3
	ExitFailed         = 4
)

// MergeError is returned for every merge that did not complete
type MergeError struct {
	Code      ErrorCode
	Source    string
	Target    string
	Conflicts *MergeConflict
	Message   string
	Err       error
}

func (e *MergeError) Error() string {
	msg := fmt.Sprintf("%s merging %s into %s", e.Code, e.Source, e.Target)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

func (e *MergeError) Unwrap() error {
	return e.Err
}

// Is matches the shared sentinels
func (e *MergeError) Is(target error) bool {
	if t, ok := target.(*MergeError); ok {
		return t.Code == e.Code
	}
	switch e.Code {
	case CodeDoltConflict, CodeGitConflict:
		return target == kurterrors.ErrConflict
	case CodeRollbackFailed:
		return target == kurterrors.ErrRollbackFailed
	case CodeMergeInProgress:
		return target == kurterrors.ErrMergeInProgress
	case CodeBranchNotFound:
		return target == kurterrors.ErrBranchNotFound
	}
	return false
}

// ExitCode is the process exit status for this error
func (e *MergeError) ExitCode() int {
	switch e.Code {
	case CodeDoltConflict:
		return ExitDoltConflict
	case CodeGitConflict:
		return ExitGitConflict
	case CodeRollbackFailed:
		return ExitRollbackFailed
	default:
		return ExitFailed
	}
}

// ExitCode maps any error returned by the coordinator to an exit status
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var mErr *MergeError
	if kurterrors.As(err, &mErr) {
		return mErr.ExitCode()
	}
	return ExitFailed
}

func newError(code ErrorCode, source, target, message string, err error) *MergeError {
	return &MergeError{Code: code, Source: source, Target: target, Message: message, Err: err}
}
