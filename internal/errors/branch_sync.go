package errors

import "fmt"

// BranchSyncErrorCode classifies branch synchronization failures
type BranchSyncErrorCode string

const (
	CodeInvalidBranchName   BranchSyncErrorCode = "INVALID_BRANCH_NAME"
	CodeGitNotAvailable     BranchSyncErrorCode = "GIT_NOT_AVAILABLE"
	CodeGitNotRepo          BranchSyncErrorCode = "GIT_NOT_REPO"
	CodeDoltNotAvailable    BranchSyncErrorCode = "DOLT_NOT_AVAILABLE"
	CodeDoltNotRepo         BranchSyncErrorCode = "DOLT_NOT_REPO"
	CodeBranchCreateFailed  BranchSyncErrorCode = "BRANCH_CREATE_FAILED"
	CodeBranchNotFound      BranchSyncErrorCode = "BRANCH_NOT_FOUND"
	CodeBranchSwitchFailed  BranchSyncErrorCode = "BRANCH_SWITCH_FAILED"
	CodeBranchDeleteFailed  BranchSyncErrorCode = "BRANCH_DELETE_FAILED"
	CodeCannotDeleteCurrent BranchSyncErrorCode = "CANNOT_DELETE_CURRENT"
	CodeDetachedHead        BranchSyncErrorCode = "DETACHED_HEAD"
	CodeOrphanBranch        BranchSyncErrorCode = "ORPHAN_BRANCH"
	CodePartialFailure      BranchSyncErrorCode = "PARTIAL_FAILURE"
	CodeSyncFailed          BranchSyncErrorCode = "SYNC_FAILED"
)

// BranchSyncError is returned by every branch synchronization operation
type BranchSyncError struct {
	Code    BranchSyncErrorCode
	Branch  string
	Message string
	Err     error
}

func (e *BranchSyncError) Error() string {
	msg := string(e.Code)
	if e.Message != "" {
		msg = fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

func (e *BranchSyncError) Unwrap() error {
	return e.Err
}

// Is maps codes onto the shared sentinels so callers can match either way
func (e *BranchSyncError) Is(target error) bool {
	if t, ok := target.(*BranchSyncError); ok {
		return t.Code == e.Code
	}
	switch e.Code {
	case CodeInvalidBranchName:
		return target == ErrInvalidBranchName
	case CodeGitNotAvailable:
		return target == ErrGitNotAvailable
	case CodeGitNotRepo:
		return target == ErrNotGitRepo
	case CodeDoltNotAvailable:
		return target == ErrDoltNotAvailable
	case CodeDoltNotRepo:
		return target == ErrNotDoltRepo
	case CodeBranchNotFound:
		return target == ErrBranchNotFound
	case CodeDetachedHead:
		return target == ErrDetachedHead
	case CodeOrphanBranch:
		return target == ErrOrphanBranch
	}
	return false
}

// ExitCode maps the error onto a stable process exit status.
// Configuration problems are 2, repository state problems 3, operation failures 1.
func (e *BranchSyncError) ExitCode() int {
	switch e.Code {
	case CodeGitNotAvailable, CodeDoltNotAvailable, CodeGitNotRepo, CodeDoltNotRepo, CodeInvalidBranchName:
		return 2
	case CodeDetachedHead, CodeOrphanBranch, CodeCannotDeleteCurrent, CodeBranchNotFound:
		return 3
	default:
		return 1
	}
}

// NewBranchSyncError creates a new BranchSyncError
func NewBranchSyncError(code BranchSyncErrorCode, branch, message string, err error) *BranchSyncError {
	return &BranchSyncError{Code: code, Branch: branch, Message: message, Err: err}
}

// BranchSyncCode returns the code of a BranchSyncError anywhere in err's chain.
func BranchSyncCode(err error) (BranchSyncErrorCode, bool) {
	var bsErr *BranchSyncError
	if As(err, &bsErr) {
		return bsErr.Code, true
	}
	return "", false
}
