package errors

import (
	"fmt"
	"strings"
)

// RemoteErrorCode classifies a push or pull failure
type RemoteErrorCode string

const (
	CodeAuthFailed   RemoteErrorCode = "AUTH_FAILED"
	CodeNetworkError RemoteErrorCode = "NETWORK_ERROR"
	CodeRejected     RemoteErrorCode = "REJECTED"
	CodePullConflict RemoteErrorCode = "CONFLICT"
	CodeNoRemote     RemoteErrorCode = "NO_REMOTE"
	CodeTimeout      RemoteErrorCode = "TIMEOUT"
	CodeUnknown      RemoteErrorCode = "UNKNOWN"
)

// RemoteError describes a failed remote operation on one system
type RemoteError struct {
	Code   RemoteErrorCode
	System string // "git" or "dolt"
	Remote string
	Err    error
}

func (e *RemoteError) Error() string {
	msg := fmt.Sprintf("%s %s failed (%s)", e.System, e.Remote, e.Code)
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// Is returns true for ErrTimeout and ErrConflict on the matching codes
func (e *RemoteError) Is(target error) bool {
	switch e.Code {
	case CodeTimeout:
		return target == ErrTimeout
	case CodePullConflict:
		return target == ErrConflict
	}
	return false
}

// Guidance returns what the user should do about the failure
func (e *RemoteError) Guidance() string {
	switch e.Code {
	case CodeAuthFailed:
		return fmt.Sprintf("check your credentials for the %s remote %q", e.System, e.Remote)
	case CodeNetworkError:
		return fmt.Sprintf("the %s remote %q could not be reached; check your network and try again", e.System, e.Remote)
	case CodeRejected:
		return fmt.Sprintf("the %s remote has commits you do not have; run 'kurt sync pull' first", e.System)
	case CodePullConflict:
		return fmt.Sprintf("resolve the %s conflicts, commit, then retry", e.System)
	case CodeNoRemote:
		return fmt.Sprintf("add a %s remote named %q", e.System, e.Remote)
	case CodeTimeout:
		return fmt.Sprintf("the %s operation timed out; it was not retried", e.System)
	default:
		return "see the error output above"
	}
}

// ClassifyRemoteOutput maps CLI output from a failed push or pull onto a code
func ClassifyRemoteOutput(output string) RemoteErrorCode {
	out := strings.ToLower(output)
	switch {
	case strings.Contains(out, "authentication failed"),
		strings.Contains(out, "permission denied"),
		strings.Contains(out, "could not read username"),
		strings.Contains(out, "access denied"),
		strings.Contains(out, "unauthorized"),
		strings.Contains(out, "permission to"):
		return CodeAuthFailed
	case strings.Contains(out, "[rejected]"),
		strings.Contains(out, "non-fast-forward"),
		strings.Contains(out, "fetch first"),
		strings.Contains(out, "rejected"),
		strings.Contains(out, "is behind"):
		return CodeRejected
	case strings.Contains(out, "conflict"):
		return CodePullConflict
	case strings.Contains(out, "does not appear to be a git repository"),
		strings.Contains(out, "unknown remote"),
		strings.Contains(out, "remote not found"),
		strings.Contains(out, "no such remote"):
		return CodeNoRemote
	case strings.Contains(out, "could not resolve host"),
		strings.Contains(out, "connection refused"),
		strings.Contains(out, "connection timed out"),
		strings.Contains(out, "network is unreachable"),
		strings.Contains(out, "no route to host"),
		strings.Contains(out, "unable to access"),
		strings.Contains(out, "could not connect"):
		return CodeNetworkError
	}
	return CodeUnknown
}

// NewRemoteError classifies err and wraps it. Timeouts are detected from the
// error chain before the output is inspected.
func NewRemoteError(system, remote string, err error) *RemoteError {
	code := CodeUnknown
	if Is(err, ErrTimeout) {
		code = CodeTimeout
	} else if cmdErr, ok := AsCommandError(err); ok {
		code = ClassifyRemoteOutput(cmdErr.Output())
	} else if err != nil {
		code = ClassifyRemoteOutput(err.Error())
	}
	return &RemoteError{Code: code, System: system, Remote: remote, Err: err}
}
