package remote

import (
	"errors"
	"fmt"

	kurterrors "kurt.dev/kurt/internal/errors"
)

// Status is what happened on one side of a push or pull
type Status string

const (
	StatusOK       Status = "ok"
	StatusUpToDate Status = "up_to_date"
	StatusFailed   Status = "failed"
	StatusSkipped  Status = "skipped"
)

// SideResult is the outcome for one system
type SideResult struct {
	System string
	Remote string
	Branch string
	Status Status
	Err    *kurterrors.RemoteError
}

// Succeeded is true for ok and up-to-date
func (s SideResult) Succeeded() bool {
	return s.Status == StatusOK || s.Status == StatusUpToDate
}

func (s SideResult) String() string {
	switch s.Status {
	case StatusOK:
		return fmt.Sprintf("%s: %s -> %s", s.System, s.Branch, s.Remote)
	case StatusUpToDate:
		return fmt.Sprintf("%s: %s is up to date with %s", s.System, s.Branch, s.Remote)
	case StatusSkipped:
		return fmt.Sprintf("%s: skipped", s.System)
	default:
		return fmt.Sprintf("%s: %v", s.System, s.Err)
	}
}

// Result reports a push or pull on both systems
type Result struct {
	Op   string
	Dolt SideResult
	Git  SideResult
}

// PushResult is the Result of Coordinator.Push
type PushResult = Result

// PullResult is the Result of Coordinator.Pull
type PullResult = Result

// Success is true only when both sides succeeded
func (r *Result) Success() bool {
	return r.Dolt.Succeeded() && r.Git.Succeeded()
}

// PartialSuccess is true when exactly one side succeeded
func (r *Result) PartialSuccess() bool {
	return r.Dolt.Succeeded() != r.Git.Succeeded()
}

// Err joins the failures of both sides, or returns nil on success
func (r *Result) Err() error {
	var errs []error
	for _, side := range []SideResult{r.Dolt, r.Git} {
		if side.Err != nil {
			errs = append(errs, side.Err)
		}
	}
	if len(errs) == 0 && !r.Success() {
		return fmt.Errorf("%s did not complete", r.Op)
	}
	return errors.Join(errs...)
}
