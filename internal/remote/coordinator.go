package remote

import (
	"context"
	"fmt"

	"kurt.dev/kurt/internal/branchsync"
	kurterrors "kurt.dev/kurt/internal/errors"
	"kurt.dev/kurt/internal/git"
	"kurt.dev/kurt/internal/tui"
)

const (
	systemGit  = "git"
	systemDolt = "dolt"

	// DefaultRemote is used when no remote name is configured
	DefaultRemote = "origin"
)

// GitRemote is the git side of a push or pull
type GitRemote interface {
	Head(ctx context.Context) (git.HeadState, error)
	HasRemote(ctx context.Context, name string) (bool, error)
	Push(ctx context.Context, remote, branch string) (git.PushResult, error)
	Pull(ctx context.Context, remote, branch string) (git.PullResult, error)
}

// DoltRemote is the dolt side of a push or pull
type DoltRemote interface {
	CurrentBranch(ctx context.Context) (string, error)
	HasRemote(ctx context.Context, name string) (bool, error)
	Push(ctx context.Context, remote, branch string) (bool, error)
	Pull(ctx context.Context, remote, branch string) (bool, error)
}

// Locker serializes the local mutations a pull makes
type Locker interface {
	WithLock(ctx context.Context, fn func() error) error
}

// Options names the remotes on each side
type Options struct {
	GitRemote  string
	DoltRemote string
}

// Coordinator pushes and pulls both systems
type Coordinator struct {
	git   GitRemote
	dolt  DoltRemote
	lock  Locker
	caps  branchsync.Capabilities
	opts  Options
	splog *tui.Splog
}

// NewCoordinator creates a Coordinator. Empty remote names default to origin.
func NewCoordinator(gitSide GitRemote, doltSide DoltRemote, caps branchsync.Capabilities, lock Locker, opts Options, splog *tui.Splog) *Coordinator {
	if opts.GitRemote == "" {
		opts.GitRemote = DefaultRemote
	}
	if opts.DoltRemote == "" {
		opts.DoltRemote = DefaultRemote
	}
	if splog == nil {
		splog = tui.NewSplog()
	}
	return &Coordinator{git: gitSide, dolt: doltSide, lock: lock, caps: caps, opts: opts, splog: splog}
}

// currentBranch returns the branch both systems are on, or an error when
// they disagree
func (c *Coordinator) currentBranch(ctx context.Context) (string, error) {
	if err := c.caps.Check(); err != nil {
		return "", err
	}
	head, err := c.git.Head(ctx)
	if err != nil {
		return "", err
	}
	if head.Detached {
		return "", kurterrors.ErrDetachedHead
	}
	doltBranch, err := c.dolt.CurrentBranch(ctx)
	if err != nil {
		return "", err
	}
	if doltBranch != head.Branch {
		return "", kurterrors.NewBranchSyncError(kurterrors.CodeSyncFailed, head.Branch,
			fmt.Sprintf("git is on %s but dolt is on %s; run 'kurt sync branch switch %s'", head.Branch, doltBranch, head.Branch), nil)
	}
	return head.Branch, nil
}

func side(system, remote, branch string) SideResult {
	return SideResult{System: system, Remote: remote, Branch: branch}
}

func (s *SideResult) fail(err error) {
	s.Status = StatusFailed
	s.Err = kurterrors.NewRemoteError(s.System, s.Remote, err)
}

func (s *SideResult) noRemote() {
	s.Status = StatusFailed
	s.Err = &kurterrors.RemoteError{
		Code:   kurterrors.CodeNoRemote,
		System: s.System,
		Remote: s.Remote,
		Err:    fmt.Errorf("no %s remote named %s", s.System, s.Remote),
	}
}

func (s *SideResult) done(upToDate bool) {
	if upToDate {
		s.Status = StatusUpToDate
		return
	}
	s.Status = StatusOK
}

// Push pushes the current branch to the dolt remote and then the git remote.
// Both pushes are attempted; the result reports each one.
func (c *Coordinator) Push(ctx context.Context) (*PushResult, error) {
	branch, err := c.currentBranch(ctx)
	if err != nil {
		return nil, err
	}
	result := &PushResult{
		Op:   "push",
		Dolt: side(systemDolt, c.opts.DoltRemote, branch),
		Git:  side(systemGit, c.opts.GitRemote, branch),
	}

	if ok := c.ensureRemote(ctx, c.dolt.HasRemote, &result.Dolt); ok {
		upToDate, err := c.dolt.Push(ctx, c.opts.DoltRemote, branch)
		if err != nil {
			result.Dolt.fail(err)
		} else {
			result.Dolt.done(upToDate)
		}
	}
	c.splog.Debug("push %s", result.Dolt)

	if ok := c.ensureRemote(ctx, c.git.HasRemote, &result.Git); ok {
		res, err := c.git.Push(ctx, c.opts.GitRemote, branch)
		if err != nil {
			result.Git.fail(err)
		} else {
			result.Git.done(res.UpToDate)
		}
	}
	c.splog.Debug("push %s", result.Git)

	return result, result.Err()
}

// Pull pulls the current branch from the dolt remote and then the git remote.
// Git is skipped when the dolt pull fails.
func (c *Coordinator) Pull(ctx context.Context) (*PullResult, error) {
	branch, err := c.currentBranch(ctx)
	if err != nil {
		return nil, err
	}
	result := &PullResult{
		Op:   "pull",
		Dolt: side(systemDolt, c.opts.DoltRemote, branch),
		Git:  side(systemGit, c.opts.GitRemote, branch),
	}

	pull := func() error {
		if ok := c.ensureRemote(ctx, c.dolt.HasRemote, &result.Dolt); ok {
			upToDate, err := c.dolt.Pull(ctx, c.opts.DoltRemote, branch)
			if err != nil {
				result.Dolt.fail(err)
			} else {
				result.Dolt.done(upToDate)
			}
		}
		if !result.Dolt.Succeeded() {
			result.Git.Status = StatusSkipped
			return nil
		}

		if ok := c.ensureRemote(ctx, c.git.HasRemote, &result.Git); ok {
			res, err := c.git.Pull(ctx, c.opts.GitRemote, branch)
			switch {
			case err != nil:
				result.Git.fail(err)
			default:
				result.Git.done(res == git.PullUnneeded)
			}
		}
		return nil
	}
	if c.lock != nil {
		if err := c.lock.WithLock(ctx, pull); err != nil {
			return nil, err
		}
	} else if err := pull(); err != nil {
		return nil, err
	}
	c.splog.Debug("pull %s; %s", result.Dolt, result.Git)

	return result, result.Err()
}

func (c *Coordinator) ensureRemote(ctx context.Context, has func(context.Context, string) (bool, error), s *SideResult) bool {
	ok, err := has(ctx, s.Remote)
	if err != nil {
		s.fail(err)
		return false
	}
	if !ok {
		s.noRemote()
		return false
	}
	return true
}
