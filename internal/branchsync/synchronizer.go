package branchsync

import (
	"context"
	"fmt"

	kurterrors "kurt.dev/kurt/internal/errors"
	"kurt.dev/kurt/internal/dolt"
	"kurt.dev/kurt/internal/git"
	"kurt.dev/kurt/internal/tui"
)

// GitSide is the subset of git.Client the synchronizer drives
type GitSide interface {
	Head(ctx context.Context) (git.HeadState, error)
	BranchExists(ctx context.Context, name string) (bool, error)
	ListBranches(ctx context.Context) ([]string, error)
	CreateBranch(ctx context.Context, name string) error
	Checkout(ctx context.Context, name string) error
	DeleteBranch(ctx context.Context, name string, force bool) error
}

// DoltSide is the subset of dolt.Client the synchronizer drives
type DoltSide interface {
	CurrentBranch(ctx context.Context) (string, error)
	BranchExists(ctx context.Context, name string) (bool, error)
	ListBranches(ctx context.Context) ([]string, error)
	CreateBranch(ctx context.Context, name string) error
	Checkout(ctx context.Context, name string) error
	DeleteBranch(ctx context.Context, name string, force bool) error
}

// Locker serializes mutations with hooks and other kurt processes
type Locker interface {
	WithLock(ctx context.Context, fn func() error) error
}

// Capabilities is what the startup probe found out about the environment
type Capabilities struct {
	GitAvailable  bool
	GitRepo       bool
	DoltAvailable bool
	DoltRepo      bool
}

// Check returns the first missing capability as a typed error
func (c Capabilities) Check() error {
	switch {
	case !c.GitAvailable:
		return kurterrors.NewBranchSyncError(kurterrors.CodeGitNotAvailable, "", "git executable not found on PATH", nil)
	case !c.GitRepo:
		return kurterrors.NewBranchSyncError(kurterrors.CodeGitNotRepo, "", "not inside a git work tree", nil)
	case !c.DoltAvailable:
		return kurterrors.NewBranchSyncError(kurterrors.CodeDoltNotAvailable, "", "dolt executable not found on PATH", nil)
	case !c.DoltRepo:
		return kurterrors.NewBranchSyncError(kurterrors.CodeDoltNotRepo, "", "no dolt database; run 'kurt repair' or 'dolt init'", nil)
	}
	return nil
}

// SyncResult reports the branch both systems are on after an operation
type SyncResult struct {
	GitBranch  string
	DoltBranch string
	Created    bool
}

// Synchronizer applies branch lifecycle changes to both systems
type Synchronizer struct {
	git   GitSide
	dolt  DoltSide
	caps  Capabilities
	lock  Locker
	splog *tui.Splog
}

// NewSynchronizer creates a Synchronizer. A nil lock runs mutations unguarded,
// which is only correct when the caller already holds the hook lock.
func NewSynchronizer(gitSide GitSide, doltSide DoltSide, caps Capabilities, lock Locker, splog *tui.Splog) *Synchronizer {
	if splog == nil {
		splog = tui.NewSplog()
	}
	return &Synchronizer{git: gitSide, dolt: doltSide, caps: caps, lock: lock, splog: splog}
}

func (s *Synchronizer) locked(ctx context.Context, fn func() error) error {
	if s.lock == nil {
		return fn()
	}
	return s.lock.WithLock(ctx, fn)
}

// ValidateBranchName rejects names either system would refuse, naming the
// system that refused
func ValidateBranchName(name string) error {
	if err := git.ValidateBranchName(name); err != nil {
		return kurterrors.NewBranchSyncError(kurterrors.CodeInvalidBranchName, name, "rejected by git", err)
	}
	if err := dolt.ValidateBranchName(name); err != nil {
		return kurterrors.NewBranchSyncError(kurterrors.CodeInvalidBranchName, name, "rejected by dolt", err)
	}
	return nil
}

// gitHead returns the current git branch, failing on detached or unborn HEADs
func (s *Synchronizer) gitHead(ctx context.Context) (string, error) {
	head, err := s.git.Head(ctx)
	if err != nil {
		return "", kurterrors.NewBranchSyncError(kurterrors.CodeSyncFailed, "", "failed to read git HEAD", err)
	}
	if head.Detached {
		return "", kurterrors.NewBranchSyncError(kurterrors.CodeDetachedHead, "", fmt.Sprintf("git HEAD is detached at %s; check out a branch first", short(head.Hash)), nil)
	}
	if head.Unborn {
		return "", kurterrors.NewBranchSyncError(kurterrors.CodeOrphanBranch, head.Branch, "git branch has no commits yet; commit before syncing branches", nil)
	}
	return head.Branch, nil
}

func short(hash string) string {
	if len(hash) > 8 {
		return hash[:8]
	}
	return hash
}

// exists reports presence in both systems
func (s *Synchronizer) exists(ctx context.Context, name string) (inGit, inDolt bool, err error) {
	inDolt, err = s.dolt.BranchExists(ctx, name)
	if err != nil {
		return false, false, kurterrors.NewBranchSyncError(kurterrors.CodeSyncFailed, name, "failed to list dolt branches", err)
	}
	inGit, err = s.git.BranchExists(ctx, name)
	if err != nil {
		return false, false, kurterrors.NewBranchSyncError(kurterrors.CodeSyncFailed, name, "failed to list git branches", err)
	}
	return inGit, inDolt, nil
}
