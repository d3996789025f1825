package hooks

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"kurt.dev/kurt/internal/branchsync"
	"kurt.dev/kurt/internal/dolt"
	"kurt.dev/kurt/internal/git"
	"kurt.dev/kurt/internal/tui"
)

// SkipEnv disables kurt's hooks for one git invocation when set to "1"
const SkipEnv = "KURT_SKIP_HOOKS"

// ErrNativeMerge is returned by prepare-commit-msg for a merge kurt did not start
var ErrNativeMerge = errors.New("native git merges bypass dolt; run 'git merge --abort' and use 'kurt sync merge <branch>' (or set KURT_SKIP_HOOKS=1 to commit a git-only merge)")

// ErrOutOfSync is returned by pre-push and post-commit when git and dolt disagree
var ErrOutOfSync = errors.New("git and dolt are out of sync")

// GitState is what the hooks read from git
type GitState interface {
	Head(ctx context.Context) (git.HeadState, error)
	LastCommitMessage(ctx context.Context) (string, error)
	IsMergeInProgress(ctx context.Context) (bool, error)
}

// DoltState is what the hooks read from and write to dolt
type DoltState interface {
	CurrentBranch(ctx context.Context) (string, error)
	Status(ctx context.Context) (dolt.Status, error)
	AddAll(ctx context.Context) error
	Commit(ctx context.Context, message string) (string, error)
}

// DoltSyncer mirrors git's branch into dolt
type DoltSyncer interface {
	SyncToDolt(ctx context.Context) (*branchsync.SyncResult, error)
}

// Locker serializes dolt writes across processes
type Locker interface {
	WithLock(ctx context.Context, fn func() error) error
}

// Dispatcher runs the logic behind each installed hook. Any error makes the
// hook exit nonzero.
type Dispatcher struct {
	git    GitState
	dolt   DoltState
	syncer DoltSyncer
	lock   Locker
	splog  *tui.Splog
	getenv func(string) string
}

// NewDispatcher creates a Dispatcher
func NewDispatcher(gitState GitState, doltState DoltState, syncer DoltSyncer, lock Locker, splog *tui.Splog) *Dispatcher {
	if splog == nil {
		splog = tui.NewSplog()
	}
	return &Dispatcher{git: gitState, dolt: doltState, syncer: syncer, lock: lock, splog: splog, getenv: os.Getenv}
}

// Run dispatches hook with the arguments git passed to the script
func (d *Dispatcher) Run(ctx context.Context, hook string, args []string) error {
	if d.getenv(SkipEnv) == "1" {
		d.splog.Debug("%s skipped (%s=1)", hook, SkipEnv)
		return nil
	}

	var err error
	switch hook {
	case PostCheckout:
		err = d.postCheckout(ctx, args)
	case PostCommit:
		err = d.postCommit(ctx)
	case PrePush:
		err = d.prePush(ctx)
	case PrepareCommitMsg:
		err = d.prepareCommitMsg(ctx, args)
	default:
		return fmt.Errorf("unknown hook %q", hook)
	}
	if err != nil {
		return fmt.Errorf("kurt %s hook: %w", hook, err)
	}
	return nil
}

// postCheckout gets <prev> <new> <flag>; flag 1 means a branch checkout
func (d *Dispatcher) postCheckout(ctx context.Context, args []string) error {
	if len(args) < 3 || args[2] != "1" {
		return nil
	}
	head, err := d.git.Head(ctx)
	if err != nil {
		return err
	}
	if head.Detached || head.Unborn {
		d.splog.Debug("post-checkout: HEAD is not on a committed branch, leaving dolt alone")
		return nil
	}
	res, err := d.syncer.SyncToDolt(ctx)
	if err != nil {
		return err
	}
	if res.Created {
		d.splog.Info("Created dolt branch %s.", tui.ColorCyan(res.DoltBranch))
	}
	return nil
}

func (d *Dispatcher) postCommit(ctx context.Context) error {
	return d.lock.WithLock(ctx, func() error {
		status, err := d.dolt.Status(ctx)
		if err != nil {
			return err
		}
		if status.Clean {
			return nil
		}
		if status.Merging {
			return fmt.Errorf("dolt has an unfinished merge; resolve it before committing")
		}

		head, err := d.git.Head(ctx)
		if err != nil {
			return err
		}
		doltBranch, err := d.dolt.CurrentBranch(ctx)
		if err != nil {
			return err
		}
		if head.Detached || head.Branch != doltBranch {
			return fmt.Errorf("%w: git committed on %q but dolt is on %q; dolt changes were not committed",
				ErrOutOfSync, head.Branch, doltBranch)
		}

		message, err := d.git.LastCommitMessage(ctx)
		if err != nil {
			return err
		}
		if message == "" {
			message = "kurt: mirror of git commit " + head.Hash
		}
		if err := d.dolt.AddAll(ctx); err != nil {
			return err
		}
		hash, err := d.dolt.Commit(ctx, message)
		if err != nil {
			return err
		}
		d.splog.Info("Committed dolt changes (%s) as %s.", joinTables(status.Tables), hash)
		return nil
	})
}

func joinTables(tables []string) string {
	if len(tables) == 0 {
		return "working set"
	}
	return strings.Join(tables, ", ")
}

func (d *Dispatcher) prePush(ctx context.Context) error {
	head, err := d.git.Head(ctx)
	if err != nil {
		return err
	}
	if head.Detached {
		return nil
	}
	doltBranch, err := d.dolt.CurrentBranch(ctx)
	if err != nil {
		return err
	}
	if doltBranch != head.Branch {
		return fmt.Errorf("%w: git is on %q, dolt is on %q; run 'kurt sync branch switch %s'",
			ErrOutOfSync, head.Branch, doltBranch, head.Branch)
	}
	status, err := d.dolt.Status(ctx)
	if err != nil {
		return err
	}
	if status.Merging {
		return fmt.Errorf("%w: dolt has an unfinished merge", ErrOutOfSync)
	}
	if !status.Clean {
		return fmt.Errorf("%w: dolt has uncommitted changes in %s; commit them before pushing", ErrOutOfSync, joinTables(status.Tables))
	}
	return nil
}

// prepareCommitMsg gets <file> [<source> [<sha>]]
func (d *Dispatcher) prepareCommitMsg(ctx context.Context, args []string) error {
	if len(args) > 1 && args[1] == "merge" {
		return ErrNativeMerge
	}
	merging, err := d.git.IsMergeInProgress(ctx)
	if err != nil {
		return err
	}
	if merging {
		return ErrNativeMerge
	}
	return nil
}
