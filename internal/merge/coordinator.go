package merge

import (
	"context"
	"fmt"
	"time"

	"kurt.dev/kurt/internal/branchsync"
	"kurt.dev/kurt/internal/dolt"
	"kurt.dev/kurt/internal/git"
	"kurt.dev/kurt/internal/tui"
)

// GitRepo is the git side of a merge
type GitRepo interface {
	Head(ctx context.Context) (git.HeadState, error)
	BranchExists(ctx context.Context, name string) (bool, error)
	RevParse(ctx context.Context, rev string) (string, error)
	IsMergeInProgress(ctx context.Context) (bool, error)
	Merge(ctx context.Context, source, message string) (git.MergeOutcome, error)
	MergeAbort(ctx context.Context) error
	MergeTreePreview(ctx context.Context, target, source string) ([]string, error)
}

// DoltRepo is the dolt side of a merge
type DoltRepo interface {
	CurrentBranch(ctx context.Context) (string, error)
	BranchExists(ctx context.Context, name string) (bool, error)
	Checkout(ctx context.Context, name string) error
	HeadHash(ctx context.Context) (string, error)
	BranchHash(ctx context.Context, branch string) (string, error)
	Status(ctx context.Context) (dolt.Status, error)
	Merge(ctx context.Context, source string) (dolt.MergeOutcome, error)
	MergeAbort(ctx context.Context) error
	AddAll(ctx context.Context) error
	Commit(ctx context.Context, message string) (string, error)
	ResetHard(ctx context.Context, rev string) error
}

// ConflictInspector reads dolt conflicts over SQL
type ConflictInspector interface {
	Conflicts(ctx context.Context, branch string) ([]dolt.Conflict, error)
	PreviewConflicts(ctx context.Context, target, source string) ([]dolt.TableConflicts, error)
}

// Locker serializes dolt writes across processes
type Locker interface {
	WithLock(ctx context.Context, fn func() error) error
}

// Deps are the coordinator's collaborators. Inspector and Lock may be nil.
type Deps struct {
	Git       GitRepo
	Dolt      DoltRepo
	Inspector ConflictInspector
	Store     *StateStore
	Lock      Locker
	Caps      branchsync.Capabilities
	Splog     *tui.Splog
}

// Coordinator runs the two-system merge protocol
type Coordinator struct {
	git         GitRepo
	dolt        DoltRepo
	inspector   ConflictInspector
	store       *StateStore
	lock        Locker
	caps        branchsync.Capabilities
	splog       *tui.Splog
	transitions []State
	now         func() time.Time
}

// NewCoordinator creates a Coordinator
func NewCoordinator(deps Deps) *Coordinator {
	splog := deps.Splog
	if splog == nil {
		splog = tui.NewSplog()
	}
	return &Coordinator{
		git:       deps.Git,
		dolt:      deps.Dolt,
		inspector: deps.Inspector,
		store:     deps.Store,
		lock:      deps.Lock,
		caps:      deps.Caps,
		splog:     splog,
		now:       time.Now,
	}
}

// Transitions returns the states the last operation passed through
func (c *Coordinator) Transitions() []State {
	return append([]State(nil), c.transitions...)
}

func (c *Coordinator) enter(s State) {
	c.transitions = append(c.transitions, s)
	c.splog.Debug("merge: %s", s)
}

func (c *Coordinator) locked(ctx context.Context, fn func() error) error {
	if c.lock == nil {
		return fn()
	}
	return c.lock.WithLock(ctx, fn)
}

func mergeMessage(source, target string) string {
	return fmt.Sprintf("Merge branch '%s' into %s", source, target)
}

// Merge merges source into target in dolt and then git. On a conflict both the
// result (carrying the conflicts) and a *MergeError are returned.
func (c *Coordinator) Merge(ctx context.Context, source, target string) (*MergeResult, error) {
	c.transitions = nil
	c.enter(StateInit)

	var result *MergeResult
	err := c.locked(ctx, func() error {
		var err error
		result, err = c.merge(ctx, source, target)
		return err
	})
	if result == nil {
		result = &MergeResult{SourceBranch: source, TargetBranch: target, Message: errMessage(err)}
	}
	return result, err
}

func errMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func (c *Coordinator) merge(ctx context.Context, source, target string) (*MergeResult, error) {
	if err := c.preconditions(ctx, source, target); err != nil {
		return nil, err
	}
	doltSource, err := c.dolt.BranchHash(ctx, source)
	if err != nil {
		return nil, newError(CodePrecondition, source, target, "failed to resolve dolt source", err)
	}
	doltPre, err := c.dolt.HeadHash(ctx)
	if err != nil {
		return nil, newError(CodePrecondition, source, target, "failed to resolve dolt HEAD", err)
	}
	gitSource, err := c.git.RevParse(ctx, source)
	if err != nil {
		return nil, newError(CodePrecondition, source, target, "failed to resolve git source", err)
	}
	gitPre, err := c.git.RevParse(ctx, "HEAD")
	if err != nil {
		return nil, newError(CodePrecondition, source, target, "failed to resolve git HEAD", err)
	}

	if doltSource == doltPre && gitSource == gitPre {
		c.enter(StateDone)
		return &MergeResult{
			Success:        true,
			SourceBranch:   source,
			TargetBranch:   target,
			DoltCommitHash: doltPre,
			GitCommitHash:  gitPre,
			Message:        fmt.Sprintf("%s and %s are identical; nothing to merge", source, target),
		}, nil
	}

	state := &MergeState{
		Source:           source,
		Target:           target,
		DoltPreMergeHash: doltPre,
		GitPreMergeHash:  gitPre,
		Stage:            StateDoltMergeAttempted,
		StartedAt:        c.now().UTC(),
	}
	doltHash, mErr := c.mergeDolt(ctx, state)
	if mErr != nil {
		return failureResult(mErr), mErr
	}
	state.DoltMergeHash = doltHash
	state.Stage = StateDoltCommitted
	c.enter(StateDoltCommitted)
	if err := c.store.Save(state); err != nil {
		return nil, c.rollback(ctx, state, newError(CodeDoltMergeFailed, source, target, "could not record merge state", err))
	}

	if err := c.verifyBeforeGit(ctx, state); err != nil {
		return nil, c.rollback(ctx, state, newError(CodeVerificationFailed, source, target, "refusing to touch git", err))
	}

	state.Stage = StateGitMergeAttempted
	c.enter(StateGitMergeAttempted)
	if err := c.store.Save(state); err != nil {
		return nil, c.rollback(ctx, state, newError(CodeGitMergeFailed, source, target, "could not record merge state", err))
	}

	outcome, err := c.git.Merge(ctx, source, mergeMessage(source, target))
	if err != nil {
		c.abortGitIfMerging(ctx)
		return nil, c.rollback(ctx, state, newError(CodeGitMergeFailed, source, target, "git merge failed", err))
	}
	if outcome.Conflicted {
		mErr := newError(CodeGitConflict, source, target, "git merge stopped on conflicts; dolt was reset to its pre-merge commit", nil)
		mErr.Conflicts = &MergeConflict{
			GitConflicts: outcome.ConflictedFiles,
			ResolutionHint: "Git is left mid-merge for inspection. Run 'kurt sync merge --abort' to return both systems " +
				"to the pre-merge state, resolve the conflicting files on " + source + ", then merge again.",
		}
		mErr = c.rollback(ctx, state, mErr)
		return failureResult(mErr), mErr
	}

	// both merges are committed; an unreadable HEAD must not leave a state
	// file that --abort would roll dolt back from
	gitHash, err := c.git.RevParse(ctx, "HEAD")
	if err != nil {
		c.splog.Warn("merge committed in both systems but git HEAD could not be read: %v", err)
		gitHash = ""
	}
	c.enter(StateDone)
	if err := c.store.Clear(); err != nil {
		c.splog.Warn("%v", err)
	}
	return &MergeResult{
		Success:        true,
		SourceBranch:   source,
		TargetBranch:   target,
		DoltCommitHash: doltHash,
		GitCommitHash:  gitHash,
		Message:        fmt.Sprintf("Merged %s into %s in dolt and git.", source, target),
	}, nil
}

// failureResult carries conflicts only for the two conflict codes, so a
// failed rollback is never mistaken for an ordinary conflict
func failureResult(e *MergeError) *MergeResult {
	r := &MergeResult{SourceBranch: e.Source, TargetBranch: e.Target, Message: e.Error()}
	if e.Code == CodeDoltConflict || e.Code == CodeGitConflict {
		r.Conflicts = e.Conflicts
	}
	return r
}

func (c *Coordinator) preconditions(ctx context.Context, source, target string) error {
	if err := c.caps.Check(); err != nil {
		return newError(CodePrecondition, source, target, "environment is not ready", err)
	}
	if source == "" || target == "" {
		return newError(CodePrecondition, source, target, "source and target are required", nil)
	}
	if source == target {
		return newError(CodePrecondition, source, target, "cannot merge a branch into itself", nil)
	}

	pending, err := c.store.Load()
	if err != nil {
		return newError(CodePrecondition, source, target, "", err)
	}
	if pending != nil {
		return newError(CodeMergeInProgress, source, target,
			fmt.Sprintf("kurt merge of %s into %s (started %s) did not finish; run 'kurt sync merge --abort'",
				pending.Source, pending.Target, pending.StartedAt.Format(time.RFC3339)), nil)
	}
	gitMerging, err := c.git.IsMergeInProgress(ctx)
	if err != nil {
		return newError(CodePrecondition, source, target, "", err)
	}
	if gitMerging {
		return newError(CodeMergeInProgress, source, target, "git has a merge in progress", nil)
	}
	status, err := c.dolt.Status(ctx)
	if err != nil {
		return newError(CodePrecondition, source, target, "", err)
	}
	if status.Merging {
		return newError(CodeMergeInProgress, source, target, "dolt has a merge in progress", nil)
	}
	if !status.Clean {
		return newError(CodeUncommittedChanges, source, target, "dolt has uncommitted changes; commit or discard them first", nil)
	}

	head, err := c.git.Head(ctx)
	if err != nil {
		return newError(CodePrecondition, source, target, "", err)
	}
	if head.Detached || head.Unborn {
		return newError(CodePrecondition, source, target, "git HEAD must be on a branch with commits", nil)
	}

	for _, branch := range []string{source, target} {
		inDolt, err := c.dolt.BranchExists(ctx, branch)
		if err != nil {
			return newError(CodePrecondition, source, target, "", err)
		}
		inGit, err := c.git.BranchExists(ctx, branch)
		if err != nil {
			return newError(CodePrecondition, source, target, "", err)
		}
		switch {
		case !inDolt && !inGit:
			return newError(CodeBranchNotFound, source, target, branch+" exists in neither git nor dolt", nil)
		case !inDolt:
			return newError(CodeBranchNotFound, source, target, branch+" is missing in dolt", nil)
		case !inGit:
			return newError(CodeBranchNotFound, source, target, branch+" is missing in git", nil)
		}
	}

	doltCurrent, err := c.dolt.CurrentBranch(ctx)
	if err != nil {
		return newError(CodePrecondition, source, target, "", err)
	}
	if head.Branch != target || doltCurrent != target {
		return newError(CodePrecondition, source, target,
			fmt.Sprintf("git is on %s and dolt is on %s; both must be on %s (run 'kurt sync branch switch %s')",
				head.Branch, doltCurrent, target, target), nil)
	}
	return nil
}

// mergeDolt runs the dolt half and returns the dolt commit the target now
// points at. Any error has already restored dolt to the pre-merge commit,
// unless its code is ROLLBACK_FAILED.
func (c *Coordinator) mergeDolt(ctx context.Context, state *MergeState) (string, *MergeError) {
	source, target := state.Source, state.Target
	c.enter(StateDoltMergeAttempted)

	outcome, err := c.dolt.Merge(ctx, source)
	if err != nil {
		return "", c.restoreDolt(ctx, state, newError(CodeDoltMergeFailed, source, target, "dolt merge failed", err))
	}

	if outcome.Conflicted {
		conflicts := c.collectConflicts(ctx, target, outcome.ConflictedTables)
		mErr := newError(CodeDoltConflict, source, target, fmt.Sprintf("%d conflicting row(s) in dolt; dolt was reset and git was not merged", len(conflicts)), nil)
		mErr.Conflicts = &MergeConflict{
			DoltConflicts: conflicts,
			ResolutionHint: "Resolve the rows on " + source + " (or " + target + ") so they no longer conflict, commit, " +
				"then run 'kurt sync merge " + source + "' again.",
		}
		return "", c.restoreDolt(ctx, state, mErr)
	}

	if outcome.NeedsCommit() {
		if err := c.dolt.AddAll(ctx); err != nil {
			return "", c.restoreDolt(ctx, state, newError(CodeDoltMergeFailed, source, target, "failed to stage dolt merge", err))
		}
		hash, err := c.dolt.Commit(ctx, mergeMessage(source, target))
		if err != nil {
			return "", c.restoreDolt(ctx, state, newError(CodeDoltMergeFailed, source, target, "failed to commit dolt merge", err))
		}
		return hash, nil
	}
	hash, err := c.dolt.HeadHash(ctx)
	if err != nil {
		return "", c.restoreDolt(ctx, state, newError(CodeDoltMergeFailed, source, target, "failed to read dolt HEAD after merge", err))
	}
	return hash, nil
}

// collectConflicts reads conflicting rows over SQL. Without a SQL session, or
// when the query fails, each conflicting table is reported without row detail
// so the conflict is never dropped.
func (c *Coordinator) collectConflicts(ctx context.Context, branch string, tables []string) []DoltConflict {
	if c.inspector != nil {
		conflicts, err := c.inspector.Conflicts(ctx, branch)
		if err == nil && len(conflicts) > 0 {
			return conflicts
		}
		if err != nil {
			c.splog.Warn("could not read conflict rows over SQL: %v", err)
		}
	}
	conflicts := make([]DoltConflict, 0, len(tables))
	for _, table := range tables {
		conflicts = append(conflicts, DoltConflict{Table: table})
	}
	return conflicts
}

// restoreDolt abandons an uncommitted dolt merge and checks HEAD is back at
// the pre-merge commit
func (c *Coordinator) restoreDolt(ctx context.Context, state *MergeState, cause *MergeError) *MergeError {
	if st, err := c.dolt.Status(ctx); err == nil && st.Merging {
		if err := c.dolt.MergeAbort(ctx); err != nil {
			c.splog.Debug("dolt merge --abort: %v", err)
		}
	}
	head, err := c.dolt.HeadHash(ctx)
	if err == nil && head == state.DoltPreMergeHash {
		c.enter(StateRolledBack)
		return cause
	}
	return c.rollback(ctx, state, cause)
}

// rollback resets dolt to the pre-merge commit. It returns cause on success;
// on failure it returns ROLLBACK_FAILED and keeps the merge state on disk.
func (c *Coordinator) rollback(ctx context.Context, state *MergeState, cause *MergeError) *MergeError {
	err := c.dolt.ResetHard(ctx, state.DoltPreMergeHash)
	if err == nil {
		var head string
		head, err = c.dolt.HeadHash(ctx)
		if err == nil && head != state.DoltPreMergeHash {
			err = fmt.Errorf("dolt HEAD is %s after reset, expected %s", head, state.DoltPreMergeHash)
		}
	}
	if err != nil {
		if saveErr := c.store.Save(state); saveErr != nil {
			c.splog.Error("%v", saveErr)
		}
		rbErr := newError(CodeRollbackFailed, state.Source, state.Target,
			fmt.Sprintf("dolt could not be reset to %s after %s; run 'kurt sync merge --abort' to retry", state.DoltPreMergeHash, cause.Code), err)
		rbErr.Conflicts = cause.Conflicts
		return rbErr
	}
	c.enter(StateRolledBack)
	if clearErr := c.store.Clear(); clearErr != nil {
		c.splog.Warn("%v", clearErr)
	}
	return cause
}

// verifyBeforeGit checks that dolt holds exactly the merge and git has not
// moved since the merge started
func (c *Coordinator) verifyBeforeGit(ctx context.Context, state *MergeState) error {
	head, err := c.dolt.HeadHash(ctx)
	if err != nil {
		return err
	}
	if head != state.DoltMergeHash {
		return fmt.Errorf("dolt HEAD is %s, expected merge commit %s", head, state.DoltMergeHash)
	}
	status, err := c.dolt.Status(ctx)
	if err != nil {
		return err
	}
	if status.Merging {
		return fmt.Errorf("dolt still reports a merge in progress")
	}
	gitHead, err := c.git.RevParse(ctx, "HEAD")
	if err != nil {
		return err
	}
	if gitHead != state.GitPreMergeHash {
		return fmt.Errorf("git HEAD moved from %s to %s during the dolt merge", state.GitPreMergeHash, gitHead)
	}
	merging, err := c.git.IsMergeInProgress(ctx)
	if err != nil {
		return err
	}
	if merging {
		return fmt.Errorf("git started a merge during the dolt merge")
	}
	return nil
}

func (c *Coordinator) abortGitIfMerging(ctx context.Context) {
	merging, err := c.git.IsMergeInProgress(ctx)
	if err != nil || !merging {
		return
	}
	if err := c.git.MergeAbort(ctx); err != nil {
		c.splog.Warn("git merge --abort failed: %v", err)
	}
}
