package merge

import (
	"context"
	"errors"
	"fmt"

	"kurt.dev/kurt/internal/dolt"
)

// AbortResult lists what AbortMerge undid. All false means nothing was in
// progress.
type AbortResult struct {
	DoltReset   bool
	DoltAborted bool
	GitAborted  bool
	StateClear  bool
}

// Noop reports that there was nothing to abort
func (r *AbortResult) Noop() bool {
	return !r.DoltReset && !r.DoltAborted && !r.GitAborted && !r.StateClear
}

// AbortMerge returns both systems to the state before an unfinished merge.
// It retries a failed dolt rollback from the recorded merge state, aborts
// native merges left in progress, and is a no-op when nothing is in progress.
// Only a dolt reset that does not take is reported as ROLLBACK_FAILED.
func (c *Coordinator) AbortMerge(ctx context.Context) (*AbortResult, error) {
	result := &AbortResult{}
	err := c.locked(ctx, func() error {
		state, err := c.store.Load()
		if err != nil {
			return newError(CodePrecondition, "", "", "failed to read the merge state", err)
		}
		var source, target string
		if state != nil {
			source, target = state.Source, state.Target
		}

		status, err := c.dolt.Status(ctx)
		if err != nil {
			return newError(CodePrecondition, source, target, "", err)
		}
		if status.Merging {
			if err := c.dolt.MergeAbort(ctx); err != nil {
				return newError(CodeDoltMergeFailed, source, target, "dolt merge --abort failed", err)
			}
			result.DoltAborted = true
		}

		if state != nil {
			reset, err := c.resetDoltTo(ctx, state)
			if err != nil {
				return newError(CodeRollbackFailed, source, target,
					"dolt could not be reset to "+state.DoltPreMergeHash, err)
			}
			result.DoltReset = reset
		}

		gitMerging, err := c.git.IsMergeInProgress(ctx)
		if err != nil {
			return newError(CodePrecondition, source, target, "", err)
		}
		if gitMerging {
			if err := c.git.MergeAbort(ctx); err != nil {
				return newError(CodeGitMergeFailed, source, target, "git merge --abort failed", err)
			}
			result.GitAborted = true
		}

		if state != nil {
			if err := c.store.Clear(); err != nil {
				return newError(CodePrecondition, source, target, "", err)
			}
			result.StateClear = true
		}
		return nil
	})
	if err == nil {
		return result, nil
	}
	var mErr *MergeError
	if errors.As(err, &mErr) {
		return result, mErr
	}
	return result, newError(CodePrecondition, "", "", "abort could not start", err)
}

// resetDoltTo puts the recorded target branch back on its pre-merge commit
func (c *Coordinator) resetDoltTo(ctx context.Context, state *MergeState) (bool, error) {
	current, err := c.dolt.CurrentBranch(ctx)
	if err != nil {
		return false, err
	}
	if current != state.Target {
		if err := c.dolt.Checkout(ctx, state.Target); err != nil {
			return false, fmt.Errorf("failed to check out %s in dolt: %w", state.Target, err)
		}
	}
	head, err := c.dolt.HeadHash(ctx)
	if err != nil {
		return false, err
	}
	if head == state.DoltPreMergeHash {
		return false, nil
	}
	if err := c.dolt.ResetHard(ctx, state.DoltPreMergeHash); err != nil {
		return false, err
	}
	head, err = c.dolt.HeadHash(ctx)
	if err != nil {
		return false, err
	}
	if head != state.DoltPreMergeHash {
		return false, fmt.Errorf("dolt HEAD is %s after reset, expected %s", head, state.DoltPreMergeHash)
	}
	return true, nil
}

// ConflictPreview is what a merge would run into, computed without merging
type ConflictPreview struct {
	Source       string
	Target       string
	DoltTables   []dolt.TableConflicts
	GitConflicts []string
}

// Clean reports whether the merge would go through without conflicts
func (p *ConflictPreview) Clean() bool {
	for _, t := range p.DoltTables {
		if t.DataConflicts > 0 || t.SchemaConflicts > 0 {
			return false
		}
	}
	return len(p.GitConflicts) == 0
}

// CheckConflicts previews merging source into target in both systems. It
// changes nothing: dolt is asked over SQL and git through merge-tree.
func (c *Coordinator) CheckConflicts(ctx context.Context, source, target string) (*ConflictPreview, error) {
	if err := c.caps.Check(); err != nil {
		return nil, newError(CodePrecondition, source, target, "environment is not ready", err)
	}
	if c.inspector == nil {
		return nil, newError(CodePrecondition, source, target, "previewing dolt conflicts needs the dolt sql-server", nil)
	}
	preview := &ConflictPreview{Source: source, Target: target}

	tables, err := c.inspector.PreviewConflicts(ctx, target, source)
	if err != nil {
		return nil, newError(CodePrecondition, source, target, "dolt preview failed", err)
	}
	preview.DoltTables = tables

	files, err := c.git.MergeTreePreview(ctx, target, source)
	if err != nil {
		return nil, newError(CodePrecondition, source, target, "git preview failed", err)
	}
	preview.GitConflicts = files
	return preview, nil
}
