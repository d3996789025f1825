package branchsync

import (
	"context"
	"fmt"
	"sort"

	kurterrors "kurt.dev/kurt/internal/errors"
	"kurt.dev/kurt/internal/dolt"
)

// CreateBoth creates name in dolt and then git without switching to it. When
// git refuses, the dolt branch created here is deleted again.
func (s *Synchronizer) CreateBoth(ctx context.Context, name string) (*SyncResult, error) {
	if err := ValidateBranchName(name); err != nil {
		return nil, err
	}
	if err := s.caps.Check(); err != nil {
		return nil, err
	}

	result := &SyncResult{GitBranch: name, DoltBranch: name}
	err := s.locked(ctx, func() error {
		head, err := s.git.Head(ctx)
		if err != nil {
			return kurterrors.NewBranchSyncError(kurterrors.CodeBranchCreateFailed, name, "failed to read git HEAD", err)
		}
		if head.Unborn {
			return kurterrors.NewBranchSyncError(kurterrors.CodeOrphanBranch, name, "git has no commits to branch from", nil)
		}

		inGit, inDolt, err := s.exists(ctx, name)
		if err != nil {
			return err
		}
		if inGit && inDolt {
			s.splog.Debug("branch %s already exists in git and dolt", name)
			return nil
		}

		if !inDolt {
			if err := s.dolt.CreateBranch(ctx, name); err != nil {
				return kurterrors.NewBranchSyncError(kurterrors.CodeBranchCreateFailed, name, "dolt refused the branch", err)
			}
		}
		if !inGit {
			if err := s.git.CreateBranch(ctx, name); err != nil {
				if !inDolt {
					if rbErr := s.dolt.DeleteBranch(ctx, name, true); rbErr != nil {
						return kurterrors.NewBranchSyncError(kurterrors.CodeBranchCreateFailed, name,
							fmt.Sprintf("git refused the branch and the dolt branch could not be removed (%v)", rbErr), err)
					}
				}
				return kurterrors.NewBranchSyncError(kurterrors.CodeBranchCreateFailed, name, "git refused the branch", err)
			}
		}
		result.Created = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// SwitchBoth checks out name in dolt and then git. A git failure switches
// dolt back to where it was.
func (s *Synchronizer) SwitchBoth(ctx context.Context, name string) (*SyncResult, error) {
	if err := s.caps.Check(); err != nil {
		return nil, err
	}
	gitCurrent, err := s.gitHead(ctx)
	if err != nil {
		return nil, err
	}

	inGit, inDolt, err := s.exists(ctx, name)
	if err != nil {
		return nil, err
	}
	switch {
	case !inGit && !inDolt:
		return nil, kurterrors.NewBranchSyncError(kurterrors.CodeBranchNotFound, name, "branch exists in neither git nor dolt", nil)
	case !inGit:
		return nil, kurterrors.NewBranchSyncError(kurterrors.CodeBranchNotFound, name, "branch is missing in git; run 'kurt sync branch create' to mirror it", nil)
	case !inDolt:
		return nil, kurterrors.NewBranchSyncError(kurterrors.CodeBranchNotFound, name, "branch is missing in dolt; run 'kurt sync branch create' to mirror it", nil)
	}

	doltCurrent, err := s.dolt.CurrentBranch(ctx)
	if err != nil {
		return nil, kurterrors.NewBranchSyncError(kurterrors.CodeBranchSwitchFailed, name, "failed to read dolt branch", err)
	}
	result := &SyncResult{GitBranch: name, DoltBranch: name}
	if gitCurrent == name && doltCurrent == name {
		return result, nil
	}

	err = s.locked(ctx, func() error {
		if doltCurrent != name {
			if err := s.dolt.Checkout(ctx, name); err != nil {
				return kurterrors.NewBranchSyncError(kurterrors.CodeBranchSwitchFailed, name, "dolt checkout failed", err)
			}
		}
		if gitCurrent != name {
			if err := s.git.Checkout(ctx, name); err != nil {
				if doltCurrent != name {
					if rbErr := s.dolt.Checkout(ctx, doltCurrent); rbErr != nil {
						s.splog.Error("dolt is on %s but git stayed on %s: %v", name, gitCurrent, rbErr)
					}
				}
				return kurterrors.NewBranchSyncError(kurterrors.CodeBranchSwitchFailed, name, "git checkout failed", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// DeleteBoth deletes name from dolt and then git. If only dolt succeeds the
// error is a PartialFailure; the dolt branch is not re-created.
func (s *Synchronizer) DeleteBoth(ctx context.Context, name string, force bool) error {
	if err := s.caps.Check(); err != nil {
		return err
	}
	head, err := s.git.Head(ctx)
	if err != nil {
		return kurterrors.NewBranchSyncError(kurterrors.CodeBranchDeleteFailed, name, "failed to read git HEAD", err)
	}
	if head.Branch == name {
		return kurterrors.NewBranchSyncError(kurterrors.CodeCannotDeleteCurrent, name, "branch is checked out in git", nil)
	}
	doltCurrent, err := s.dolt.CurrentBranch(ctx)
	if err != nil {
		return kurterrors.NewBranchSyncError(kurterrors.CodeBranchDeleteFailed, name, "failed to read dolt branch", err)
	}
	if doltCurrent == name {
		return kurterrors.NewBranchSyncError(kurterrors.CodeCannotDeleteCurrent, name, "branch is checked out in dolt", nil)
	}

	inGit, inDolt, err := s.exists(ctx, name)
	if err != nil {
		return err
	}
	if !inGit && !inDolt {
		return kurterrors.NewBranchSyncError(kurterrors.CodeBranchNotFound, name, "branch exists in neither git nor dolt", nil)
	}

	return s.locked(ctx, func() error {
		if inDolt {
			if err := s.dolt.DeleteBranch(ctx, name, force); err != nil {
				return kurterrors.NewBranchSyncError(kurterrors.CodeBranchDeleteFailed, name, "dolt refused to delete the branch", err)
			}
		}
		if inGit {
			if err := s.git.DeleteBranch(ctx, name, force); err != nil {
				if inDolt {
					return kurterrors.NewBranchSyncError(kurterrors.CodePartialFailure, name, "deleted in dolt but git refused; delete it in git by hand", err)
				}
				return kurterrors.NewBranchSyncError(kurterrors.CodeBranchDeleteFailed, name, "git refused to delete the branch", err)
			}
		}
		return nil
	})
}

// BranchStatus says which systems have a branch
type BranchStatus string

const (
	StatusInSync   BranchStatus = "in_sync"
	StatusGitOnly  BranchStatus = "git_only"
	StatusDoltOnly BranchStatus = "dolt_only"
)

// BranchInfo is one row of ListBranches
type BranchInfo struct {
	Name   string
	Status BranchStatus
	// Current is set for git's checked-out branch, DoltCurrent for dolt's
	Current     bool
	DoltCurrent bool
}

// ListBranches returns the union of both systems' branches, sorted by name
func (s *Synchronizer) ListBranches(ctx context.Context) ([]BranchInfo, error) {
	if err := s.caps.Check(); err != nil {
		return nil, err
	}
	gitBranches, err := s.git.ListBranches(ctx)
	if err != nil {
		return nil, kurterrors.NewBranchSyncError(kurterrors.CodeSyncFailed, "", "failed to list git branches", err)
	}
	doltBranches, err := s.dolt.ListBranches(ctx)
	if err != nil {
		return nil, kurterrors.NewBranchSyncError(kurterrors.CodeSyncFailed, "", "failed to list dolt branches", err)
	}
	head, err := s.git.Head(ctx)
	if err != nil {
		return nil, kurterrors.NewBranchSyncError(kurterrors.CodeSyncFailed, "", "failed to read git HEAD", err)
	}
	doltCurrent, err := s.dolt.CurrentBranch(ctx)
	if err != nil {
		return nil, kurterrors.NewBranchSyncError(kurterrors.CodeSyncFailed, "", "failed to read dolt branch", err)
	}

	statuses := map[string]BranchStatus{}
	for _, b := range gitBranches {
		statuses[b] = StatusGitOnly
	}
	for _, b := range doltBranches {
		if _, ok := statuses[b]; ok {
			statuses[b] = StatusInSync
		} else {
			statuses[b] = StatusDoltOnly
		}
	}

	infos := make([]BranchInfo, 0, len(statuses))
	for name, status := range statuses {
		infos = append(infos, BranchInfo{
			Name:        name,
			Status:      status,
			Current:     name == head.Branch && !head.Detached,
			DoltCurrent: name == doltCurrent,
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}

// SyncToDolt puts dolt on git's current branch, creating it in dolt when needed
func (s *Synchronizer) SyncToDolt(ctx context.Context) (*SyncResult, error) {
	if err := s.caps.Check(); err != nil {
		return nil, err
	}
	name, err := s.gitHead(ctx)
	if err != nil {
		return nil, err
	}
	doltCurrent, err := s.dolt.CurrentBranch(ctx)
	if err != nil {
		return nil, kurterrors.NewBranchSyncError(kurterrors.CodeSyncFailed, name, "failed to read dolt branch", err)
	}
	result := &SyncResult{GitBranch: name, DoltBranch: name}
	if doltCurrent == name {
		return result, nil
	}
	if err := dolt.ValidateBranchName(name); err != nil {
		return nil, kurterrors.NewBranchSyncError(kurterrors.CodeInvalidBranchName, name, "git branch cannot be mirrored into dolt", err)
	}

	err = s.locked(ctx, func() error {
		exists, err := s.dolt.BranchExists(ctx, name)
		if err != nil {
			return kurterrors.NewBranchSyncError(kurterrors.CodeSyncFailed, name, "failed to list dolt branches", err)
		}
		if !exists {
			if err := s.dolt.CreateBranch(ctx, name); err != nil {
				return kurterrors.NewBranchSyncError(kurterrors.CodeSyncFailed, name, "failed to create dolt branch", err)
			}
			result.Created = true
		}
		if err := s.dolt.Checkout(ctx, name); err != nil {
			return kurterrors.NewBranchSyncError(kurterrors.CodeSyncFailed, name, "dolt checkout failed", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.splog.Debug("dolt now on %s", name)
	return result, nil
}

// SyncToGit puts git on dolt's current branch, creating it in git when needed
func (s *Synchronizer) SyncToGit(ctx context.Context) (*SyncResult, error) {
	if err := s.caps.Check(); err != nil {
		return nil, err
	}
	gitCurrent, err := s.gitHead(ctx)
	if err != nil {
		return nil, err
	}
	name, err := s.dolt.CurrentBranch(ctx)
	if err != nil {
		return nil, kurterrors.NewBranchSyncError(kurterrors.CodeSyncFailed, "", "failed to read dolt branch", err)
	}
	result := &SyncResult{GitBranch: name, DoltBranch: name}
	if gitCurrent == name {
		return result, nil
	}

	err = s.locked(ctx, func() error {
		exists, err := s.git.BranchExists(ctx, name)
		if err != nil {
			return kurterrors.NewBranchSyncError(kurterrors.CodeSyncFailed, name, "failed to list git branches", err)
		}
		if !exists {
			if err := s.git.CreateBranch(ctx, name); err != nil {
				return kurterrors.NewBranchSyncError(kurterrors.CodeSyncFailed, name, "failed to create git branch", err)
			}
			result.Created = true
		}
		if err := s.git.Checkout(ctx, name); err != nil {
			return kurterrors.NewBranchSyncError(kurterrors.CodeSyncFailed, name, "git checkout failed", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.splog.Debug("git now on %s", name)
	return result, nil
}
