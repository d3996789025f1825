package branchsync_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"kurt.dev/kurt/internal/branchsync"
	kurterrors "kurt.dev/kurt/internal/errors"
	"kurt.dev/kurt/internal/git"
	"kurt.dev/kurt/internal/process"
	"kurt.dev/kurt/internal/tui"
	"kurt.dev/kurt/testhelpers"
)

var allCaps = branchsync.Capabilities{GitAvailable: true, GitRepo: true, DoltAvailable: true, DoltRepo: true}

type fixture struct {
	log  *[]string
	git  *fakeGit
	dolt *fakeDolt
	lock *countingLock
	sync *branchsync.Synchronizer
}

// tb is satisfied by both *testing.T and *rapid.T
type tb interface {
	require.TestingT
	Helper()
}

func newFixture(t tb, branches ...string) *fixture {
	t.Helper()
	log := &[]string{}
	f := &fixture{
		log:  log,
		git:  &fakeGit{fakeVCS: newFakeVCS("git", log, "main", branches...)},
		dolt: &fakeDolt{fakeVCS: newFakeVCS("dolt", log, "main", branches...)},
		lock: &countingLock{},
	}
	splog, err := tui.NewSplogWithWriter(discard{}, "")
	require.NoError(t, err)
	f.sync = branchsync.NewSynchronizer(f.git, f.dolt, allCaps, f.lock, splog)
	return f
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func requireCode(t tb, err error, code kurterrors.BranchSyncErrorCode) {
	t.Helper()
	require.Error(t, err)
	got, ok := kurterrors.BranchSyncCode(err)
	require.True(t, ok, "expected a BranchSyncError, got %v", err)
	require.Equal(t, code, got)
}

func TestCreateBoth(t *testing.T) {
	ctx := context.Background()

	t.Run("creates in dolt then git", func(t *testing.T) {
		f := newFixture(t)
		res, err := f.sync.CreateBoth(ctx, "feature/x")
		require.NoError(t, err)
		require.Equal(t, &branchsync.SyncResult{GitBranch: "feature/x", DoltBranch: "feature/x", Created: true}, res)
		require.Equal(t, []string{"dolt create feature/x", "git create feature/x"}, *f.log)
		require.Equal(t, 1, f.lock.calls)
	})

	t.Run("second call is a no-op", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.sync.CreateBoth(ctx, "feature/x")
		require.NoError(t, err)
		res, err := f.sync.CreateBoth(ctx, "feature/x")
		require.NoError(t, err)
		require.False(t, res.Created)

		infos, err := f.sync.ListBranches(ctx)
		require.NoError(t, err)
		count := 0
		for _, info := range infos {
			if info.Name == "feature/x" {
				count++
				require.Equal(t, branchsync.StatusInSync, info.Status)
			}
		}
		require.Equal(t, 1, count)
	})

	t.Run("mirrors a branch that exists only in git", func(t *testing.T) {
		f := newFixture(t)
		f.git.branches["feature/y"] = true
		res, err := f.sync.CreateBoth(ctx, "feature/y")
		require.NoError(t, err)
		require.True(t, res.Created)
		require.Equal(t, []string{"dolt create feature/y"}, *f.log)
	})

	t.Run("git failure removes the dolt branch", func(t *testing.T) {
		f := newFixture(t)
		f.git.fail["create"] = errors.New("fatal: cannot lock ref")
		_, err := f.sync.CreateBoth(ctx, "feature/x")
		requireCode(t, err, kurterrors.CodeBranchCreateFailed)
		require.Equal(t, []string{"dolt create feature/x", "git create feature/x", "dolt delete feature/x"}, *f.log)
		require.False(t, f.dolt.branches["feature/x"])
	})

	t.Run("dolt failure never touches git", func(t *testing.T) {
		f := newFixture(t)
		f.dolt.fail["create"] = errors.New("dolt: permission denied")
		_, err := f.sync.CreateBoth(ctx, "feature/x")
		requireCode(t, err, kurterrors.CodeBranchCreateFailed)
		require.Equal(t, []string{"dolt create feature/x"}, *f.log)
	})

	t.Run("unborn git branch", func(t *testing.T) {
		f := newFixture(t)
		f.git.unborn = true
		_, err := f.sync.CreateBoth(ctx, "feature/x")
		requireCode(t, err, kurterrors.CodeOrphanBranch)
		require.Empty(t, *f.log)
	})

	t.Run("missing capabilities", func(t *testing.T) {
		f := newFixture(t)
		s := branchsync.NewSynchronizer(f.git, f.dolt, branchsync.Capabilities{GitAvailable: true, GitRepo: true}, nil, nil)
		_, err := s.CreateBoth(ctx, "feature/x")
		requireCode(t, err, kurterrors.CodeDoltNotAvailable)
		require.ErrorIs(t, err, kurterrors.ErrDoltNotAvailable)

		var bsErr *kurterrors.BranchSyncError
		require.ErrorAs(t, err, &bsErr)
		require.Equal(t, 2, bsErr.ExitCode())
	})
}

func TestValidateBranchName(t *testing.T) {
	tests := []struct {
		name    string
		branch  string
		wantErr string
	}{
		{name: "simple", branch: "feature/x"},
		{name: "empty", branch: "", wantErr: "git"},
		{name: "double dot", branch: "a..b", wantErr: "git"},
		{name: "leading dash", branch: "-x", wantErr: "git"},
		{name: "space", branch: "my branch", wantErr: "git"},
		{name: "lock suffix", branch: "topic.lock", wantErr: "git"},
		{name: "hash-like name", branch: "0123456789abcdefghijklmnopqrstuv", wantErr: "dolt"},
		{name: "lowercase head", branch: "head", wantErr: "dolt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := branchsync.ValidateBranchName(tt.branch)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			requireCode(t, err, kurterrors.CodeInvalidBranchName)
			require.Contains(t, err.Error(), "rejected by "+tt.wantErr)
		})
	}
}

func TestSwitchBoth(t *testing.T) {
	ctx := context.Background()

	t.Run("switches dolt first", func(t *testing.T) {
		f := newFixture(t, "feature")
		res, err := f.sync.SwitchBoth(ctx, "feature")
		require.NoError(t, err)
		require.Equal(t, "feature", res.GitBranch)
		require.Equal(t, []string{"dolt checkout feature", "git checkout feature"}, *f.log)
	})

	t.Run("already there", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.sync.SwitchBoth(ctx, "main")
		require.NoError(t, err)
		require.Empty(t, *f.log)
		require.Zero(t, f.lock.calls)
	})

	t.Run("git failure switches dolt back", func(t *testing.T) {
		f := newFixture(t, "feature")
		f.git.fail["checkout feature"] = errors.New("error: your local changes would be overwritten")
		_, err := f.sync.SwitchBoth(ctx, "feature")
		requireCode(t, err, kurterrors.CodeBranchSwitchFailed)
		require.Equal(t, []string{"dolt checkout feature", "git checkout feature", "dolt checkout main"}, *f.log)
		require.Equal(t, "main", f.dolt.current)
		require.Equal(t, "main", f.git.current)
	})

	t.Run("missing in dolt", func(t *testing.T) {
		f := newFixture(t)
		f.git.branches["feature"] = true
		_, err := f.sync.SwitchBoth(ctx, "feature")
		requireCode(t, err, kurterrors.CodeBranchNotFound)
		require.Contains(t, err.Error(), "missing in dolt")
	})

	t.Run("detached head", func(t *testing.T) {
		f := newFixture(t, "feature")
		f.git.detached = true
		_, err := f.sync.SwitchBoth(ctx, "feature")
		requireCode(t, err, kurterrors.CodeDetachedHead)
		require.ErrorIs(t, err, kurterrors.ErrDetachedHead)
		require.Empty(t, *f.log)
	})

	t.Run("orphan branch", func(t *testing.T) {
		f := newFixture(t, "feature")
		f.git.unborn = true
		_, err := f.sync.SwitchBoth(ctx, "feature")
		requireCode(t, err, kurterrors.CodeOrphanBranch)
	})
}

func TestDeleteBoth(t *testing.T) {
	ctx := context.Background()

	t.Run("deletes dolt then git", func(t *testing.T) {
		f := newFixture(t, "old")
		require.NoError(t, f.sync.DeleteBoth(ctx, "old", false))
		require.Equal(t, []string{"dolt delete old", "git delete old"}, *f.log)
	})

	t.Run("refuses the current branch", func(t *testing.T) {
		f := newFixture(t)
		err := f.sync.DeleteBoth(ctx, "main", true)
		requireCode(t, err, kurterrors.CodeCannotDeleteCurrent)
		require.Empty(t, *f.log)
	})

	t.Run("refuses dolt's current branch", func(t *testing.T) {
		f := newFixture(t, "old")
		f.dolt.current = "old"
		err := f.sync.DeleteBoth(ctx, "old", true)
		requireCode(t, err, kurterrors.CodeCannotDeleteCurrent)
		require.Contains(t, err.Error(), "dolt")
	})

	t.Run("partial failure is reported, not undone", func(t *testing.T) {
		f := newFixture(t, "old")
		f.git.fail["delete"] = errors.New("error: branch 'old' is not fully merged")
		err := f.sync.DeleteBoth(ctx, "old", false)
		requireCode(t, err, kurterrors.CodePartialFailure)
		require.False(t, f.dolt.branches["old"])
		require.True(t, f.git.branches["old"])
		require.Equal(t, []string{"dolt delete old", "git delete old"}, *f.log)
	})

	t.Run("unknown branch", func(t *testing.T) {
		f := newFixture(t)
		requireCode(t, f.sync.DeleteBoth(ctx, "nope", false), kurterrors.CodeBranchNotFound)
	})
}

func TestListBranches(t *testing.T) {
	f := newFixture(t, "shared")
	f.git.branches["git-side"] = true
	f.dolt.branches["dolt-side"] = true
	f.dolt.current = "shared"

	infos, err := f.sync.ListBranches(context.Background())
	require.NoError(t, err)
	require.Equal(t, []branchsync.BranchInfo{
		{Name: "dolt-side", Status: branchsync.StatusDoltOnly},
		{Name: "git-side", Status: branchsync.StatusGitOnly},
		{Name: "main", Status: branchsync.StatusInSync, Current: true},
		{Name: "shared", Status: branchsync.StatusInSync, DoltCurrent: true},
	}, infos)
}

func TestSyncToDolt(t *testing.T) {
	ctx := context.Background()

	t.Run("creates and checks out the git branch in dolt", func(t *testing.T) {
		f := newFixture(t)
		f.git.branches["feature"] = true
		f.git.current = "feature"
		res, err := f.sync.SyncToDolt(ctx)
		require.NoError(t, err)
		require.True(t, res.Created)
		require.Equal(t, "feature", f.dolt.current)
		require.Equal(t, []string{"dolt create feature", "dolt checkout feature"}, *f.log)
	})

	t.Run("matching branches are a no-op", func(t *testing.T) {
		f := newFixture(t)
		res, err := f.sync.SyncToDolt(ctx)
		require.NoError(t, err)
		require.False(t, res.Created)
		require.Empty(t, *f.log)
	})

	t.Run("detached head", func(t *testing.T) {
		f := newFixture(t)
		f.git.detached = true
		_, err := f.sync.SyncToDolt(ctx)
		requireCode(t, err, kurterrors.CodeDetachedHead)
	})
}

func TestSyncToGit(t *testing.T) {
	f := newFixture(t)
	f.dolt.branches["data-fix"] = true
	f.dolt.current = "data-fix"

	res, err := f.sync.SyncToGit(context.Background())
	require.NoError(t, err)
	require.Equal(t, &branchsync.SyncResult{GitBranch: "data-fix", DoltBranch: "data-fix", Created: true}, res)
	require.Equal(t, []string{"git create data-fix", "git checkout data-fix"}, *f.log)
}

var branchNames = rapid.StringMatching(`[a-z][a-z0-9]{0,8}(/[a-z][a-z0-9-]{0,8})?`).
	Filter(func(s string) bool { return s != "head" })

func TestCreateBothProperties(t *testing.T) {
	ctx := context.Background()

	t.Run("idempotent", rapid.MakeCheck(func(rt *rapid.T) {
		name := branchNames.Draw(rt, "name")
		f := newFixture(rt)
		first, err := f.sync.CreateBoth(ctx, name)
		require.NoError(rt, err)
		require.Equal(rt, name != "main", first.Created)

		second, err := f.sync.CreateBoth(ctx, name)
		require.NoError(rt, err)
		require.False(rt, second.Created)
	}))

	t.Run("both or neither", rapid.MakeCheck(func(rt *rapid.T) {
		name := branchNames.Draw(rt, "name")
		f := newFixture(rt)
		if rapid.Bool().Draw(rt, "gitFails") {
			f.git.fail["create"] = errors.New("git refused")
		}
		if rapid.Bool().Draw(rt, "doltFails") {
			f.dolt.fail["create"] = errors.New("dolt refused")
		}
		_, _ = f.sync.CreateBoth(ctx, name)
		require.Equal(rt, f.git.branches[name], f.dolt.branches[name])
	}))

	t.Run("dolt before git", rapid.MakeCheck(func(rt *rapid.T) {
		name := branchNames.Draw(rt, "name")
		if name == "main" {
			rt.Skip("main already exists")
		}
		f := newFixture(rt)
		_, err := f.sync.CreateBoth(ctx, name)
		require.NoError(rt, err)
		require.Equal(rt, []string{"dolt create " + name, "git create " + name}, *f.log)
	}))
}

func TestCreateBothWithRealGit(t *testing.T) {
	t.Parallel()
	scene := testhelpers.NewScene(t, testhelpers.BasicSceneSetup)
	log := &[]string{}
	dolt := &fakeDolt{fakeVCS: newFakeVCS("dolt", log, "main")}
	gitClient := git.NewClient(process.NewExecRunner("git", time.Minute, "GIT_CONFIG_GLOBAL=/dev/null"), scene.Dir, time.Minute)
	s := branchsync.NewSynchronizer(gitClient, dolt, allCaps, nil, nil)
	ctx := context.Background()

	res, err := s.CreateBoth(ctx, "feature/x")
	require.NoError(t, err)
	require.Equal(t, &branchsync.SyncResult{GitBranch: "feature/x", DoltBranch: "feature/x", Created: true}, res)

	branches, err := scene.Repo.GetLocalBranches()
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"main", "feature/x"}, branches)

	_, err = s.SwitchBoth(ctx, "feature/x")
	require.NoError(t, err)
	current, err := scene.Repo.CurrentBranchName()
	require.NoError(t, err)
	require.Equal(t, "feature/x", current)
	require.Equal(t, "feature/x", dolt.current)
}
