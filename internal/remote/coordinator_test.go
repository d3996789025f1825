package remote_test

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"kurt.dev/kurt/internal/branchsync"
	"kurt.dev/kurt/internal/dolt"
	kurterrors "kurt.dev/kurt/internal/errors"
	"kurt.dev/kurt/internal/git"
	"kurt.dev/kurt/internal/process/processtest"
	"kurt.dev/kurt/internal/remote"
	"kurt.dev/kurt/internal/tui"
)

var allCaps = branchsync.Capabilities{GitAvailable: true, GitRepo: true, DoltAvailable: true, DoltRepo: true}

type countingLock struct{ calls int }

func (l *countingLock) WithLock(_ context.Context, fn func() error) error {
	l.calls++
	return fn()
}

type fixture struct {
	log  *processtest.Log
	git  *processtest.Recorder
	dolt *processtest.Recorder
	lock *countingLock
}

func newFixture() *fixture {
	log := processtest.NewLog()
	return &fixture{
		log: log,
		git: processtest.NewRecorder("git", log).
			On(processtest.Response{Stdout: "main\n"}, "symbolic-ref").
			On(processtest.Response{Stdout: "origin\n"}, "remote"),
		dolt: processtest.NewRecorder("dolt", log).
			On(processtest.Response{Stdout: "* main\n  feature\n"}, "branch").
			On(processtest.Response{Stdout: "origin https://doltremoteapi.dolthub.com/acme/issues {}\n"}, "remote", "-v"),
		lock: &countingLock{},
	}
}

// coordinator must be called after scripting the push/pull responses, since
// the recorders answer with the first matching rule
func (f *fixture) coordinator(t *testing.T) *remote.Coordinator {
	t.Helper()
	splog, err := tui.NewSplogWithWriter(io.Discard, "")
	require.NoError(t, err)
	return remote.NewCoordinator(
		git.NewClient(f.git, "/repo", 0),
		dolt.NewClient(f.dolt, "/repo", 0),
		allCaps, f.lock, remote.Options{}, splog)
}

// networkCalls returns only push and pull invocations
func (f *fixture) networkCalls() []string {
	var out []string
	for _, line := range f.log.Lines() {
		fields := strings.Fields(line)
		if len(fields) > 1 && (fields[1] == "push" || fields[1] == "pull") {
			out = append(out, fields[0]+" "+fields[1])
		}
	}
	return out
}

func TestPushBothSucceed(t *testing.T) {
	f := newFixture()
	f.dolt.On(processtest.Response{Stdout: "Everything up-to-date\n"}, "push")
	f.git.On(processtest.Response{Stdout: "To origin\n*\trefs/heads/main:refs/heads/main\t[new branch]\nDone\n"}, "push")

	res, err := f.coordinator(t).Push(context.Background())
	require.NoError(t, err)
	require.True(t, res.Success())
	require.False(t, res.PartialSuccess())
	require.Equal(t, remote.StatusUpToDate, res.Dolt.Status)
	require.Equal(t, remote.StatusOK, res.Git.Status)
	require.Equal(t, []string{"dolt push", "git push"}, f.networkCalls())
}

func TestPushDoltRejectedGitAccepted(t *testing.T) {
	f := newFixture()
	f.dolt.On(processtest.Response{
		Stderr:   "error: failed to push some refs\nhint: Updates were rejected because the tip of your current branch is behind\n ! [rejected] main -> main (non-fast-forward)",
		ExitCode: 1,
	}, "push")

	res, err := f.coordinator(t).Push(context.Background())
	require.Error(t, err)
	require.False(t, res.Success())
	require.True(t, res.PartialSuccess())

	require.Equal(t, remote.StatusFailed, res.Dolt.Status)
	require.Equal(t, kurterrors.CodeRejected, res.Dolt.Err.Code)
	require.Contains(t, res.Dolt.Err.Guidance(), "kurt sync pull")
	require.Equal(t, remote.StatusOK, res.Git.Status)
	require.Equal(t, []string{"dolt push", "git push"}, f.networkCalls(), "git is pushed even though dolt failed")
}

func TestPushMissingRemote(t *testing.T) {
	f := newFixture()
	f.git = processtest.NewRecorder("git", f.log).
		On(processtest.Response{Stdout: "main\n"}, "symbolic-ref").
		On(processtest.Response{Stdout: "upstream\n"}, "remote")

	res, err := f.coordinator(t).Push(context.Background())
	require.Error(t, err)
	require.Equal(t, kurterrors.CodeNoRemote, res.Git.Err.Code)
	require.True(t, res.Dolt.Succeeded())
	require.Equal(t, []string{"dolt push"}, f.networkCalls())
}

func TestPushTimeoutIsNotRetried(t *testing.T) {
	f := newFixture()
	f.dolt.On(processtest.Response{Err: fmt.Errorf("%w after 5m0s: context deadline exceeded", kurterrors.ErrTimeout)}, "push")

	res, err := f.coordinator(t).Push(context.Background())
	require.ErrorIs(t, err, kurterrors.ErrTimeout)
	require.Equal(t, kurterrors.CodeTimeout, res.Dolt.Err.Code)
	require.Equal(t, []string{"dolt push", "git push"}, f.networkCalls())
}

func TestPull(t *testing.T) {
	t.Run("dolt then git", func(t *testing.T) {
		f := newFixture()
		f.dolt.On(processtest.Response{Stdout: "Fast-forward\n"}, "pull")
		f.git.On(processtest.Response{Stdout: "Already up to date.\n"}, "pull")

		res, err := f.coordinator(t).Pull(context.Background())
		require.NoError(t, err)
		require.Equal(t, remote.StatusOK, res.Dolt.Status)
		require.Equal(t, remote.StatusUpToDate, res.Git.Status)
		require.Equal(t, []string{"dolt pull", "git pull"}, f.networkCalls())
		require.Equal(t, 1, f.lock.calls)
	})

	t.Run("dolt failure skips git", func(t *testing.T) {
		f := newFixture()
		f.dolt.On(processtest.Response{Stderr: "fatal: could not resolve host: doltremoteapi.dolthub.com", ExitCode: 1}, "pull")

		res, err := f.coordinator(t).Pull(context.Background())
		require.Error(t, err)
		require.Equal(t, kurterrors.CodeNetworkError, res.Dolt.Err.Code)
		require.Equal(t, remote.StatusSkipped, res.Git.Status)
		require.False(t, res.PartialSuccess())
		require.Equal(t, []string{"dolt pull"}, f.networkCalls())
	})

	t.Run("dolt conflict", func(t *testing.T) {
		f := newFixture()
		f.dolt.On(processtest.Response{Stdout: "Auto-merging issues\nCONFLICT (content): Merge conflict in issues.\n"}, "pull")

		res, err := f.coordinator(t).Pull(context.Background())
		require.ErrorIs(t, err, kurterrors.ErrConflict)
		require.Equal(t, kurterrors.CodePullConflict, res.Dolt.Err.Code)
		require.Equal(t, remote.StatusSkipped, res.Git.Status)
	})
}

func TestBranchesMustMatch(t *testing.T) {
	f := newFixture()
	f.dolt = processtest.NewRecorder("dolt", f.log).
		On(processtest.Response{Stdout: "  main\n* feature\n"}, "branch")

	_, err := f.coordinator(t).Push(context.Background())
	code, ok := kurterrors.BranchSyncCode(err)
	require.True(t, ok)
	require.Equal(t, kurterrors.CodeSyncFailed, code)

	_, err = f.coordinator(t).Pull(context.Background())
	require.Error(t, err)
	require.Empty(t, f.networkCalls())
}
