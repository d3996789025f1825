package cli_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"kurt.dev/kurt/internal/doctor"
	"kurt.dev/kurt/internal/hooks"
	"kurt.dev/kurt/testhelpers"
)

func TestVersionCommand(t *testing.T) {
	t.Parallel()
	run := runKurt(t, t.TempDir(), nil, "version")
	require.Equal(t, 0, run.code, run.stderr)
	require.Contains(t, run.stdout, "kurt dev")
}

func TestHooksCommands(t *testing.T) {
	t.Parallel()
	scene := testhelpers.NewScene(t, testhelpers.BasicSceneSetup)

	run := runKurt(t, scene.Dir, nil, "hooks", "install")
	require.Equal(t, 0, run.code, run.stderr)
	for _, name := range hooks.Names {
		content, err := os.ReadFile(filepath.Join(scene.Repo.HooksDir(), name))
		require.NoError(t, err)
		require.Contains(t, string(content), hooks.ManagedMarker)
		require.Contains(t, string(content), "hook "+name)
	}

	run = runKurt(t, scene.Dir, nil, "hooks", "status")
	require.Equal(t, 0, run.code, run.stderr)
	require.Equal(t, len(hooks.Names), strings.Count(run.stdout, string(hooks.StateCurrent)))

	run = runKurt(t, scene.Dir, nil, "hooks", "uninstall")
	require.Equal(t, 0, run.code, run.stderr)
	for _, name := range hooks.Names {
		_, err := os.Stat(filepath.Join(scene.Repo.HooksDir(), name))
		require.True(t, os.IsNotExist(err), "%s should be removed", name)
	}
}

func TestHooksInstallKeepsUserHook(t *testing.T) {
	t.Parallel()
	scene := testhelpers.NewScene(t, testhelpers.BasicSceneSetup)
	require.NoError(t, scene.Repo.WriteHook(hooks.PostCommit, "#!/bin/sh\necho mine\n"))

	run := runKurt(t, scene.Dir, nil, "hooks", "install")
	require.Equal(t, 0, run.code, run.stderr)
	require.Contains(t, run.stdout, "Moved your existing post-commit hook")

	backup, err := os.ReadFile(filepath.Join(scene.Repo.HooksDir(), hooks.PostCommit+hooks.BackupSuffix))
	require.NoError(t, err)
	require.Contains(t, string(backup), "echo mine")
}

func TestHookCommand(t *testing.T) {
	t.Parallel()

	t.Run("skipped when KURT_SKIP_HOOKS is set", func(t *testing.T) {
		t.Parallel()
		scene := testhelpers.NewScene(t, testhelpers.BasicSceneSetup)
		run := runKurt(t, scene.Dir, []string{"KURT_SKIP_HOOKS=1"}, "hook", hooks.PrePush, "origin", "url")
		require.Equal(t, 0, run.code, run.stderr)
		require.Empty(t, run.stdout)
	})

	t.Run("unknown hook fails", func(t *testing.T) {
		t.Parallel()
		scene := testhelpers.NewScene(t, testhelpers.BasicSceneSetup)
		run := runKurt(t, scene.Dir, nil, "hook", "pre-rebase")
		require.NotEqual(t, 0, run.code)
		require.Contains(t, run.stderr, "unknown hook")
	})
}

func TestDoctorCommand(t *testing.T) {
	t.Parallel()
	scene := testhelpers.NewScene(t, testhelpers.BasicSceneSetup)

	run := runKurt(t, scene.Dir, nil, "doctor", "--json")
	require.Equal(t, 1, run.code, run.stderr)

	var report doctor.Report
	require.NoError(t, json.Unmarshal([]byte(run.stdout), &report))
	require.Len(t, report.Checks, 7)

	check, ok := report.Get(doctor.CheckDoltInitialized)
	require.True(t, ok)
	require.Equal(t, doctor.StatusFail, check.Status)
	require.False(t, check.Fixable)

	check, ok = report.Get(doctor.CheckHooksInstalled)
	require.True(t, ok)
	require.Equal(t, doctor.StatusFail, check.Status)
	require.True(t, check.Fixable)
}

func TestRepairInstallsHooks(t *testing.T) {
	t.Parallel()
	scene := testhelpers.NewScene(t, testhelpers.BasicSceneSetup)

	run := runKurt(t, scene.Dir, nil, "repair")
	// dolt is missing, so repair cannot make the repository healthy
	require.Equal(t, 1, run.code)
	require.Contains(t, run.stdout, "fixed "+doctor.CheckHooksInstalled)

	_, err := os.Stat(filepath.Join(scene.Repo.HooksDir(), hooks.PostCheckout))
	require.NoError(t, err)
}

func TestCommandsWithoutDolt(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		args     []string
		wantCode int
		wantErr  string
	}{
		{name: "init", args: []string{"init"}, wantCode: 2, wantErr: "dolt"},
		{name: "branch list", args: []string{"sync", "branch", "list"}, wantCode: 2, wantErr: "dolt"},
		{name: "branch create", args: []string{"sync", "branch", "create", "feature"}, wantCode: 2, wantErr: "dolt"},
		{name: "merge", args: []string{"sync", "merge", "feature"}, wantCode: 4},
		{name: "push", args: []string{"sync", "push"}, wantCode: 2, wantErr: "dolt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			scene := testhelpers.NewScene(t, testhelpers.BasicSceneSetup)
			run := runKurt(t, scene.Dir, nil, tt.args...)
			require.Equal(t, tt.wantCode, run.code, "stdout: %s\nstderr: %s", run.stdout, run.stderr)
			if tt.wantErr != "" {
				require.Contains(t, run.stderr, tt.wantErr)
			}
		})
	}
}

func TestOutsideGitRepository(t *testing.T) {
	t.Parallel()
	run := runKurt(t, t.TempDir(), nil, "sync", "branch", "list")
	require.Equal(t, 2, run.code, run.stderr)
	require.Contains(t, run.stderr, "git")
}

func TestBranchDeleteNeedsConfirmation(t *testing.T) {
	t.Parallel()
	scene := testhelpers.NewScene(t, testhelpers.BasicSceneSetup)

	run := runKurt(t, scene.Dir, nil, "sync", "branch", "delete", "feature")
	require.Equal(t, 1, run.code)
	require.Contains(t, run.stderr, "--yes")
}

func TestMergeFailuresBeforeMergingExitGeneric(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		setup   func(t *testing.T, scene *testhelpers.Scene)
		args    []string
		wantErr string
	}{
		{
			name: "detached HEAD",
			setup: func(t *testing.T, scene *testhelpers.Scene) {
				require.NoError(t, scene.Repo.RunGitCommand("checkout", "--quiet", "--detach", "HEAD"))
			},
			args:    []string{"sync", "merge", "feature"},
			wantErr: "detached",
		},
		{
			name:    "no source branch",
			setup:   func(*testing.T, *testhelpers.Scene) {},
			args:    []string{"sync", "merge"},
			wantErr: "source branch is required",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			scene := testhelpers.NewScene(t, testhelpers.BasicSceneSetup)
			tt.setup(t, scene)

			run := runKurt(t, scene.Dir, nil, tt.args...)
			require.Equal(t, 4, run.code, "stdout: %s\nstderr: %s", run.stdout, run.stderr)
			require.Contains(t, run.stderr, tt.wantErr)
		})
	}
}

func TestMergeFlagsExclusive(t *testing.T) {
	t.Parallel()
	scene := testhelpers.NewScene(t, testhelpers.BasicSceneSetup)

	run := runKurt(t, scene.Dir, nil, "sync", "merge", "feature", "--check", "--abort")
	require.Equal(t, 1, run.code)
	require.Contains(t, run.stderr, "none of the others can be")
}
