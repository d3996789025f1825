package process_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	kurterrors "kurt.dev/kurt/internal/errors"
	"kurt.dev/kurt/internal/process"
	"kurt.dev/kurt/internal/process/processtest"
)

func TestExecRunner(t *testing.T) {
	t.Parallel()

	t.Run("captures stdout", func(t *testing.T) {
		t.Parallel()
		r := process.NewExecRunner("git", time.Minute)
		res, err := r.Run(context.Background(), process.Command{Args: []string{"--version"}})
		require.NoError(t, err)
		require.Contains(t, res.Trimmed(), "git version")
		require.Equal(t, 0, res.ExitCode)
	})

	t.Run("nonzero exit returns command error", func(t *testing.T) {
		t.Parallel()
		r := process.NewExecRunner("git", time.Minute)
		res, err := r.Run(context.Background(), process.Command{Args: []string{"rev-parse", "--verify", "no-such-ref"}, Dir: t.TempDir()})
		require.Error(t, err)

		cmdErr, ok := kurterrors.AsCommandError(err)
		require.True(t, ok)
		require.NotZero(t, cmdErr.ExitCode)
		require.Equal(t, cmdErr.ExitCode, res.ExitCode)
		require.Equal(t, cmdErr.ExitCode, process.ExitCode(err))
	})

	t.Run("missing binary is not installed", func(t *testing.T) {
		t.Parallel()
		r := process.NewExecRunner("kurt-definitely-not-a-binary", time.Minute)
		_, err := r.Run(context.Background(), process.Command{Args: []string{"version"}})
		require.ErrorIs(t, err, kurterrors.ErrNotInstalled)
	})

	t.Run("timeout is typed", func(t *testing.T) {
		t.Parallel()
		r := process.NewExecRunner("sleep", time.Minute)
		_, err := r.Run(context.Background(), process.Command{Args: []string{"5"}, Timeout: 50 * time.Millisecond})
		require.ErrorIs(t, err, kurterrors.ErrTimeout)
	})
}

func TestResultLines(t *testing.T) {
	res := &process.Result{Stdout: "  main\r\n\n* feature\n"}
	require.Equal(t, []string{"  main", "* feature"}, res.Lines())
	require.Empty(t, (&process.Result{}).Lines())
	require.Empty(t, (&process.Result{Stdout: " \n\t\r\n"}).Lines())

	// the first line keeps its indentation too
	res = &process.Result{Stdout: "\n  feature\n* main"}
	require.Equal(t, []string{"  feature", "* main"}, res.Lines())
}

func TestRecorder(t *testing.T) {
	log := processtest.NewLog()
	git := processtest.NewRecorder("git", log).
		Once(processtest.Response{ExitCode: 1, Stderr: "boom"}, "checkout").
		On(processtest.Response{Stdout: "main\n"}, "branch", "--show-current")
	dolt := processtest.NewRecorder("dolt", log)

	_, err := dolt.Run(context.Background(), process.Command{Args: []string{"checkout", "main"}})
	require.NoError(t, err)

	_, err = git.Run(context.Background(), process.Command{Args: []string{"checkout", "main"}})
	require.Equal(t, 1, process.ExitCode(err))

	_, err = git.Run(context.Background(), process.Command{Args: []string{"checkout", "main"}})
	require.NoError(t, err, "once rules are consumed")

	res, err := git.Run(context.Background(), process.Command{Args: []string{"branch", "--show-current"}})
	require.NoError(t, err)
	require.Equal(t, "main", res.Trimmed())

	require.Equal(t, []string{
		"dolt checkout main",
		"git checkout main",
		"git checkout main",
		"git branch --show-current",
	}, log.Lines())
}
