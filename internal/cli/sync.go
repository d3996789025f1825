package cli

import (
	"github.com/spf13/cobra"

	"kurt.dev/kurt/internal/cli/helpers"
	"kurt.dev/kurt/internal/remote"
	"kurt.dev/kurt/internal/runtime"
	"kurt.dev/kurt/internal/tui"
)

// newSyncCmd creates the sync command group
func newSyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Branch, merge, push and pull git and dolt together",
	}
	cmd.AddCommand(
		newSyncPullCmd(),
		newSyncPushCmd(),
		newSyncBranchCmd(),
		newSyncMergeCmd(),
	)
	return cmd
}

func newSyncPullCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pull",
		Short: "Pull the current branch into dolt, then git",
		Long: `Pull the current branch from the dolt remote and then from the git remote.

If the dolt pull fails, git is not pulled, so git never gets ahead of the data.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return helpers.Run(cmd, func(ctx *runtime.Context) error {
				res, err := ctx.RemoteCoordinator().Pull(ctx.Context)
				return reportRemote(ctx.Splog, res, err)
			})
		},
	}
}

func newSyncPushCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "push",
		Short: "Push the current branch to the dolt and git remotes",
		Long: `Push the current branch to the dolt remote and then to the git remote.

Both pushes are attempted. When only one succeeds, kurt says which one and
exits nonzero.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return helpers.Run(cmd, func(ctx *runtime.Context) error {
				res, err := ctx.RemoteCoordinator().Push(ctx.Context)
				return reportRemote(ctx.Splog, res, err)
			})
		},
	}
}

func reportRemote(splog *tui.Splog, res *remote.Result, err error) error {
	if res == nil {
		return err
	}
	for _, side := range []remote.SideResult{res.Dolt, res.Git} {
		switch side.Status {
		case remote.StatusOK, remote.StatusUpToDate:
			splog.Info("%s %s", tui.GlyphPass, side)
		case remote.StatusSkipped:
			splog.Info("%s %s", tui.ColorDim("-"), tui.ColorDim(side.String()))
		default:
			splog.Error("%s", side)
			if side.Err != nil {
				splog.Tip("%s", side.Err.Guidance())
			}
		}
	}
	if res.PartialSuccess() {
		splog.Warn("%s only partly succeeded: dolt %s, git %s", res.Op, res.Dolt.Status, res.Git.Status)
	}
	if err != nil {
		return &ExitError{Code: 1, Err: err, Silent: true}
	}
	return nil
}
