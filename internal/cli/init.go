package cli

import (
	"github.com/spf13/cobra"

	"kurt.dev/kurt/internal/cli/helpers"
	"kurt.dev/kurt/internal/config"
	kurterrors "kurt.dev/kurt/internal/errors"
	"kurt.dev/kurt/internal/runtime"
	"kurt.dev/kurt/internal/tui"
)

// newInitCmd creates the init command
func newInitCmd() *cobra.Command {
	var skipHooks bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Set up kurt in the current git repository",
		Long: `Set up kurt in the current git repository.

Writes a default kurt_config.json into the git directory, creates the dolt
database if there is none, installs kurt's git hooks and puts dolt on the
branch git is on. Running init again only does what is still missing.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return helpers.Run(cmd, func(ctx *runtime.Context) error {
				return runInit(ctx, skipHooks)
			})
		},
	}

	cmd.Flags().BoolVar(&skipHooks, "no-hooks", false, "Do not install git hooks")

	return cmd
}

func runInit(ctx *runtime.Context, skipHooks bool) error {
	switch {
	case !ctx.Caps.GitAvailable:
		return kurterrors.NewBranchSyncError(kurterrors.CodeGitNotAvailable, "", "git executable not found on PATH", nil)
	case !ctx.Caps.GitRepo:
		return kurterrors.NewBranchSyncError(kurterrors.CodeGitNotRepo, "", "kurt init must run inside a git work tree", nil)
	case !ctx.Caps.DoltAvailable:
		return kurterrors.NewBranchSyncError(kurterrors.CodeDoltNotAvailable, "", "dolt executable not found on PATH", nil)
	}

	written, err := config.WriteDefault(ctx.GitDir)
	if err != nil {
		return err
	}
	if written {
		ctx.Splog.Info("%s Wrote %s", tui.GlyphPass, tui.ColorDim(config.Path(ctx.GitDir)))
	}

	if !ctx.Caps.DoltRepo {
		if err := ctx.Dolt.Init(ctx.Context); err != nil {
			return err
		}
		ctx.Caps.DoltRepo = true
		ctx.Splog.Info("%s Created dolt database in %s", tui.GlyphPass, tui.ColorDim(ctx.DoltDir))
	}

	if !skipHooks {
		res, err := ctx.Hooks.Install()
		if err != nil {
			return err
		}
		for _, name := range append(res.Installed, res.Updated...) {
			ctx.Splog.Info("%s Installed %s hook", tui.GlyphPass, name)
		}
		for hook, backup := range res.BackedUp {
			ctx.Splog.Warn("Moved your existing %s hook to %s; kurt's hook still runs it.", hook, backup)
		}
	}

	res, err := ctx.Synchronizer().SyncToDolt(ctx.Context)
	if err != nil {
		ctx.Splog.Warn("Could not put dolt on git's branch: %v", err)
		ctx.Splog.Tip("Run 'kurt sync branch align' once git has a commit.")
		return nil
	}
	ctx.Splog.Info("%s git and dolt are both on %s.", tui.GlyphPass, tui.ColorCyan(res.GitBranch))
	return nil
}
