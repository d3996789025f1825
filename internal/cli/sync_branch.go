package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"kurt.dev/kurt/internal/branchsync"
	"kurt.dev/kurt/internal/cli/helpers"
	"kurt.dev/kurt/internal/runtime"
	"kurt.dev/kurt/internal/tui"
)

func newSyncBranchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "branch",
		Short: "Create, list, switch and delete branches in both systems",
	}
	cmd.AddCommand(
		newBranchCreateCmd(),
		newBranchListCmd(),
		newBranchSwitchCmd(),
		newBranchDeleteCmd(),
		newBranchAlignCmd(),
	)
	return cmd
}

func newBranchCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create <name>",
		Short: "Create a branch in dolt and git from the current branch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return helpers.Run(cmd, func(ctx *runtime.Context) error {
				res, err := ctx.Synchronizer().CreateBoth(ctx.Context, args[0])
				if err != nil {
					return err
				}
				if res.Created {
					ctx.Splog.Info("%s Created %s in dolt and git.", tui.GlyphPass, tui.ColorCyan(res.GitBranch))
				} else {
					ctx.Splog.Info("%s already exists in dolt and git.", tui.ColorCyan(res.GitBranch))
				}
				return nil
			})
		},
	}
}

func newBranchListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List branches and which system has them",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return helpers.Run(cmd, func(ctx *runtime.Context) error {
				branches, err := ctx.Synchronizer().ListBranches(ctx.Context)
				if err != nil {
					return err
				}
				for _, b := range branches {
					ctx.Splog.Info("%s", formatBranch(b))
				}
				return nil
			})
		},
	}
}

func formatBranch(b branchsync.BranchInfo) string {
	marker := "  "
	if b.Current {
		marker = "* "
	}
	name := b.Name
	if b.Current {
		name = tui.ColorCyan(name)
	}
	switch b.Status {
	case branchsync.StatusGitOnly:
		return fmt.Sprintf("%s%s %s", marker, name, tui.ColorYellow("(git only)"))
	case branchsync.StatusDoltOnly:
		return fmt.Sprintf("%s%s %s", marker, name, tui.ColorYellow("(dolt only)"))
	}
	if b.Current != b.DoltCurrent {
		return fmt.Sprintf("%s%s %s", marker, name, tui.ColorRed("(checked out in only one system)"))
	}
	return marker + name
}

func newBranchSwitchCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "switch <name>",
		Aliases: []string{"checkout"},
		Short:   "Check out a branch in dolt and git",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return helpers.Run(cmd, func(ctx *runtime.Context) error {
				res, err := ctx.Synchronizer().SwitchBoth(ctx.Context, args[0])
				if err != nil {
					return err
				}
				ctx.Splog.Info("Switched to %s.", tui.ColorCyan(res.GitBranch))
				return nil
			})
		},
	}
}

func newBranchDeleteCmd() *cobra.Command {
	var (
		force bool
		yes   bool
	)
	cmd := &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a branch from dolt and git",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			return helpers.Run(cmd, func(ctx *runtime.Context) error {
				if !yes {
					ok, err := tui.Confirm(fmt.Sprintf("Delete %s from dolt and git?", name))
					if errors.Is(err, tui.ErrInteractiveDisabled) {
						return fmt.Errorf("refusing to delete %s without confirmation: %w", name, err)
					}
					if err != nil {
						return err
					}
					if !ok {
						ctx.Splog.Info("Aborted.")
						return nil
					}
				}
				if err := ctx.Synchronizer().DeleteBoth(ctx.Context, name, force); err != nil {
					return err
				}
				ctx.Splog.Info("%s Deleted %s.", tui.GlyphPass, name)
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Delete even if the branch is not merged")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

func newBranchAlignCmd() *cobra.Command {
	var from string
	cmd := &cobra.Command{
		Use:   "align",
		Short: "Put the lagging system on the other system's current branch",
		Long: `Put the lagging system on the other system's current branch, creating it
there if needed. By default dolt follows git; --from dolt makes git follow dolt.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return helpers.Run(cmd, func(ctx *runtime.Context) error {
				var (
					res *branchsync.SyncResult
					err error
				)
				switch from {
				case "git":
					res, err = ctx.Synchronizer().SyncToDolt(ctx.Context)
				case "dolt":
					res, err = ctx.Synchronizer().SyncToGit(ctx.Context)
				default:
					return fmt.Errorf("invalid --from %q (must be 'git' or 'dolt')", from)
				}
				if err != nil {
					return err
				}
				ctx.Splog.Info("git and dolt are both on %s.", tui.ColorCyan(res.GitBranch))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&from, "from", "git", "Which system's branch to follow: git or dolt")
	return cmd
}
