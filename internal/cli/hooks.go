package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"kurt.dev/kurt/internal/cli/helpers"
	"kurt.dev/kurt/internal/hooks"
	"kurt.dev/kurt/internal/runtime"
	"kurt.dev/kurt/internal/tui"
)

// newHooksCmd creates the hooks command group
func newHooksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hooks",
		Short: "Install, remove or inspect kurt's git hooks",
	}
	cmd.AddCommand(newHooksInstallCmd(), newHooksUninstallCmd(), newHooksStatusCmd())
	return cmd
}

func newHooksInstallCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "install",
		Short: "Install or update kurt's git hooks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return helpers.Run(cmd, func(ctx *runtime.Context) error {
				if !ctx.Caps.GitRepo {
					return ctx.Caps.Check()
				}
				res, err := ctx.Hooks.Install()
				if err != nil {
					return err
				}
				for _, name := range res.Installed {
					ctx.Splog.Info("%s installed %s", tui.GlyphPass, name)
				}
				for _, name := range res.Updated {
					ctx.Splog.Info("%s updated %s", tui.GlyphPass, name)
				}
				for _, name := range res.Unchanged {
					ctx.Splog.Info("  %s", tui.ColorDim(name+" is up to date"))
				}
				for hook, backup := range res.BackedUp {
					ctx.Splog.Warn("Moved your existing %s hook to %s; kurt's hook still runs it.", hook, backup)
				}
				return nil
			})
		},
	}
}

func newHooksUninstallCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "uninstall",
		Short: "Remove kurt's git hooks and restore any hooks they replaced",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return helpers.Run(cmd, func(ctx *runtime.Context) error {
				if !ctx.Caps.GitRepo {
					return ctx.Caps.Check()
				}
				res, err := ctx.Hooks.Uninstall()
				if err != nil {
					return err
				}
				for _, name := range res.Removed {
					if backup, ok := res.Restored[name]; ok {
						ctx.Splog.Info("%s removed %s, restored %s", tui.GlyphPass, name, backup)
						continue
					}
					ctx.Splog.Info("%s removed %s", tui.GlyphPass, name)
				}
				for _, name := range res.Skipped {
					ctx.Splog.Info("  %s", tui.ColorDim(name+" is not kurt's, left alone"))
				}
				return nil
			})
		},
	}
}

func newHooksStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show which of kurt's hooks are installed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return helpers.Run(cmd, func(ctx *runtime.Context) error {
				if !ctx.Caps.GitRepo {
					return ctx.Caps.Check()
				}
				statuses, err := ctx.Hooks.Status()
				if err != nil {
					return err
				}
				for _, s := range statuses {
					ctx.Splog.Info("%s", formatHookStatus(s))
				}
				return nil
			})
		},
	}
}

func formatHookStatus(s hooks.HookStatus) string {
	line := fmt.Sprintf("%-20s ", s.Name)
	switch s.State {
	case hooks.StateCurrent:
		line += tui.ColorGreen(string(s.State))
	case hooks.StateStale:
		line += tui.ColorYellow(string(s.State)) + " (run 'kurt hooks install')"
	default:
		line += tui.ColorRed(string(s.State))
	}
	if s.Backup != "" {
		line += tui.ColorDim(" backup: " + s.Backup)
	}
	return line
}

// newHookCmd is what the installed hook scripts exec
func newHookCmd() *cobra.Command {
	return &cobra.Command{
		Use:                "hook <name> [args...]",
		Short:              "Run a git hook (called by the installed scripts)",
		Hidden:             true,
		DisableFlagParsing: true,
		Args:               cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if os.Getenv(hooks.SkipEnv) == "1" {
				return nil
			}
			return helpers.Run(cmd, func(ctx *runtime.Context) error {
				return ctx.Dispatcher().Run(ctx.Context, args[0], args[1:])
			})
		},
	}
}
