package cli

import (
	"os"

	"github.com/spf13/cobra"

	"kurt.dev/kurt/internal/tui"
)

// NewRootCmd creates the root cobra command
func NewRootCmd(version, commit, date string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "kurt",
		Short: "Keep a git repository and its dolt database on the same branches",
		Long: `kurt keeps a git repository and the dolt database next to it in lockstep.

Branches are created, switched and deleted in both systems at once, merges
run in dolt first and roll back if git cannot follow, and git hooks keep
everyday commits and checkouts mirrored into dolt.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			if os.Getenv("KURT_NO_COLOR") != "" || os.Getenv("NO_COLOR") != "" || !tui.IsTTY() {
				tui.DisableColor()
			}
		},
	}

	rootCmd.PersistentFlags().StringP("cwd", "C", "", "Run as if kurt was started in this directory")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "Only print errors")

	rootCmd.AddCommand(
		newSyncCmd(),
		newDoctorCmd(),
		newRepairCmd(),
		newInitCmd(),
		newHooksCmd(),
		newHookCmd(),
		newVersionCmd(version, commit, date),
	)

	return rootCmd
}
