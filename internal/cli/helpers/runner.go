// Package helpers holds plumbing shared by kurt's cobra commands.
package helpers

import (
	"os"

	"github.com/spf13/cobra"

	"kurt.dev/kurt/internal/runtime"
	"kurt.dev/kurt/internal/tui"
)

// NewSplog creates the logger for one invocation, honoring --quiet. If the
// log file cannot be opened, console logging still works.
func NewSplog(cmd *cobra.Command) *tui.Splog {
	splog, err := tui.NewSplogWithWriter(cmd.OutOrStdout(), tui.GetLogFilePath())
	if err != nil {
		splog, _ = tui.NewSplogWithWriter(cmd.OutOrStdout(), "")
	}
	if quiet, _ := cmd.Flags().GetBool("quiet"); quiet {
		splog.SetQuiet(true)
	}
	return splog
}

// Run builds a runtime context rooted at --cwd (or the working directory)
// and passes it to fn
func Run(cmd *cobra.Command, fn func(ctx *runtime.Context) error) error {
	dir, _ := cmd.Flags().GetString("cwd")
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return err
		}
		dir = wd
	}

	splog := NewSplog(cmd)
	defer func() { _ = splog.Close() }()

	ctx, err := runtime.New(cmd.Context(), dir, splog)
	if err != nil {
		return err
	}
	defer func() { _ = ctx.Close() }()
	return fn(ctx)
}
