package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"kurt.dev/kurt/internal/cli/helpers"
	"kurt.dev/kurt/internal/doctor"
	"kurt.dev/kurt/internal/runtime"
)

// newDoctorCmd creates the doctor command
func newDoctorCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check that git, dolt and kurt are set up to work together",
		Long: `Run health checks on the repository without changing anything.

The doctor command checks:
  - Hooks: kurt's git hooks are installed and current
  - Dolt: the database exists and is on the same branch as git
  - Working set: dolt has no uncommitted changes
  - Remotes: both systems have the configured remote
  - SQL server: the dolt sql-server answers
  - Locks: no stale kurt lock is left behind

Exits nonzero when any check fails. Use 'kurt repair' to fix what can be
fixed automatically.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return helpers.Run(cmd, func(ctx *runtime.Context) error {
				report := ctx.Doctor().Check(ctx.Context)
				if asJSON {
					out, err := json.MarshalIndent(report, "", "  ")
					if err != nil {
						return err
					}
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(out))
				} else {
					doctor.Print(ctx.Splog, report)
				}
				if !report.Healthy() {
					return &ExitError{Code: 1, Err: fmt.Errorf("%d check(s) failed", len(report.Failed())), Silent: true}
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the report as JSON")

	return cmd
}

// newRepairCmd creates the repair command
func newRepairCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repair",
		Short: "Fix the problems doctor can fix automatically",
		Long: `Run the doctor checks and fix what is safe to fix: reinstall hooks,
initialize the dolt database, start the SQL server and clear stale locks.

Branch mismatches and uncommitted dolt changes are left for you to resolve.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return helpers.Run(cmd, func(ctx *runtime.Context) error {
				rep := ctx.Doctor().Repair(ctx.Context)
				doctor.PrintRepair(ctx.Splog, rep)
				if !rep.After.Healthy() {
					return &ExitError{Code: 1, Err: fmt.Errorf("%d check(s) still failing", len(rep.After.Failed())), Silent: true}
				}
				return nil
			})
		},
	}
}
