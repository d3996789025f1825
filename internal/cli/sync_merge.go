package cli

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"kurt.dev/kurt/internal/cli/helpers"
	"kurt.dev/kurt/internal/merge"
	"kurt.dev/kurt/internal/runtime"
	"kurt.dev/kurt/internal/tui"
)

type mergeOptions struct {
	target string
	check  bool
	abort  bool
}

func newSyncMergeCmd() *cobra.Command {
	opts := mergeOptions{}
	cmd := &cobra.Command{
		Use:   "merge [source]",
		Short: "Merge a branch in dolt and then git, or neither",
		Long: `Merge a branch into the target branch in dolt first and then in git.

If git fails after dolt has merged, dolt is reset to where it was, so either
both systems end up merged or neither does.

Exit codes:
  0  merged
  1  dolt conflict (nothing changed)
  2  git conflict (dolt rolled back)
  3  rollback failed; run 'kurt sync merge --abort'
  4  any other failure`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			err := helpers.Run(cmd, func(ctx *runtime.Context) error {
				coord := ctx.MergeCoordinator()
				if opts.abort {
					return runMergeAbort(ctx, coord)
				}
				if len(args) == 0 {
					return fmt.Errorf("a source branch is required")
				}
				target := opts.target
				if target == "" {
					current, err := ctx.Git.CurrentBranch(ctx.Context)
					if err != nil {
						return err
					}
					target = current
				}
				if opts.check {
					return runMergeCheck(ctx, coord, args[0], target)
				}
				return runMerge(ctx, coord, args[0], target)
			})
			return mergeExitError(err)
		},
	}
	cmd.Flags().StringVarP(&opts.target, "target", "t", "", "Branch to merge into; both systems must be on it (defaults to the current branch)")
	cmd.Flags().BoolVar(&opts.check, "check", false, "Report conflicts without merging")
	cmd.Flags().BoolVar(&opts.abort, "abort", false, "Undo an unfinished merge in both systems")
	cmd.MarkFlagsMutuallyExclusive("check", "abort")
	return cmd
}

// mergeExitError gives failures that happen before the coordinator runs the
// generic failure status, so exit 1 always means a dolt conflict
func mergeExitError(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *ExitError
	var mergeErr *merge.MergeError
	if errors.As(err, &exitErr) || errors.As(err, &mergeErr) {
		return err
	}
	return &ExitError{Code: merge.ExitFailed, Err: err}
}

func runMerge(ctx *runtime.Context, coord *merge.Coordinator, source, target string) error {
	ctx.Splog.Info("Merging %s into %s...", tui.ColorCyan(source), tui.ColorCyan(target))
	result, err := coord.Merge(ctx.Context, source, target)
	if err == nil {
		ctx.Splog.Info("%s Merged %s into %s.", tui.GlyphPass, tui.ColorCyan(source), tui.ColorCyan(target))
		if result.DoltCommitHash != "" {
			ctx.Splog.Info("  dolt %s", tui.ColorDim(result.DoltCommitHash))
		}
		if result.GitCommitHash != "" {
			ctx.Splog.Info("  git  %s", tui.ColorDim(result.GitCommitHash))
		}
		return nil
	}

	ctx.Splog.Error("%s", err)
	if result != nil && result.Conflicts != nil {
		printConflicts(ctx.Splog, result.Conflicts)
	}
	return &ExitError{Code: merge.ExitCode(err), Err: err, Silent: true}
}

func printConflicts(splog *tui.Splog, c *merge.MergeConflict) {
	if len(c.DoltConflicts) > 0 {
		splog.Info("Dolt conflicts:")
		for _, line := range formatDoltConflicts(c.DoltConflicts) {
			splog.Info("  %s", line)
		}
	}
	if len(c.GitConflicts) > 0 {
		splog.Info("Git conflicts:")
		for _, f := range c.GitConflicts {
			splog.Info("  %s", tui.ColorRed(f))
		}
	}
	if c.ResolutionHint != "" {
		splog.Tip("%s", c.ResolutionHint)
	}
}

// formatDoltConflicts renders one line per conflicting row, or per table when
// no row detail was available
func formatDoltConflicts(conflicts []merge.DoltConflict) []string {
	lines := make([]string, 0, len(conflicts))
	for _, c := range conflicts {
		if len(c.Key) == 0 {
			lines = append(lines, tui.ColorRed(c.Table))
			continue
		}
		keys := make([]string, 0, len(c.Key))
		for k := range c.Key {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s=%v", k, c.Key[k]))
		}
		lines = append(lines, fmt.Sprintf("%s (%s)", tui.ColorRed(c.Table), strings.Join(parts, ", ")))
	}
	return lines
}

func runMergeCheck(ctx *runtime.Context, coord *merge.Coordinator, source, target string) error {
	preview, err := coord.CheckConflicts(ctx.Context, source, target)
	if err != nil {
		return &ExitError{Code: merge.ExitCode(err), Err: err}
	}
	if preview.Clean() {
		ctx.Splog.Info("%s %s merges cleanly into %s.", tui.GlyphPass, tui.ColorCyan(source), tui.ColorCyan(target))
		return nil
	}
	for _, t := range preview.DoltTables {
		if t.DataConflicts == 0 && t.SchemaConflicts == 0 {
			continue
		}
		ctx.Splog.Warn("dolt %s: %d data, %d schema conflicts", t.Table, t.DataConflicts, t.SchemaConflicts)
	}
	for _, f := range preview.GitConflicts {
		ctx.Splog.Warn("git %s", f)
	}
	return &ExitError{Code: 1, Err: fmt.Errorf("merging %s into %s would conflict", source, target), Silent: true}
}

func runMergeAbort(ctx *runtime.Context, coord *merge.Coordinator) error {
	res, err := coord.AbortMerge(ctx.Context)
	if err != nil {
		return &ExitError{Code: merge.ExitCode(err), Err: err}
	}
	if res.Noop() {
		ctx.Splog.Info("No merge in progress.")
		return nil
	}
	if res.DoltAborted {
		ctx.Splog.Info("%s Aborted the dolt merge.", tui.GlyphPass)
	}
	if res.DoltReset {
		ctx.Splog.Info("%s Reset dolt to its pre-merge commit.", tui.GlyphPass)
	}
	if res.GitAborted {
		ctx.Splog.Info("%s Aborted the git merge.", tui.GlyphPass)
	}
	if res.StateClear {
		ctx.Splog.Info("%s Cleared the recorded merge state.", tui.GlyphPass)
	}
	return nil
}
