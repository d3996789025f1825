package git

import (
	"context"
	"fmt"
	"strings"

	"kurt.dev/kurt/internal/process"
)

// MergeOutcome is the result of a git merge that did not fail outright
type MergeOutcome struct {
	Conflicted      bool
	ConflictedFiles []string
	UpToDate        bool
}

// Merge merges source into the current branch. A conflicted merge is reported
// through the outcome, not the error, and is left in git's native conflict state.
func (c *Client) Merge(ctx context.Context, source, message string) (MergeOutcome, error) {
	args := []string{"merge", "--no-edit"}
	if message != "" {
		args = append(args, "-m", message)
	}
	args = append(args, source)

	res, err := c.run(ctx, args...)
	if err == nil {
		return MergeOutcome{UpToDate: strings.Contains(res.Stdout, "Already up to date")}, nil
	}

	if process.ExitCode(err) == 1 {
		files, listErr := c.UnmergedFiles(ctx)
		if listErr == nil && len(files) > 0 {
			return MergeOutcome{Conflicted: true, ConflictedFiles: files}, nil
		}
	}
	return MergeOutcome{}, fmt.Errorf("git merge %s failed: %w", source, err)
}

// UnmergedFiles lists paths with unresolved conflicts
func (c *Client) UnmergedFiles(ctx context.Context) ([]string, error) {
	res, err := c.run(ctx, "diff", "--name-only", "--diff-filter=U")
	if err != nil {
		return nil, fmt.Errorf("failed to list unmerged files: %w", err)
	}
	return res.Lines(), nil
}

// MergeAbort aborts an in-progress merge
func (c *Client) MergeAbort(ctx context.Context) error {
	if _, err := c.run(ctx, "merge", "--abort"); err != nil {
		return fmt.Errorf("merge abort failed: %w", err)
	}
	return nil
}

// IsMergeInProgress checks for MERGE_HEAD
func (c *Client) IsMergeInProgress(ctx context.Context) (bool, error) {
	_, err := c.run(ctx, "rev-parse", "--quiet", "--verify", "MERGE_HEAD")
	if err == nil {
		return true, nil
	}
	if process.ExitCode(err) == 1 {
		return false, nil
	}
	return false, fmt.Errorf("failed to check merge state: %w", err)
}

// MergeTreePreview computes the merge of source into target without touching
// the index or work tree and returns the files that would conflict.
func (c *Client) MergeTreePreview(ctx context.Context, target, source string) ([]string, error) {
	res, err := c.run(ctx, "merge-tree", "--write-tree", "--name-only", "--no-messages", target, source)
	if err == nil {
		return []string{}, nil
	}
	if process.ExitCode(err) != 1 {
		return nil, fmt.Errorf("failed to preview merge of %s into %s: %w", source, target, err)
	}

	// First line is the tree oid, then one conflicted path per line
	lines := res.Lines()
	if len(lines) <= 1 {
		return []string{}, nil
	}
	seen := make(map[string]bool)
	var files []string
	for _, line := range lines[1:] {
		if !seen[line] {
			seen[line] = true
			files = append(files, line)
		}
	}
	return files, nil
}
