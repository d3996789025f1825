package git

import (
	"context"
	"fmt"
	"strings"
)

// PullResult represents the result of a pull operation
type PullResult int

const (
	// PullDone indicates the pull brought in new commits
	PullDone PullResult = iota
	// PullUnneeded indicates the branch was already up to date
	PullUnneeded
	// PullConflict indicates the pull stopped on merge conflicts
	PullConflict
)

// Pull pulls branch from remote into the current branch
func (c *Client) Pull(ctx context.Context, remote, branch string) (PullResult, error) {
	res, err := c.runNetwork(ctx, "pull", "--no-edit", "--no-rebase", remote, branch)
	if err != nil {
		if inProgress, _ := c.IsMergeInProgress(ctx); inProgress {
			return PullConflict, fmt.Errorf("pull of %s from %s stopped on conflicts: %w", branch, remote, err)
		}
		return PullConflict, fmt.Errorf("failed to pull %s from %s: %w", branch, remote, err)
	}
	if strings.Contains(res.Stdout, "Already up to date") {
		return PullUnneeded, nil
	}
	return PullDone, nil
}
