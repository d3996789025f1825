package git

import (
	"context"
	"fmt"
	"strings"
)

// PushResult reports what a successful push did
type PushResult struct {
	UpToDate bool
}

// Push pushes branch to remote. Failures are returned unclassified; callers
// wrap them with errors.NewRemoteError.
func (c *Client) Push(ctx context.Context, remote, branch string) (PushResult, error) {
	res, err := c.runNetwork(ctx, "push", "--porcelain", remote, branch)
	if err != nil {
		return PushResult{}, fmt.Errorf("failed to push %s to %s: %w", branch, remote, err)
	}
	out := res.Stdout + res.Stderr
	return PushResult{UpToDate: strings.Contains(out, "[up to date]") || strings.Contains(out, "Everything up-to-date")}, nil
}
