package dolt

import (
	"context"
	"fmt"
	"strings"
)

// Remotes returns the configured dolt remote names
func (c *Client) Remotes(ctx context.Context) ([]string, error) {
	res, err := c.run(ctx, "remote", "-v")
	if err != nil {
		return nil, fmt.Errorf("failed to list dolt remotes: %w", err)
	}
	var names []string
	seen := make(map[string]bool)
	for _, line := range res.Lines() {
		fields := strings.Fields(line)
		if len(fields) == 0 || seen[fields[0]] {
			continue
		}
		seen[fields[0]] = true
		names = append(names, fields[0])
	}
	return names, nil
}

// HasRemote reports whether a dolt remote called name is configured
func (c *Client) HasRemote(ctx context.Context, name string) (bool, error) {
	remotes, err := c.Remotes(ctx)
	if err != nil {
		return false, err
	}
	for _, r := range remotes {
		if r == name {
			return true, nil
		}
	}
	return false, nil
}

func upToDate(out string) bool {
	return strings.Contains(out, "Everything up-to-date") || strings.Contains(out, "Already up to date")
}

// Push pushes branch to remote and reports whether nothing needed pushing
func (c *Client) Push(ctx context.Context, remote, branch string) (bool, error) {
	res, err := c.runNetwork(ctx, "push", remote, branch)
	if err != nil {
		return false, fmt.Errorf("failed to push dolt branch %s to %s: %w", branch, remote, err)
	}
	return upToDate(res.Stdout + res.Stderr), nil
}

// Pull pulls branch from remote into the current branch and reports whether
// nothing needed pulling
func (c *Client) Pull(ctx context.Context, remote, branch string) (bool, error) {
	res, err := c.runNetwork(ctx, "pull", remote, branch)
	if err != nil {
		return false, fmt.Errorf("failed to pull dolt branch %s from %s: %w", branch, remote, err)
	}
	out := res.Stdout + res.Stderr
	if strings.Contains(out, "CONFLICT") {
		return false, fmt.Errorf("dolt pull of %s from %s stopped on conflicts: %s", branch, remote, strings.TrimSpace(out))
	}
	return upToDate(out), nil
}
