package git

import (
	"context"
	"fmt"
	"sort"
	"strings"

	kurterrors "kurt.dev/kurt/internal/errors"
	"kurt.dev/kurt/internal/process"
)

// HeadState describes what HEAD points at
type HeadState struct {
	// Branch is empty when HEAD is detached
	Branch string
	// Hash is empty when the branch has no commits yet
	Hash     string
	Detached bool
	Unborn   bool
}

// Head classifies HEAD as a branch, a detached commit, or an unborn branch
func (c *Client) Head(ctx context.Context) (HeadState, error) {
	var state HeadState

	res, err := c.run(ctx, "symbolic-ref", "--quiet", "--short", "HEAD")
	switch {
	case err == nil:
		state.Branch = res.Trimmed()
	case process.ExitCode(err) == 1:
		state.Detached = true
	default:
		return state, fmt.Errorf("failed to read HEAD: %w", err)
	}

	res, err = c.run(ctx, "rev-parse", "--verify", "--quiet", "HEAD")
	switch {
	case err == nil:
		state.Hash = res.Trimmed()
	case process.ExitCode(err) == 1:
		state.Unborn = true
	default:
		return state, fmt.Errorf("failed to resolve HEAD: %w", err)
	}
	return state, nil
}

// CurrentBranch returns the checked-out branch, failing with ErrDetachedHead
// when HEAD is detached. An unborn branch is still returned by name.
func (c *Client) CurrentBranch(ctx context.Context) (string, error) {
	res, err := c.run(ctx, "symbolic-ref", "--quiet", "--short", "HEAD")
	if err != nil {
		if process.ExitCode(err) == 1 {
			return "", kurterrors.ErrDetachedHead
		}
		return "", fmt.Errorf("failed to get current branch: %w", err)
	}
	return res.Trimmed(), nil
}

// BranchExists reports whether refs/heads/<name> exists
func (c *Client) BranchExists(ctx context.Context, name string) (bool, error) {
	_, err := c.run(ctx, "show-ref", "--verify", "--quiet", "refs/heads/"+name)
	if err == nil {
		return true, nil
	}
	if process.ExitCode(err) == 1 {
		return false, nil
	}
	return false, fmt.Errorf("failed to check branch %s: %w", name, err)
}

// ListBranches returns all local branch names, sorted
func (c *Client) ListBranches(ctx context.Context) ([]string, error) {
	res, err := c.run(ctx, "for-each-ref", "--format=%(refname:short)", "refs/heads/")
	if err != nil {
		return nil, fmt.Errorf("failed to list branches: %w", err)
	}
	branches := res.Lines()
	for i, b := range branches {
		branches[i] = strings.TrimSpace(b)
	}
	sort.Strings(branches)
	return branches, nil
}

// CreateBranch creates name at HEAD without checking it out
func (c *Client) CreateBranch(ctx context.Context, name string) error {
	if _, err := c.run(ctx, "branch", "--", name); err != nil {
		return fmt.Errorf("failed to create branch %s: %w", name, err)
	}
	return nil
}

// Checkout switches to an existing branch
func (c *Client) Checkout(ctx context.Context, name string) error {
	if _, err := c.run(ctx, "checkout", "--quiet", name, "--"); err != nil {
		return fmt.Errorf("failed to checkout branch %s: %w", name, err)
	}
	return nil
}

// DeleteBranch deletes name; force deletes it even when unmerged
func (c *Client) DeleteBranch(ctx context.Context, name string, force bool) error {
	flag := "-d"
	if force {
		flag = "-D"
	}
	if _, err := c.run(ctx, "branch", flag, "--", name); err != nil {
		return fmt.Errorf("failed to delete branch %s: %w", name, err)
	}
	return nil
}
