package dolt

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// branchListing parses `dolt branch` output, where the current branch is
// marked with a leading "* ".
func (c *Client) branchListing(ctx context.Context) (current string, branches []string, err error) {
	res, err := c.run(ctx, "branch")
	if err != nil {
		return "", nil, fmt.Errorf("failed to list dolt branches: %w", err)
	}
	for _, line := range res.Lines() {
		name := strings.TrimSpace(line)
		if strings.HasPrefix(name, "* ") {
			name = strings.TrimSpace(strings.TrimPrefix(name, "* "))
			current = name
		}
		if name != "" {
			branches = append(branches, name)
		}
	}
	sort.Strings(branches)
	return current, branches, nil
}

// CurrentBranch returns the checked-out dolt branch
func (c *Client) CurrentBranch(ctx context.Context) (string, error) {
	current, _, err := c.branchListing(ctx)
	if err != nil {
		return "", err
	}
	if current == "" {
		return "", fmt.Errorf("dolt has no checked out branch")
	}
	return current, nil
}

// ListBranches returns all local dolt branches, sorted
func (c *Client) ListBranches(ctx context.Context) ([]string, error) {
	_, branches, err := c.branchListing(ctx)
	if err != nil {
		return nil, err
	}
	if branches == nil {
		branches = []string{}
	}
	return branches, nil
}

// BranchExists reports whether the dolt branch exists
func (c *Client) BranchExists(ctx context.Context, name string) (bool, error) {
	branches, err := c.ListBranches(ctx)
	if err != nil {
		return false, err
	}
	idx := sort.SearchStrings(branches, name)
	return idx < len(branches) && branches[idx] == name, nil
}

// CreateBranch creates name at the current HEAD
func (c *Client) CreateBranch(ctx context.Context, name string) error {
	if _, err := c.run(ctx, "branch", name); err != nil {
		return fmt.Errorf("failed to create dolt branch %s: %w", name, err)
	}
	return nil
}

// Checkout switches the working set to branch
func (c *Client) Checkout(ctx context.Context, name string) error {
	if _, err := c.run(ctx, "checkout", name); err != nil {
		return fmt.Errorf("failed to checkout dolt branch %s: %w", name, err)
	}
	return nil
}

// DeleteBranch deletes name; force deletes it even when unmerged
func (c *Client) DeleteBranch(ctx context.Context, name string, force bool) error {
	flag := "-d"
	if force {
		flag = "-D"
	}
	if _, err := c.run(ctx, "branch", flag, name); err != nil {
		return fmt.Errorf("failed to delete dolt branch %s: %w", name, err)
	}
	return nil
}
