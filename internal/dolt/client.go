// Package dolt provides the Dolt side of kurt's dual-VCS operations: a CLI
// client, a MySQL-protocol session against dolt sql-server, and the server's
// lifecycle.
package dolt

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"kurt.dev/kurt/internal/process"
)

// DefaultNetworkTimeout bounds dolt push and pull
const DefaultNetworkTimeout = 5 * time.Minute

var commitHashRe = regexp.MustCompile(`commit ([0-9a-v]{32})`)

// Client runs the dolt CLI against one database directory
type Client struct {
	runner         process.VcsProcessRunner
	dir            string
	networkTimeout time.Duration
}

// NewClient creates a Client bound to runner and the directory holding .dolt/
func NewClient(runner process.VcsProcessRunner, dir string, networkTimeout time.Duration) *Client {
	if networkTimeout <= 0 {
		networkTimeout = DefaultNetworkTimeout
	}
	return &Client{runner: runner, dir: dir, networkTimeout: networkTimeout}
}

// Dir returns the database directory
func (c *Client) Dir() string {
	return c.dir
}

func (c *Client) run(ctx context.Context, args ...string) (*process.Result, error) {
	return c.runner.Run(ctx, process.Command{Args: args, Dir: c.dir, Env: []string{"NO_COLOR=1"}})
}

func (c *Client) runNetwork(ctx context.Context, args ...string) (*process.Result, error) {
	return c.runner.Run(ctx, process.Command{Args: args, Dir: c.dir, Env: []string{"NO_COLOR=1"}, Timeout: c.networkTimeout})
}

// Version returns the "dolt version x.y.z" line
func (c *Client) Version(ctx context.Context) (string, error) {
	return process.Probe(ctx, c.runner, "version")
}

// IsRepo reports whether dir holds a dolt database
func (c *Client) IsRepo() bool {
	info, err := os.Stat(filepath.Join(c.dir, ".dolt"))
	return err == nil && info.IsDir()
}

// Init creates a dolt database in dir. It is a no-op when one exists.
func (c *Client) Init(ctx context.Context) error {
	if c.IsRepo() {
		return nil
	}
	if _, err := c.run(ctx, "init"); err != nil {
		return fmt.Errorf("failed to initialize dolt database: %w", err)
	}
	return nil
}

// HeadHash returns the commit hash of HEAD on the current branch
func (c *Client) HeadHash(ctx context.Context) (string, error) {
	res, err := c.run(ctx, "log", "-n", "1")
	if err != nil {
		return "", fmt.Errorf("failed to read dolt HEAD: %w", err)
	}
	m := commitHashRe.FindStringSubmatch(res.Stdout)
	if m == nil {
		return "", fmt.Errorf("failed to parse dolt HEAD from log output %q", res.Trimmed())
	}
	return m[1], nil
}

// BranchHash returns the commit hash at the tip of branch
func (c *Client) BranchHash(ctx context.Context, branch string) (string, error) {
	res, err := c.run(ctx, "log", "-n", "1", branch)
	if err != nil {
		return "", fmt.Errorf("failed to read dolt branch %s: %w", branch, err)
	}
	m := commitHashRe.FindStringSubmatch(res.Stdout)
	if m == nil {
		return "", fmt.Errorf("failed to parse dolt hash for %s from %q", branch, res.Trimmed())
	}
	return m[1], nil
}

// Status summarizes the working set
type Status struct {
	Clean   bool
	Merging bool
	Tables  []string
}

var statusTableRe = regexp.MustCompile(`^\s+(?:new table|modified|deleted|renamed|both modified|added by us|added by them|deleted by us|deleted by them|conflict):\s+(\S+)`)

// Status parses `dolt status`
func (c *Client) Status(ctx context.Context) (Status, error) {
	res, err := c.run(ctx, "status")
	if err != nil {
		return Status{}, fmt.Errorf("failed to read dolt status: %w", err)
	}
	out := res.Stdout
	var st Status
	st.Clean = strings.Contains(out, "nothing to commit, working tree clean")
	st.Merging = strings.Contains(out, "You have unmerged tables") ||
		strings.Contains(out, "All conflicts and constraint violations fixed but you are still merging")
	seen := make(map[string]bool)
	for _, line := range strings.Split(out, "\n") {
		if m := statusTableRe.FindStringSubmatch(line); m != nil && !seen[m[1]] {
			seen[m[1]] = true
			st.Tables = append(st.Tables, m[1])
		}
	}
	sort.Strings(st.Tables)
	return st, nil
}

// AddAll stages every changed table
func (c *Client) AddAll(ctx context.Context) error {
	if _, err := c.run(ctx, "add", "."); err != nil {
		return fmt.Errorf("failed to stage dolt changes: %w", err)
	}
	return nil
}

// Commit commits staged changes and returns the new HEAD hash
func (c *Client) Commit(ctx context.Context, message string) (string, error) {
	if _, err := c.run(ctx, "commit", "-m", message); err != nil {
		return "", fmt.Errorf("failed to commit dolt changes: %w", err)
	}
	return c.HeadHash(ctx)
}

// ResetHard discards the working set and moves the current branch to rev
func (c *Client) ResetHard(ctx context.Context, rev string) error {
	if _, err := c.run(ctx, "reset", "--hard", rev); err != nil {
		return fmt.Errorf("failed to reset dolt to %s: %w", rev, err)
	}
	return nil
}
