package git

import (
	"context"
	"fmt"
	"strings"
	"time"

	"kurt.dev/kurt/internal/process"
)

// DefaultNetworkTimeout bounds push, pull and fetch
const DefaultNetworkTimeout = 5 * time.Minute

// hookSafeEnv keeps kurt's own git calls from re-entering kurt's hooks and
// from blocking on credential prompts.
var hookSafeEnv = []string{
	"KURT_SKIP_HOOKS=1",
	"GIT_TERMINAL_PROMPT=0",
	"LC_ALL=C",
}

// Client runs git in one work tree
type Client struct {
	runner         process.VcsProcessRunner
	dir            string
	networkTimeout time.Duration
}

// NewClient creates a Client bound to runner and dir. networkTimeout applies
// to remote operations; zero selects DefaultNetworkTimeout.
func NewClient(runner process.VcsProcessRunner, dir string, networkTimeout time.Duration) *Client {
	if networkTimeout <= 0 {
		networkTimeout = DefaultNetworkTimeout
	}
	return &Client{runner: runner, dir: dir, networkTimeout: networkTimeout}
}

// Dir returns the work tree the client operates on
func (c *Client) Dir() string {
	return c.dir
}

func (c *Client) run(ctx context.Context, args ...string) (*process.Result, error) {
	return c.runner.Run(ctx, process.Command{Args: args, Dir: c.dir, Env: hookSafeEnv})
}

func (c *Client) runNetwork(ctx context.Context, args ...string) (*process.Result, error) {
	return c.runner.Run(ctx, process.Command{Args: args, Dir: c.dir, Env: hookSafeEnv, Timeout: c.networkTimeout})
}

// output runs git and returns trimmed stdout
func (c *Client) output(ctx context.Context, args ...string) (string, error) {
	res, err := c.run(ctx, args...)
	if err != nil {
		return "", err
	}
	return res.Trimmed(), nil
}

// Version returns the "git version x.y.z" line
func (c *Client) Version(ctx context.Context) (string, error) {
	return process.Probe(ctx, c.runner, "--version")
}

// RepoRoot returns the top level of the work tree
func (c *Client) RepoRoot(ctx context.Context) (string, error) {
	out, err := c.output(ctx, "rev-parse", "--show-toplevel")
	if err != nil {
		return "", fmt.Errorf("failed to get repo root: %w", err)
	}
	return out, nil
}

// GitDir returns the absolute path of the .git directory
func (c *Client) GitDir(ctx context.Context) (string, error) {
	out, err := c.output(ctx, "rev-parse", "--absolute-git-dir")
	if err != nil {
		return "", fmt.Errorf("failed to get git dir: %w", err)
	}
	return out, nil
}

// HooksDir returns the directory git runs hooks from, honoring core.hooksPath
func (c *Client) HooksDir(ctx context.Context) (string, error) {
	out, err := c.output(ctx, "rev-parse", "--path-format=absolute", "--git-path", "hooks")
	if err != nil {
		return "", fmt.Errorf("failed to locate hooks directory: %w", err)
	}
	return out, nil
}

// RevParse resolves rev to a full commit hash
func (c *Client) RevParse(ctx context.Context, rev string) (string, error) {
	out, err := c.output(ctx, "rev-parse", "--verify", "--quiet", rev+"^{commit}")
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", rev, err)
	}
	return out, nil
}

// LastCommitMessage returns the full message of HEAD
func (c *Client) LastCommitMessage(ctx context.Context) (string, error) {
	res, err := c.run(ctx, "log", "-1", "--format=%B")
	if err != nil {
		return "", fmt.Errorf("failed to read last commit message: %w", err)
	}
	return strings.TrimRight(res.Stdout, "\n"), nil
}
