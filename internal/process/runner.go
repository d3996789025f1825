// Package process runs the git and dolt executables with timeouts and
// translates their failures into kurt's error taxonomy.
package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	kurterrors "kurt.dev/kurt/internal/errors"
)

// DefaultCommandTimeout is the timeout applied when neither the command nor the
// context carries one
const DefaultCommandTimeout = 30 * time.Second

// Command describes one invocation of an external VCS binary
type Command struct {
	Args    []string
	Dir     string
	Env     []string
	Stdin   string
	Timeout time.Duration
}

// Result is the captured output of a finished command
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// Trimmed returns stdout without surrounding whitespace
func (r *Result) Trimmed() string {
	return strings.TrimSpace(r.Stdout)
}

// Lines returns the non-blank lines of stdout. Leading indentation is kept
// since listings such as `dolt branch` use it to mark entries.
func (r *Result) Lines() []string {
	lines := []string{}
	for _, line := range strings.Split(r.Stdout, "\n") {
		if line = strings.TrimRight(line, "\r"); strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// VcsProcessRunner runs one VCS binary. Each backend gets its own runner at
// construction so git and dolt never share argv handling.
type VcsProcessRunner interface {
	// Name is the executable this runner invokes
	Name() string
	// Run executes the command. A nonzero exit returns both the result and a
	// *errors.CommandError.
	Run(ctx context.Context, cmd Command) (*Result, error)
}

// ExecRunner runs a binary through os/exec
type ExecRunner struct {
	name           string
	defaultTimeout time.Duration
	baseEnv        []string
}

// NewExecRunner creates a runner for the named executable
func NewExecRunner(name string, defaultTimeout time.Duration, env ...string) *ExecRunner {
	if defaultTimeout <= 0 {
		defaultTimeout = DefaultCommandTimeout
	}
	return &ExecRunner{name: name, defaultTimeout: defaultTimeout, baseEnv: env}
}

// Name returns the executable name
func (r *ExecRunner) Name() string {
	return r.name
}

// Run executes the command, honoring cmd.Timeout, then the context deadline,
// then the runner default.
func (r *ExecRunner) Run(ctx context.Context, c Command) (*Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	timeout := c.Timeout
	if _, ok := ctx.Deadline(); !ok && timeout <= 0 {
		timeout = r.defaultTimeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, r.name, c.Args...)
	if c.Dir != "" {
		cmd.Dir = c.Dir
	}
	if len(r.baseEnv) > 0 || len(c.Env) > 0 {
		env := append(os.Environ(), r.baseEnv...)
		cmd.Env = append(env, c.Env...)
	}
	if c.Stdin != "" {
		cmd.Stdin = strings.NewReader(c.Stdin)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	res := &Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}
	if err == nil {
		return res, nil
	}

	if errors.Is(err, exec.ErrNotFound) {
		res.ExitCode = -1
		return res, kurterrors.NewCommandError(r.name, c.Args, "", "", -1, fmt.Errorf("%w: %s", kurterrors.ErrNotInstalled, r.name))
	}
	if ctx.Err() == context.DeadlineExceeded {
		res.ExitCode = -1
		return res, kurterrors.NewCommandError(r.name, c.Args, res.Stdout, res.Stderr, -1,
			fmt.Errorf("%w after %s: %w", kurterrors.ErrTimeout, res.Duration.Round(time.Millisecond), ctx.Err()))
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
	} else {
		res.ExitCode = -1
	}
	return res, kurterrors.NewCommandError(r.name, c.Args, res.Stdout, res.Stderr, res.ExitCode, err)
}

// Probe reports whether the runner's binary can be executed, returning the
// first line of its version output.
func Probe(ctx context.Context, r VcsProcessRunner, versionArgs ...string) (string, error) {
	res, err := r.Run(ctx, Command{Args: versionArgs, Timeout: 10 * time.Second})
	if err != nil {
		return "", err
	}
	lines := res.Lines()
	if len(lines) == 0 {
		return "", nil
	}
	return strings.TrimSpace(lines[0]), nil
}

// ExitCode returns the exit status carried by err, or 0 when err is nil
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	if cmdErr, ok := kurterrors.AsCommandError(err); ok {
		return cmdErr.ExitCode
	}
	return -1
}
