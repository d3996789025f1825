package runtime

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"kurt.dev/kurt/internal/branchsync"
	"kurt.dev/kurt/internal/config"
	"kurt.dev/kurt/internal/doctor"
	"kurt.dev/kurt/internal/dolt"
	kurterrors "kurt.dev/kurt/internal/errors"
	"kurt.dev/kurt/internal/git"
	"kurt.dev/kurt/internal/hooks"
	"kurt.dev/kurt/internal/merge"
	"kurt.dev/kurt/internal/process"
	"kurt.dev/kurt/internal/remote"
	"kurt.dev/kurt/internal/tui"
)

// Capabilities is the result of the startup probe
type Capabilities = branchsync.Capabilities

// Context holds everything a command needs
type Context struct {
	Context  context.Context
	Splog    *tui.Splog
	Config   *config.Config
	RepoRoot string
	GitDir   string
	DoltDir  string
	Caps     Capabilities

	Git    *git.Client
	Dolt   *dolt.Client
	Server *dolt.Server
	Lock   *hooks.Lock
	Hooks  *hooks.Manager

	inspector *lazyInspector
}

// Runners lets tests substitute the git and dolt process runners
type Runners struct {
	Git  process.VcsProcessRunner
	Dolt process.VcsProcessRunner
}

// New probes the environment rooted at dir and wires the clients. It only
// fails on errors that make every command impossible, such as a broken
// config file. A missing tool or repository is recorded in Caps and
// reported by the commands that need it.
func New(ctx context.Context, dir string, splog *tui.Splog) (*Context, error) {
	return NewWithRunners(ctx, dir, splog, Runners{})
}

// NewWithRunners is New with explicit process runners. Nil runners are
// replaced by exec runners.
func NewWithRunners(ctx context.Context, dir string, splog *tui.Splog, runners Runners) (*Context, error) {
	if splog == nil {
		splog = tui.NewSplog()
	}
	c := &Context{Context: ctx, Splog: splog, RepoRoot: dir}

	gitRunner := runners.Git
	if gitRunner == nil {
		gitRunner = process.NewExecRunner("git", 0)
	}
	if _, err := process.Probe(ctx, gitRunner, "--version"); err == nil {
		c.Caps.GitAvailable = true
	} else {
		splog.Debug("git probe: %v", err)
	}

	if c.Caps.GitAvailable {
		if root, err := git.Discover(dir); err == nil {
			c.RepoRoot = root
			c.Caps.GitRepo = true
		} else if !errors.Is(err, kurterrors.ErrNotGitRepo) {
			return nil, err
		}
	}
	if c.Caps.GitRepo {
		gitDir, err := git.NewClient(gitRunner, c.RepoRoot, 0).GitDir(ctx)
		if err != nil {
			return nil, err
		}
		c.GitDir = gitDir
	}

	cfg, err := config.Load(c.GitDir)
	if err != nil {
		return nil, err
	}
	c.Config = cfg

	if runners.Git == nil {
		gitRunner = process.NewExecRunner("git", cfg.Timeouts.Command)
	}
	doltRunner := runners.Dolt
	if doltRunner == nil {
		doltRunner = process.NewExecRunner("dolt", cfg.Timeouts.Command)
	}
	c.Git = git.NewClient(gitRunner, c.RepoRoot, cfg.Timeouts.Network)

	c.DoltDir = cfg.DoltDir(c.RepoRoot)
	c.Dolt = dolt.NewClient(doltRunner, c.DoltDir, cfg.Timeouts.Network)
	if _, err := c.Dolt.Version(ctx); err == nil {
		c.Caps.DoltAvailable = true
		c.Caps.DoltRepo = c.Dolt.IsRepo()
	} else {
		splog.Debug("dolt probe: %v", err)
	}

	stateDir := c.GitDir
	if stateDir == "" {
		stateDir = filepath.Join(c.RepoRoot, ".git")
	}
	c.Server = dolt.NewServer(cfg.ServerConfig(c.DoltDir), c.DoltDir, stateDir)
	c.Lock = hooks.NewLock(stateDir, cfg.Lock.StaleAfter, cfg.Lock.Wait)

	hooksDir := filepath.Join(stateDir, "hooks")
	if c.Caps.GitRepo {
		if dir, err := c.Git.HooksDir(ctx); err == nil {
			hooksDir = dir
		}
	}
	c.Hooks = hooks.NewManager(hooksDir, cfg.Hooks.Command)

	c.inspector = &lazyInspector{server: c.Server, splog: splog}
	return c, nil
}

// Synchronizer returns the branch synchronizer
func (c *Context) Synchronizer() *branchsync.Synchronizer {
	return branchsync.NewSynchronizer(c.Git, c.Dolt, c.Caps, c.Lock, c.Splog)
}

// MergeCoordinator returns the merge coordinator. Conflict rows are read
// over SQL; the sql-server is started on first use.
func (c *Context) MergeCoordinator() *merge.Coordinator {
	return merge.NewCoordinator(merge.Deps{
		Git:       c.Git,
		Dolt:      c.Dolt,
		Inspector: c.inspector,
		Store:     merge.NewStateStore(c.GitDir),
		Lock:      c.Lock,
		Caps:      c.Caps,
		Splog:     c.Splog,
	})
}

// RemoteCoordinator returns the push/pull coordinator
func (c *Context) RemoteCoordinator() *remote.Coordinator {
	return remote.NewCoordinator(c.Git, c.Dolt, c.Caps, c.Lock, remote.Options{
		GitRemote:  c.Config.Git.Remote,
		DoltRemote: c.Config.Dolt.Remote,
	}, c.Splog)
}

// Doctor returns the health checker
func (c *Context) Doctor() *doctor.Doctor {
	return doctor.New(doctor.Deps{
		Git:    c.Git,
		Dolt:   c.Dolt,
		Hooks:  c.Hooks,
		Lock:   c.Lock,
		Server: c.Server,
		Caps:   c.Caps,
		Remote: c.Config.Git.Remote,
	})
}

// Dispatcher returns the hook dispatcher
func (c *Context) Dispatcher() *hooks.Dispatcher {
	return hooks.NewDispatcher(c.Git, c.Dolt, c.Synchronizer(), c.Lock, c.Splog)
}

// Close releases the SQL session, if one was opened
func (c *Context) Close() error {
	if c.inspector == nil {
		return nil
	}
	return c.inspector.Close()
}

// lazyInspector opens a SQL session the first time conflicts are inspected
type lazyInspector struct {
	server *dolt.Server
	splog  *tui.Splog

	once      sync.Once
	session   dolt.Session
	inspector *dolt.Inspector
	err       error
}

func (l *lazyInspector) get(ctx context.Context) (*dolt.Inspector, error) {
	l.once.Do(func() {
		if err := l.server.Ensure(ctx); err != nil {
			l.err = err
			return
		}
		cfg := l.server.Config()
		session, err := dolt.OpenSession(ctx, cfg)
		if err != nil {
			l.err = err
			return
		}
		l.session = session
		l.inspector = dolt.NewInspector(session, cfg.Database)
	})
	if l.err != nil {
		return nil, fmt.Errorf("dolt sql-server unavailable: %w", l.err)
	}
	return l.inspector, nil
}

func (l *lazyInspector) Conflicts(ctx context.Context, branch string) ([]dolt.Conflict, error) {
	i, err := l.get(ctx)
	if err != nil {
		return nil, err
	}
	return i.Conflicts(ctx, branch)
}

func (l *lazyInspector) PreviewConflicts(ctx context.Context, target, source string) ([]dolt.TableConflicts, error) {
	i, err := l.get(ctx)
	if err != nil {
		return nil, err
	}
	return i.PreviewConflicts(ctx, target, source)
}

func (l *lazyInspector) Close() error {
	if l.session == nil {
		return nil
	}
	return l.session.Close()
}
