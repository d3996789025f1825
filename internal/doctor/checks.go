package doctor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"kurt.dev/kurt/internal/branchsync"
	"kurt.dev/kurt/internal/dolt"
	"kurt.dev/kurt/internal/git"
	"kurt.dev/kurt/internal/hooks"
)

// Check names, in the order they run
const (
	CheckHooksInstalled    = "hooks_installed"
	CheckDoltInitialized   = "dolt_initialized"
	CheckBranchSync        = "branch_sync"
	CheckNoUncommittedDolt = "no_uncommitted_dolt"
	CheckRemotesConfigured = "remotes_configured"
	CheckSQLServer         = "sql_server"
	CheckNoStaleLocks      = "no_stale_locks"
)

// Status is the outcome of one check
type Status string

const (
	StatusPass Status = "pass"
	StatusWarn Status = "warn"
	StatusFail Status = "fail"
)

// CheckResult is one line of a doctor report
type CheckResult struct {
	Name    string `json:"name"`
	Status  Status `json:"status"`
	Message string `json:"message"`
	// Fixable is set on failures Repair knows how to fix
	Fixable bool `json:"fixable,omitempty"`
}

// Report is the result of running every check
type Report struct {
	Checks []CheckResult `json:"checks"`
}

// Get returns the named check
func (r *Report) Get(name string) (CheckResult, bool) {
	for _, c := range r.Checks {
		if c.Name == name {
			return c, true
		}
	}
	return CheckResult{}, false
}

func (r *Report) withStatus(s Status) []CheckResult {
	var out []CheckResult
	for _, c := range r.Checks {
		if c.Status == s {
			out = append(out, c)
		}
	}
	return out
}

// Failed returns the failing checks
func (r *Report) Failed() []CheckResult {
	return r.withStatus(StatusFail)
}

// Warnings returns the checks that passed with a warning
func (r *Report) Warnings() []CheckResult {
	return r.withStatus(StatusWarn)
}

// Healthy is true when no check failed. Warnings do not count.
func (r *Report) Healthy() bool {
	return len(r.Failed()) == 0
}

// HookInstaller is the part of hooks.Manager doctor uses
type HookInstaller interface {
	NeedsUpdate() ([]string, error)
	Install() (*hooks.InstallResult, error)
}

// LockInspector is the part of hooks.Lock doctor uses
type LockInspector interface {
	Inspect() (hooks.LockStatus, error)
	ClearStale() (bool, error)
}

// GitState is the git side of the checks
type GitState interface {
	Head(ctx context.Context) (git.HeadState, error)
	HasRemote(ctx context.Context, name string) (bool, error)
}

// DoltState is the dolt side of the checks
type DoltState interface {
	IsRepo() bool
	Init(ctx context.Context) error
	CurrentBranch(ctx context.Context) (string, error)
	Status(ctx context.Context) (dolt.Status, error)
	HasRemote(ctx context.Context, name string) (bool, error)
}

// SQLServer is the part of dolt.Server doctor uses
type SQLServer interface {
	Config() dolt.ServerConfig
	Reachable(ctx context.Context) bool
	Ensure(ctx context.Context) error
	PID() (int, bool)
}

// Deps are the collaborators a Doctor inspects
type Deps struct {
	Git    GitState
	Dolt   DoltState
	Hooks  HookInstaller
	Lock   LockInspector
	Server SQLServer
	Caps   branchsync.Capabilities
	// Remote is the remote name both systems should have; empty means origin
	Remote string
}

// Doctor runs the health checks
type Doctor struct {
	deps Deps
}

// New creates a Doctor
func New(deps Deps) *Doctor {
	if deps.Remote == "" {
		deps.Remote = "origin"
	}
	return &Doctor{deps: deps}
}

func pass(name, format string, args ...any) CheckResult {
	return CheckResult{Name: name, Status: StatusPass, Message: fmt.Sprintf(format, args...)}
}

func warn(name, format string, args ...any) CheckResult {
	return CheckResult{Name: name, Status: StatusWarn, Message: fmt.Sprintf(format, args...)}
}

func fail(name string, fixable bool, format string, args ...any) CheckResult {
	return CheckResult{Name: name, Status: StatusFail, Message: fmt.Sprintf(format, args...), Fixable: fixable}
}

// Check runs every check. Checks are independent; one failing does not stop
// the others.
func (d *Doctor) Check(ctx context.Context) *Report {
	return &Report{Checks: []CheckResult{
		d.checkHooks(),
		d.checkDoltInitialized(),
		d.checkBranchSync(ctx),
		d.checkUncommittedDolt(ctx),
		d.checkRemotes(ctx),
		d.checkSQLServer(ctx),
		d.checkLocks(),
	}}
}

func (d *Doctor) checkHooks() CheckResult {
	if !d.deps.Caps.GitRepo {
		return fail(CheckHooksInstalled, false, "not inside a git repository")
	}
	stale, err := d.deps.Hooks.NeedsUpdate()
	if err != nil {
		return fail(CheckHooksInstalled, false, "could not read hooks: %v", err)
	}
	if len(stale) > 0 {
		return fail(CheckHooksInstalled, true, "missing or out of date: %s", strings.Join(stale, ", "))
	}
	return pass(CheckHooksInstalled, "all %d kurt hooks are installed", len(hooks.Names))
}

func (d *Doctor) doltReady() bool {
	return d.deps.Caps.DoltAvailable && d.deps.Dolt.IsRepo()
}

func (d *Doctor) checkDoltInitialized() CheckResult {
	if !d.deps.Caps.DoltAvailable {
		return fail(CheckDoltInitialized, false, "dolt is not installed or not on PATH")
	}
	if !d.deps.Dolt.IsRepo() {
		return fail(CheckDoltInitialized, true, "no dolt database found")
	}
	return pass(CheckDoltInitialized, "dolt database found")
}

func (d *Doctor) checkBranchSync(ctx context.Context) CheckResult {
	if !d.doltReady() || !d.deps.Caps.GitRepo {
		return warn(CheckBranchSync, "skipped until git and dolt are both set up")
	}
	head, err := d.deps.Git.Head(ctx)
	if err != nil {
		return fail(CheckBranchSync, false, "could not read git HEAD: %v", err)
	}
	if head.Detached {
		return warn(CheckBranchSync, "git HEAD is detached; dolt is not compared")
	}
	doltBranch, err := d.deps.Dolt.CurrentBranch(ctx)
	if err != nil {
		return fail(CheckBranchSync, false, "could not read dolt branch: %v", err)
	}
	if doltBranch != head.Branch {
		return fail(CheckBranchSync, false, "git is on %s but dolt is on %s; run 'kurt sync branch switch %s'", head.Branch, doltBranch, head.Branch)
	}
	return pass(CheckBranchSync, "git and dolt are both on %s", head.Branch)
}

func (d *Doctor) checkUncommittedDolt(ctx context.Context) CheckResult {
	if !d.doltReady() {
		return warn(CheckNoUncommittedDolt, "skipped until dolt is initialized")
	}
	status, err := d.deps.Dolt.Status(ctx)
	if err != nil {
		return fail(CheckNoUncommittedDolt, false, "could not read dolt status: %v", err)
	}
	if status.Merging {
		return warn(CheckNoUncommittedDolt, "dolt has a merge in progress; run 'kurt sync merge --abort'")
	}
	if !status.Clean {
		return warn(CheckNoUncommittedDolt, "dolt has uncommitted changes in: %s", strings.Join(status.Tables, ", "))
	}
	return pass(CheckNoUncommittedDolt, "dolt working set is clean")
}

func (d *Doctor) checkRemotes(ctx context.Context) CheckResult {
	var missing []string
	if d.deps.Caps.GitRepo {
		if ok, err := d.deps.Git.HasRemote(ctx, d.deps.Remote); err != nil || !ok {
			missing = append(missing, "git")
		}
	}
	if d.doltReady() {
		if ok, err := d.deps.Dolt.HasRemote(ctx, d.deps.Remote); err != nil || !ok {
			missing = append(missing, "dolt")
		}
	}
	if len(missing) > 0 {
		return warn(CheckRemotesConfigured, "no %q remote in %s; push and pull will fail", d.deps.Remote, strings.Join(missing, " or "))
	}
	return pass(CheckRemotesConfigured, "git and dolt both have %q", d.deps.Remote)
}

func (d *Doctor) checkSQLServer(ctx context.Context) CheckResult {
	cfg := d.deps.Server.Config()
	if d.deps.Server.Reachable(ctx) {
		if pid, ok := d.deps.Server.PID(); ok {
			return pass(CheckSQLServer, "dolt sql-server is reachable at %s (started by kurt, pid %d)", cfg.Addr(), pid)
		}
		return pass(CheckSQLServer, "dolt sql-server is reachable at %s", cfg.Addr())
	}
	if !cfg.IsLocal() {
		return fail(CheckSQLServer, false, "dolt sql-server at %s is not reachable; kurt does not start remote servers", cfg.Addr())
	}
	return fail(CheckSQLServer, d.doltReady(), "dolt sql-server is not running at %s", cfg.Addr())
}

func (d *Doctor) checkLocks() CheckResult {
	status, err := d.deps.Lock.Inspect()
	if err != nil {
		return fail(CheckNoStaleLocks, false, "could not read the hook lock: %v", err)
	}
	switch {
	case !status.Held:
		return pass(CheckNoStaleLocks, "hook lock is free")
	case status.Stale:
		return fail(CheckNoStaleLocks, true, "hook lock held by pid %d for %s looks abandoned", status.Info.PID, status.Age.Round(time.Second))
	default:
		return pass(CheckNoStaleLocks, "hook lock held by pid %d for %s", status.Info.PID, status.Age.Round(time.Second))
	}
}
