package branchsync_test

import (
	"context"
	"fmt"
	"sort"

	"kurt.dev/kurt/internal/git"
)

// fakeVCS is an in-memory branch store that appends every mutation to a
// log shared between the git and dolt fakes
type fakeVCS struct {
	system   string
	branches map[string]bool
	current  string
	fail     map[string]error
	log      *[]string
}

func newFakeVCS(system string, log *[]string, current string, branches ...string) *fakeVCS {
	f := &fakeVCS{system: system, branches: map[string]bool{current: true}, current: current, fail: map[string]error{}, log: log}
	for _, b := range branches {
		f.branches[b] = true
	}
	return f
}

func (f *fakeVCS) record(op, name string) error {
	*f.log = append(*f.log, fmt.Sprintf("%s %s %s", f.system, op, name))
	if err := f.fail[op+" "+name]; err != nil {
		return err
	}
	return f.fail[op]
}

func (f *fakeVCS) BranchExists(_ context.Context, name string) (bool, error) {
	return f.branches[name], nil
}

func (f *fakeVCS) ListBranches(context.Context) ([]string, error) {
	var out []string
	for b := range f.branches {
		out = append(out, b)
	}
	sort.Strings(out)
	return out, nil
}

func (f *fakeVCS) CreateBranch(_ context.Context, name string) error {
	if err := f.record("create", name); err != nil {
		return err
	}
	f.branches[name] = true
	return nil
}

func (f *fakeVCS) Checkout(_ context.Context, name string) error {
	if err := f.record("checkout", name); err != nil {
		return err
	}
	if !f.branches[name] {
		return fmt.Errorf("%s: no branch %s", f.system, name)
	}
	f.current = name
	return nil
}

func (f *fakeVCS) DeleteBranch(_ context.Context, name string, _ bool) error {
	if err := f.record("delete", name); err != nil {
		return err
	}
	delete(f.branches, name)
	return nil
}

type fakeGit struct {
	*fakeVCS
	detached bool
	unborn   bool
}

func (g *fakeGit) Head(context.Context) (git.HeadState, error) {
	if g.detached {
		return git.HeadState{Detached: true, Hash: "0f0f0f0f0f0f"}, nil
	}
	return git.HeadState{Branch: g.current, Hash: "abc123", Unborn: g.unborn}, nil
}

type fakeDolt struct {
	*fakeVCS
}

func (d *fakeDolt) CurrentBranch(context.Context) (string, error) {
	return d.current, nil
}

type countingLock struct {
	calls int
}

func (l *countingLock) WithLock(_ context.Context, fn func() error) error {
	l.calls++
	return fn()
}
