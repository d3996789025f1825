package merge_test

import (
	"context"
	"fmt"

	"kurt.dev/kurt/internal/dolt"
	"kurt.dev/kurt/internal/git"
)

type fakeDolt struct {
	log      *[]string
	branches map[string]string
	current  string
	merging  bool
	dirty    bool

	outcome   dolt.MergeOutcome
	mergeErr  error
	commitErr error
	resetErr  error
	onCommit  func()
}

func (d *fakeDolt) CurrentBranch(context.Context) (string, error) { return d.current, nil }

func (d *fakeDolt) BranchExists(_ context.Context, name string) (bool, error) {
	_, ok := d.branches[name]
	return ok, nil
}

func (d *fakeDolt) Checkout(_ context.Context, name string) error {
	*d.log = append(*d.log, "dolt checkout "+name)
	d.current = name
	return nil
}

func (d *fakeDolt) HeadHash(context.Context) (string, error) { return d.branches[d.current], nil }

func (d *fakeDolt) BranchHash(_ context.Context, branch string) (string, error) {
	h, ok := d.branches[branch]
	if !ok {
		return "", fmt.Errorf("no dolt branch %s", branch)
	}
	return h, nil
}

func (d *fakeDolt) Status(context.Context) (dolt.Status, error) {
	return dolt.Status{Clean: !d.dirty && !d.merging, Merging: d.merging}, nil
}

func (d *fakeDolt) Merge(_ context.Context, source string) (dolt.MergeOutcome, error) {
	*d.log = append(*d.log, "dolt merge "+source)
	if d.mergeErr != nil {
		return dolt.MergeOutcome{}, d.mergeErr
	}
	switch {
	case d.outcome.FastForward:
		d.branches[d.current] = d.branches[source]
	case d.outcome.UpToDate:
	default:
		d.merging = true
	}
	return d.outcome, nil
}

func (d *fakeDolt) MergeAbort(context.Context) error {
	*d.log = append(*d.log, "dolt merge --abort")
	d.merging = false
	return nil
}

func (d *fakeDolt) AddAll(context.Context) error {
	*d.log = append(*d.log, "dolt add")
	return nil
}

func (d *fakeDolt) Commit(_ context.Context, _ string) (string, error) {
	*d.log = append(*d.log, "dolt commit")
	if d.commitErr != nil {
		return "", d.commitErr
	}
	d.branches[d.current] = "dolt-merge"
	d.merging = false
	if d.onCommit != nil {
		d.onCommit()
	}
	return "dolt-merge", nil
}

func (d *fakeDolt) ResetHard(_ context.Context, rev string) error {
	*d.log = append(*d.log, "dolt reset "+rev)
	if d.resetErr != nil {
		return d.resetErr
	}
	d.branches[d.current] = rev
	d.merging = false
	return nil
}

type fakeGit struct {
	log      *[]string
	branches map[string]string
	current  string
	merging  bool

	conflict []string
	mergeErr error
	preview  []string
	// headErr fails HEAD lookups once a merge has been made
	headErr error
	merged  bool
}

func (g *fakeGit) Head(context.Context) (git.HeadState, error) {
	return git.HeadState{Branch: g.current, Hash: g.branches[g.current]}, nil
}

func (g *fakeGit) BranchExists(_ context.Context, name string) (bool, error) {
	_, ok := g.branches[name]
	return ok, nil
}

func (g *fakeGit) RevParse(_ context.Context, rev string) (string, error) {
	if rev == "HEAD" {
		if g.merged && g.headErr != nil {
			return "", g.headErr
		}
		return g.branches[g.current], nil
	}
	h, ok := g.branches[rev]
	if !ok {
		return "", fmt.Errorf("unknown revision %s", rev)
	}
	return h, nil
}

func (g *fakeGit) IsMergeInProgress(context.Context) (bool, error) { return g.merging, nil }

func (g *fakeGit) Merge(_ context.Context, source, _ string) (git.MergeOutcome, error) {
	*g.log = append(*g.log, "git merge "+source)
	if g.mergeErr != nil {
		return git.MergeOutcome{}, g.mergeErr
	}
	if g.conflict != nil {
		g.merging = true
		return git.MergeOutcome{Conflicted: true, ConflictedFiles: g.conflict}, nil
	}
	g.branches[g.current] = "git-merge"
	g.merged = true
	return git.MergeOutcome{}, nil
}

func (g *fakeGit) MergeAbort(context.Context) error {
	*g.log = append(*g.log, "git merge --abort")
	g.merging = false
	return nil
}

func (g *fakeGit) MergeTreePreview(context.Context, string, string) ([]string, error) {
	return g.preview, nil
}

type fakeInspector struct {
	conflicts []dolt.Conflict
	err       error
	preview   []dolt.TableConflicts
}

func (i *fakeInspector) Conflicts(context.Context, string) ([]dolt.Conflict, error) {
	return i.conflicts, i.err
}

func (i *fakeInspector) PreviewConflicts(context.Context, string, string) ([]dolt.TableConflicts, error) {
	return i.preview, i.err
}
