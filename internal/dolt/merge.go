package dolt

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

var conflictTableRe = regexp.MustCompile(`CONFLICT \([^)]*\): Merge conflict in ([^\s.]+)`)

// MergeOutcome is the result of a dolt merge that did not fail outright
type MergeOutcome struct {
	Conflicted bool
	// ConflictedTables comes from the CLI output; SQL inspection gives rows
	ConflictedTables []string
	FastForward      bool
	UpToDate         bool
}

// NeedsCommit reports whether a --no-commit merge left staged merge results
func (o MergeOutcome) NeedsCommit() bool {
	return !o.Conflicted && !o.FastForward && !o.UpToDate
}

// Merge merges source into the current branch without committing
func (c *Client) Merge(ctx context.Context, source string) (MergeOutcome, error) {
	res, err := c.run(ctx, "merge", "--no-commit", source)
	var out string
	if res != nil {
		out = res.Stdout + "\n" + res.Stderr
	}

	tables := parseConflictTables(out)
	if len(tables) > 0 || strings.Contains(out, "Automatic merge failed") {
		return MergeOutcome{Conflicted: true, ConflictedTables: tables}, nil
	}
	if err != nil {
		return MergeOutcome{}, fmt.Errorf("dolt merge %s failed: %w", source, err)
	}
	return MergeOutcome{
		FastForward: strings.Contains(out, "Fast-forward"),
		UpToDate:    strings.Contains(out, "Everything up-to-date") || strings.Contains(out, "Already up to date"),
	}, nil
}

func parseConflictTables(out string) []string {
	var tables []string
	seen := make(map[string]bool)
	for _, m := range conflictTableRe.FindAllStringSubmatch(out, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			tables = append(tables, m[1])
		}
	}
	return tables
}

// MergeAbort abandons an in-progress merge
func (c *Client) MergeAbort(ctx context.Context) error {
	if _, err := c.run(ctx, "merge", "--abort"); err != nil {
		return fmt.Errorf("dolt merge abort failed: %w", err)
	}
	return nil
}
