package dolt_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"kurt.dev/kurt/internal/dolt"
	"kurt.dev/kurt/internal/process/processtest"
)

const doltLog = `commit 0123456789abcdefghijklmnopqrstuv (HEAD -> main)
Author: Test User <test@example.com>
Date:  Mon Oct 12 10:00:00 -0700 2026

	Initialize data repository
`

func TestBranchListing(t *testing.T) {
	rec := processtest.NewRecorder("dolt", nil).
		On(processtest.Response{Stdout: "  feature/login\n* main\n  zeta\n"}, "branch")
	client := dolt.NewClient(rec, "/repo", 0)
	ctx := context.Background()

	current, err := client.CurrentBranch(ctx)
	require.NoError(t, err)
	require.Equal(t, "main", current)

	branches, err := client.ListBranches(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"feature/login", "main", "zeta"}, branches)

	exists, err := client.BranchExists(ctx, "feature/login")
	require.NoError(t, err)
	require.True(t, exists)

	exists, err = client.BranchExists(ctx, "feature")
	require.NoError(t, err)
	require.False(t, exists)
}

func TestHeadHash(t *testing.T) {
	rec := processtest.NewRecorder("dolt", nil).
		On(processtest.Response{Stdout: doltLog}, "log", "-n", "1")
	client := dolt.NewClient(rec, "/repo", 0)

	hash, err := client.HeadHash(context.Background())
	require.NoError(t, err)
	require.Equal(t, "0123456789abcdefghijklmnopqrstuv", hash)

	bad := dolt.NewClient(processtest.NewRecorder("dolt", nil).On(processtest.Response{Stdout: "nothing"}, "log"), "/repo", 0)
	_, err = bad.HeadHash(context.Background())
	require.Error(t, err)
}

func TestStatus(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   dolt.Status
	}{
		{
			name:   "clean",
			output: "On branch main\nnothing to commit, working tree clean\n",
			want:   dolt.Status{Clean: true},
		},
		{
			name: "dirty",
			output: "On branch main\nChanges not staged for commit:\n  (use \"dolt add <table>\" to update what will be committed)\n" +
				"\tmodified:         issues\n\tnew table:        labels\n",
			want: dolt.Status{Tables: []string{"issues", "labels"}},
		},
		{
			name:   "merging",
			output: "On branch main\nYou have unmerged tables.\nUnmerged paths:\n\tboth modified:    issues\n",
			want:   dolt.Status{Merging: true, Tables: []string{"issues"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := processtest.NewRecorder("dolt", nil).On(processtest.Response{Stdout: tt.output}, "status")
			got, err := dolt.NewClient(rec, "/repo", 0).Status(context.Background())
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestMerge(t *testing.T) {
	tests := []struct {
		name string
		resp processtest.Response
		want dolt.MergeOutcome
	}{
		{
			name: "conflict",
			resp: processtest.Response{
				Stdout:   "Auto-merging issues\nCONFLICT (content): Merge conflict in issues.\nAutomatic merge failed; 1 table(s) are unmerged.\n",
				ExitCode: 1,
			},
			want: dolt.MergeOutcome{Conflicted: true, ConflictedTables: []string{"issues"}},
		},
		{
			name: "fast forward",
			resp: processtest.Response{Stdout: "Updating abc..def\nFast-forward\n"},
			want: dolt.MergeOutcome{FastForward: true},
		},
		{
			name: "up to date",
			resp: processtest.Response{Stdout: "Everything up-to-date\n"},
			want: dolt.MergeOutcome{UpToDate: true},
		},
		{
			name: "staged merge",
			resp: processtest.Response{Stdout: "Automatic merge went well; stopped before committing as requested\n"},
			want: dolt.MergeOutcome{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := processtest.NewRecorder("dolt", nil).On(tt.resp, "merge")
			got, err := dolt.NewClient(rec, "/repo", 0).Merge(context.Background(), "feature")
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
			require.Equal(t, []string{"dolt merge --no-commit feature"}, rec.Log().Lines())
		})
	}

	t.Run("failure", func(t *testing.T) {
		rec := processtest.NewRecorder("dolt", nil).
			On(processtest.Response{Stderr: "error: branch not found: nope", ExitCode: 1}, "merge")
		_, err := dolt.NewClient(rec, "/repo", 0).Merge(context.Background(), "nope")
		require.Error(t, err)
	})

	t.Run("needs commit", func(t *testing.T) {
		require.True(t, dolt.MergeOutcome{}.NeedsCommit())
		require.False(t, dolt.MergeOutcome{FastForward: true}.NeedsCommit())
		require.False(t, dolt.MergeOutcome{Conflicted: true}.NeedsCommit())
	})
}

func TestRemotes(t *testing.T) {
	rec := processtest.NewRecorder("dolt", nil).
		On(processtest.Response{Stdout: "origin https://doltremoteapi.dolthub.com/acme/issues {}\nbackup file:///tmp/backup {}\n"}, "remote", "-v").
		Once(processtest.Response{Stdout: "Everything up-to-date\n"}, "push").
		Once(processtest.Response{Stderr: "error: failed to push\nhint: Updates were rejected because the tip of your current branch is behind", ExitCode: 1}, "push")
	client := dolt.NewClient(rec, "/repo", 0)
	ctx := context.Background()

	remotes, err := client.Remotes(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"origin", "backup"}, remotes)

	has, err := client.HasRemote(ctx, "origin")
	require.NoError(t, err)
	require.True(t, has)

	upToDate, err := client.Push(ctx, "origin", "main")
	require.NoError(t, err)
	require.True(t, upToDate)

	_, err = client.Push(ctx, "origin", "main")
	require.Error(t, err)
}

func TestDatabaseNameForDir(t *testing.T) {
	require.Equal(t, "my_repo", dolt.DatabaseNameForDir("/home/me/my-repo"))
	require.Equal(t, "issues", dolt.DatabaseNameForDir("/srv/issues"))
}

func TestServerConfig(t *testing.T) {
	cfg := dolt.ServerConfig{Host: "127.0.0.1", Port: 3307, User: "root", Database: "issues"}
	require.True(t, cfg.IsLocal())
	require.Equal(t, "127.0.0.1:3307", cfg.Addr())

	dsn := cfg.DSN()
	require.Contains(t, dsn, "root@tcp(127.0.0.1:3307)/issues")
	require.Contains(t, dsn, "parseTime=true")

	require.False(t, dolt.ServerConfig{Host: "db.internal", Port: 3306}.IsLocal())
}
