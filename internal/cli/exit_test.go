package cli

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	kurterrors "kurt.dev/kurt/internal/errors"
	"kurt.dev/kurt/internal/merge"
)

func TestExitCodeFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "nil", err: nil, want: 0},
		{name: "plain error", err: errors.New("boom"), want: 1},
		{name: "explicit exit error", err: &ExitError{Code: 7, Err: errors.New("x")}, want: 7},
		{name: "dolt conflict", err: &merge.MergeError{Code: merge.CodeDoltConflict}, want: 1},
		{name: "git conflict", err: &merge.MergeError{Code: merge.CodeGitConflict}, want: 2},
		{name: "rollback failed", err: &merge.MergeError{Code: merge.CodeRollbackFailed}, want: 3},
		{name: "merge precondition", err: &merge.MergeError{Code: merge.CodeMergeInProgress}, want: 4},
		{
			name: "wrapped merge error",
			err:  fmt.Errorf("sync: %w", &merge.MergeError{Code: merge.CodeGitConflict}),
			want: 2,
		},
		{
			name: "missing dolt",
			err:  kurterrors.NewBranchSyncError(kurterrors.CodeDoltNotAvailable, "", "dolt missing", nil),
			want: 2,
		},
		{
			name: "detached head",
			err:  kurterrors.NewBranchSyncError(kurterrors.CodeDetachedHead, "", "detached", nil),
			want: 3,
		},
		{
			name: "merge wrapping branch sync error",
			err: &merge.MergeError{
				Code: merge.CodePrecondition,
				Err:  kurterrors.NewBranchSyncError(kurterrors.CodeDoltNotRepo, "", "no db", nil),
			},
			want: 4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, ExitCodeFor(tt.err))
		})
	}
}

func TestIsSilent(t *testing.T) {
	require.True(t, IsSilent(&ExitError{Code: 1, Silent: true}))
	require.True(t, IsSilent(fmt.Errorf("wrapped: %w", &ExitError{Code: 1, Silent: true})))
	require.False(t, IsSilent(&ExitError{Code: 1}))
	require.False(t, IsSilent(errors.New("boom")))
}

func TestExitErrorMessage(t *testing.T) {
	require.Equal(t, "exit status 3", (&ExitError{Code: 3}).Error())
	inner := errors.New("merge failed")
	err := &ExitError{Code: 4, Err: inner}
	require.Equal(t, "merge failed", err.Error())
	require.ErrorIs(t, err, inner)
}
