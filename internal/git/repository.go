package git

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	kurterrors "kurt.dev/kurt/internal/errors"
)

// Discover finds the work tree containing path, walking up like git does
func Discover(path string) (string, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}

	repo, err := git.PlainOpenWithOptions(absPath, &git.PlainOpenOptions{
		DetectDotGit:          true,
		EnableDotGitCommonDir: true,
	})
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return "", fmt.Errorf("%w: %s", kurterrors.ErrNotGitRepo, absPath)
		}
		return "", fmt.Errorf("failed to open repository: %w", err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		// bare repositories have no work tree to mirror into dolt
		return "", fmt.Errorf("%w: %s has no work tree", kurterrors.ErrNotGitRepo, absPath)
	}
	return wt.Filesystem.Root(), nil
}

// ValidateBranchName checks name against git's check-ref-format rules for branches
func ValidateBranchName(name string) error {
	if name == "" {
		return fmt.Errorf("branch name is empty")
	}
	if name == "HEAD" {
		return fmt.Errorf("%q is reserved", name)
	}
	if err := plumbing.NewBranchReferenceName(name).Validate(); err != nil {
		return fmt.Errorf("%q is not a valid git branch name: %w", name, err)
	}
	return nil
}
