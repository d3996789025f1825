// Package testhelpers builds throwaway git repositories for tests.
package testhelpers

import (
	"os"
	"testing"
)

// Scene represents a test scene with a temporary directory and Git repository.
type Scene struct {
	Dir  string
	Repo *GitRepo
}

// SceneSetup is a function type for setting up a scene.
type SceneSetup func(*Scene) error

// NewScene creates a new test scene with a temporary directory and Git repository.
// The directory is removed by t.Cleanup unless DEBUG is set. Scenes never
// change the process working directory, so tests using them may run in parallel.
func NewScene(t *testing.T, setup SceneSetup) *Scene {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "kurt-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	t.Cleanup(func() {
		if os.Getenv("DEBUG") == "" {
			_ = os.RemoveAll(tmpDir)
			_ = os.RemoveAll(tmpDir + "-origin.git")
		}
	})

	repo, err := NewGitRepo(tmpDir)
	if err != nil {
		t.Fatalf("Failed to create Git repo: %v", err)
	}

	scene := &Scene{Dir: tmpDir, Repo: repo}
	if setup != nil {
		if err := setup(scene); err != nil {
			t.Fatalf("Setup failed: %v", err)
		}
	}
	return scene
}

// BasicSceneSetup is a setup function that creates a basic scene with a single commit.
func BasicSceneSetup(scene *Scene) error {
	return scene.Repo.CreateChangeAndCommit("1", "1")
}

// DivergeBranches creates branch from main and gives both branches one new
// commit. When conflicting, both commits rewrite test.txt; otherwise they touch
// different files. The scene is left on main.
func DivergeBranches(t *testing.T, scene *Scene, branch string, conflicting bool) {
	t.Helper()
	repo := scene.Repo

	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatalf("diverge %s: %v", branch, err)
		}
	}

	must(repo.CreateChangeAndCommit("base", ""))
	must(repo.CreateAndCheckoutBranch(branch))
	if conflicting {
		must(repo.CreateChangeAndCommit("from "+branch, ""))
	} else {
		must(repo.CreateChangeAndCommit("from "+branch, branch))
	}
	must(repo.CheckoutBranch("main"))
	must(repo.CreateChangeAndCommit("from main", ""))
}
