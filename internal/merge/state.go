package merge

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// StateFileName lives in the git directory
const StateFileName = "kurt-merge-state.json"

// State is a step of the merge protocol
type State string

const (
	StateInit               State = "init"
	StateDoltMergeAttempted State = "dolt_merge_attempted"
	StateDoltCommitted      State = "dolt_committed"
	StateGitMergeAttempted  State = "git_merge_attempted"
	StateDone               State = "done"
	StateRolledBack         State = "rolled_back"
)

// MergeState is what a later process needs to undo an unfinished merge
type MergeState struct {
	Source           string    `json:"source"`
	Target           string    `json:"target"`
	DoltPreMergeHash string    `json:"doltPreMergeHash"`
	DoltMergeHash    string    `json:"doltMergeHash,omitempty"`
	GitPreMergeHash  string    `json:"gitPreMergeHash"`
	Stage            State     `json:"stage"`
	StartedAt        time.Time `json:"startedAt"`
}

// StateStore persists MergeState under the git directory
type StateStore struct {
	path string
}

// NewStateStore creates a store for the repository whose git directory is gitDir
func NewStateStore(gitDir string) *StateStore {
	return &StateStore{path: filepath.Join(gitDir, StateFileName)}
}

// Path returns the state file path
func (s *StateStore) Path() string {
	return s.path
}

// Load returns nil when no merge is recorded
func (s *StateStore) Load() (*MergeState, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read merge state: %w", err)
	}
	var state MergeState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to parse merge state %s: %w", s.path, err)
	}
	return &state, nil
}

// Save writes state
func (s *StateStore) Save(state *MergeState) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal merge state: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write merge state: %w", err)
	}
	return nil
}

// Clear removes the state file
func (s *StateStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to clear merge state: %w", err)
	}
	return nil
}
