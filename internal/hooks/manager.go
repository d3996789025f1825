package hooks

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/template"
)

//go:embed templates/*.sh
var templateFS embed.FS

const (
	// ManagedMarker identifies scripts kurt owns
	ManagedMarker = "# kurt-managed-hook"
	// TemplateVersion changes whenever the rendered scripts change shape
	TemplateVersion = 2
	// BackupSuffix is appended to a user hook kurt moved aside
	BackupSuffix = ".kurt-backup"
)

// Hook names kurt installs
const (
	PostCheckout     = "post-checkout"
	PostCommit       = "post-commit"
	PrePush          = "pre-push"
	PrepareCommitMsg = "prepare-commit-msg"
)

// Names lists every managed hook in install order
var Names = []string{PostCheckout, PostCommit, PrePush, PrepareCommitMsg}

// InstallResult lists what Install did per hook
type InstallResult struct {
	Installed []string
	Updated   []string
	Unchanged []string
	// BackedUp maps a hook to where its previous, user-owned script went
	BackedUp map[string]string
}

// UninstallResult lists what Uninstall did per hook
type UninstallResult struct {
	Removed  []string
	Restored map[string]string
	Skipped  []string
}

// HookState is the condition of one installed hook
type HookState string

const (
	StateCurrent   HookState = "current"
	StateStale     HookState = "stale"
	StateMissing   HookState = "missing"
	StateUnmanaged HookState = "unmanaged"
)

// HookStatus pairs a hook with its state
type HookStatus struct {
	Name   string
	State  HookState
	Backup string
}

// Manager installs and removes kurt's hook scripts
type Manager struct {
	hooksDir string
	command  string
}

// NewManager creates a Manager writing into hooksDir. command is how the
// scripts invoke kurt, normally the absolute path of the running binary.
func NewManager(hooksDir, command string) *Manager {
	if command == "" {
		command = "kurt"
	}
	return &Manager{hooksDir: hooksDir, command: command}
}

// HooksDir returns the directory scripts are written to
func (m *Manager) HooksDir() string {
	return m.hooksDir
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// Render returns the script for hook
func (m *Manager) Render(hook string) ([]byte, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/"+hook+".sh")
	if err != nil {
		return nil, fmt.Errorf("no template for hook %q: %w", hook, err)
	}
	var buf bytes.Buffer
	err = tmpl.Execute(&buf, struct {
		Hook    string
		Command string
		Version int
	}{Hook: hook, Command: shellQuote(m.command), Version: TemplateVersion})
	if err != nil {
		return nil, fmt.Errorf("failed to render %s: %w", hook, err)
	}
	return buf.Bytes(), nil
}

func isManaged(content []byte) bool {
	return bytes.Contains(content, []byte(ManagedMarker))
}

func fileExists(path string) (bool, error) {
	_, err := os.Lstat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// Install writes every hook. A hook kurt does not own is moved to
// <hook>.kurt-backup first; an existing backup is never overwritten.
func (m *Manager) Install() (*InstallResult, error) {
	if err := os.MkdirAll(m.hooksDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create hooks directory: %w", err)
	}
	result := &InstallResult{BackedUp: map[string]string{}}

	for _, hook := range Names {
		want, err := m.Render(hook)
		if err != nil {
			return result, err
		}
		path := filepath.Join(m.hooksDir, hook)
		current, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			if err := writeScript(path, want); err != nil {
				return result, err
			}
			result.Installed = append(result.Installed, hook)
		case err != nil:
			return result, fmt.Errorf("failed to read %s: %w", path, err)
		case isManaged(current):
			if bytes.Equal(current, want) {
				result.Unchanged = append(result.Unchanged, hook)
				continue
			}
			if err := writeScript(path, want); err != nil {
				return result, err
			}
			result.Updated = append(result.Updated, hook)
		default:
			backup := path + BackupSuffix
			exists, err := fileExists(backup)
			if err != nil {
				return result, err
			}
			if exists {
				return result, fmt.Errorf("%s is not managed by kurt and %s already exists; merge them by hand", path, backup)
			}
			if err := os.Rename(path, backup); err != nil {
				return result, fmt.Errorf("failed to back up %s: %w", path, err)
			}
			if err := writeScript(path, want); err != nil {
				return result, err
			}
			result.BackedUp[hook] = backup
			result.Installed = append(result.Installed, hook)
		}
	}
	return result, nil
}

func writeScript(path string, content []byte) error {
	// write then rename so git never runs a half-written hook
	tmp := path + ".kurt-tmp"
	if err := os.WriteFile(tmp, content, 0o755); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Chmod(tmp, 0o755); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to chmod %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to install %s: %w", path, err)
	}
	return nil
}

// Uninstall removes kurt's scripts and puts any backed-up user hook back
func (m *Manager) Uninstall() (*UninstallResult, error) {
	result := &UninstallResult{Restored: map[string]string{}}
	for _, hook := range Names {
		path := filepath.Join(m.hooksDir, hook)
		current, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			result.Skipped = append(result.Skipped, hook)
			continue
		case err != nil:
			return result, fmt.Errorf("failed to read %s: %w", path, err)
		case !isManaged(current):
			result.Skipped = append(result.Skipped, hook)
			continue
		}

		if err := os.Remove(path); err != nil {
			return result, fmt.Errorf("failed to remove %s: %w", path, err)
		}
		result.Removed = append(result.Removed, hook)

		backup := path + BackupSuffix
		exists, err := fileExists(backup)
		if err != nil {
			return result, err
		}
		if exists {
			if err := os.Rename(backup, path); err != nil {
				return result, fmt.Errorf("failed to restore %s: %w", backup, err)
			}
			result.Restored[hook] = backup
		}
	}
	return result, nil
}

// Status reports the state of each managed hook, in install order
func (m *Manager) Status() ([]HookStatus, error) {
	statuses := make([]HookStatus, 0, len(Names))
	for _, hook := range Names {
		path := filepath.Join(m.hooksDir, hook)
		st := HookStatus{Name: hook}
		if ok, _ := fileExists(path + BackupSuffix); ok {
			st.Backup = path + BackupSuffix
		}

		current, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			st.State = StateMissing
		case err != nil:
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		case !isManaged(current):
			st.State = StateUnmanaged
		default:
			want, err := m.Render(hook)
			if err != nil {
				return nil, err
			}
			st.State = StateCurrent
			if !bytes.Equal(current, want) {
				st.State = StateStale
			}
			if fi, err := os.Stat(path); err == nil && fi.Mode().Perm()&0o111 == 0 {
				st.State = StateStale
			}
		}
		statuses = append(statuses, st)
	}
	return statuses, nil
}

// NeedsUpdate reports the hooks that are missing, unmanaged, or stale
func (m *Manager) NeedsUpdate() ([]string, error) {
	statuses, err := m.Status()
	if err != nil {
		return nil, err
	}
	var out []string
	for _, st := range statuses {
		if st.State != StateCurrent {
			out = append(out, st.Name)
		}
	}
	sort.Strings(out)
	return out, nil
}
