package hooks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	kurterrors "kurt.dev/kurt/internal/errors"
)

const (
	// LockFileName lives in the git directory
	LockFileName = "kurt-hook.lock"
	// DefaultStaleAfter is the age past which a lock is considered abandoned
	DefaultStaleAfter = 30 * time.Second
	// DefaultLockWait bounds how long Acquire waits for a live holder
	DefaultLockWait = 10 * time.Second
)

// LockInfo is the content of the lock file
type LockInfo struct {
	PID       int       `json:"pid"`
	CreatedAt time.Time `json:"created_at"`
	Token     string    `json:"token"`
}

// LockStatus is what Inspect found on disk
type LockStatus struct {
	Held  bool
	Info  LockInfo
	Age   time.Duration
	Stale bool
}

// Lock is a file lock shared by hooks and kurt commands. Only O_EXCL creation
// takes it; an abandoned lock is never taken over, only cleared by repair.
type Lock struct {
	path       string
	staleAfter time.Duration
	wait       time.Duration
	now        func() time.Time
}

// NewLock creates the lock for the repository whose git directory is gitDir
func NewLock(gitDir string, staleAfter, wait time.Duration) *Lock {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	if wait < 0 {
		wait = 0
	}
	return &Lock{path: filepath.Join(gitDir, LockFileName), staleAfter: staleAfter, wait: wait, now: time.Now}
}

// Path returns the lock file path
func (l *Lock) Path() string {
	return l.path
}

// StaleAfter returns the staleness threshold
func (l *Lock) StaleAfter() time.Duration {
	return l.staleAfter
}

// Handle is a held lock
type Handle struct {
	lock  *Lock
	token string
}

// Token identifies this holder in the lock file
func (h *Handle) Token() string {
	return h.token
}

// TryAcquire makes a single attempt. It returns ErrLockHeld for a live holder
// and ErrStaleLock for an abandoned one.
func (l *Lock) TryAcquire() (*Handle, error) {
	f, err := os.OpenFile(l.path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("failed to create %s: %w", l.path, err)
		}
		status, inspectErr := l.Inspect()
		if inspectErr != nil {
			return nil, inspectErr
		}
		if !status.Held {
			// released between our create and inspect
			return nil, kurterrors.ErrLockHeld
		}
		if status.Stale {
			return nil, fmt.Errorf("%w: %s is %s old (pid %d); run 'kurt repair' to clear it",
				kurterrors.ErrStaleLock, l.path, status.Age.Round(time.Second), status.Info.PID)
		}
		return nil, fmt.Errorf("%w by pid %d for %s", kurterrors.ErrLockHeld, status.Info.PID, status.Age.Round(time.Millisecond))
	}

	info := LockInfo{PID: os.Getpid(), CreatedAt: l.now().UTC(), Token: uuid.NewString()}
	err = json.NewEncoder(f).Encode(info)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(l.path)
		return nil, fmt.Errorf("failed to write %s: %w", l.path, err)
	}
	return &Handle{lock: l, token: info.Token}, nil
}

// Acquire waits up to the configured wait for a live holder to release.
// A stale lock fails immediately.
func (l *Lock) Acquire(ctx context.Context) (*Handle, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 50 * time.Millisecond
	bo.MaxInterval = 500 * time.Millisecond
	bo.MaxElapsedTime = l.wait
	if l.wait == 0 {
		return l.TryAcquire()
	}

	var handle *Handle
	err := backoff.Retry(func() error {
		h, err := l.TryAcquire()
		switch {
		case err == nil:
			handle = h
			return nil
		case errors.Is(err, kurterrors.ErrStaleLock):
			return backoff.Permanent(err)
		case errors.Is(err, kurterrors.ErrLockHeld):
			return err
		default:
			return backoff.Permanent(err)
		}
	}, backoff.WithContext(bo, ctx))
	if err != nil {
		return nil, err
	}
	return handle, nil
}

// Release removes the lock file if it still carries this handle's token
func (h *Handle) Release() error {
	data, err := os.ReadFile(h.lock.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read %s: %w", h.lock.path, err)
	}
	var info LockInfo
	if err := json.Unmarshal(data, &info); err != nil || info.Token != h.token {
		return fmt.Errorf("%s is no longer ours; leaving it in place", h.lock.path)
	}
	if err := os.Remove(h.lock.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove %s: %w", h.lock.path, err)
	}
	return nil
}

// WithLock runs fn while holding the lock
func (l *Lock) WithLock(ctx context.Context, fn func() error) (err error) {
	handle, err := l.Acquire(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if relErr := handle.Release(); relErr != nil && err == nil {
			err = relErr
		}
	}()
	return fn()
}

// Inspect reports whether the lock is held and how old it is. A lock file
// that cannot be parsed is aged by its modification time.
func (l *Lock) Inspect() (LockStatus, error) {
	var status LockStatus
	fi, err := os.Stat(l.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return status, nil
		}
		return status, fmt.Errorf("failed to stat %s: %w", l.path, err)
	}
	status.Held = true
	created := fi.ModTime()

	if data, err := os.ReadFile(l.path); err == nil {
		var info LockInfo
		if json.Unmarshal(data, &info) == nil && !info.CreatedAt.IsZero() {
			status.Info = info
			created = info.CreatedAt
		}
	}
	status.Age = l.now().Sub(created)
	if status.Age < 0 {
		status.Age = 0
	}
	status.Stale = status.Age > l.staleAfter
	return status, nil
}

// ClearStale removes the lock only if it is stale. It reports whether a
// lock was removed.
func (l *Lock) ClearStale() (bool, error) {
	status, err := l.Inspect()
	if err != nil {
		return false, err
	}
	if !status.Held || !status.Stale {
		return false, nil
	}
	if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("failed to remove stale lock: %w", err)
	}
	return true, nil
}
