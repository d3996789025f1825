package dolt

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gofrs/flock"
)

// ErrServerNotLocal is returned when asked to start a server on another host
var ErrServerNotLocal = errors.New("dolt sql-server is remote and will not be started by kurt")

// ErrServerUnreachable is returned when the server never accepted connections
var ErrServerUnreachable = errors.New("dolt sql-server is not reachable")

const (
	serverLockFile = "kurt-sql-server.lock"
	serverPIDFile  = "kurt-sql-server.pid"
	serverLogFile  = "kurt-sql-server.log"
)

// Server manages the per-repository dolt sql-server. Runtime files live in
// stateDir (the .git directory) so .dolt/ stays owned by dolt.
type Server struct {
	cfg      ServerConfig
	dir      string
	stateDir string

	dialTimeout time.Duration
	spawn       func(ctx context.Context) (int, error)
}

// NewServer creates a Server for the database in dir
func NewServer(cfg ServerConfig, dir, stateDir string) *Server {
	s := &Server{cfg: cfg, dir: dir, stateDir: stateDir, dialTimeout: time.Second}
	s.spawn = s.spawnProcess
	return s
}

// Config returns the server address configuration
func (s *Server) Config() ServerConfig {
	return s.cfg
}

// LogPath is where a server started by kurt writes its output
func (s *Server) LogPath() string {
	return filepath.Join(s.stateDir, serverLogFile)
}

// Reachable reports whether a TCP connection to the server succeeds
func (s *Server) Reachable(ctx context.Context) bool {
	d := net.Dialer{Timeout: s.dialTimeout}
	conn, err := d.DialContext(ctx, "tcp", s.cfg.Addr())
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// WaitReachable polls with exponential backoff until the server accepts
// connections or cfg.StartTimeout elapses
func (s *Server) WaitReachable(ctx context.Context) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 100 * time.Millisecond
	bo.MaxInterval = time.Second
	bo.MaxElapsedTime = orDefault(s.cfg.StartTimeout, 15*time.Second)

	err := backoff.Retry(func() error {
		if s.Reachable(ctx) {
			return nil
		}
		return ErrServerUnreachable
	}, backoff.WithContext(bo, ctx))
	if err != nil {
		return fmt.Errorf("%w at %s after %s", ErrServerUnreachable, s.cfg.Addr(), bo.MaxElapsedTime)
	}
	return nil
}

// Ensure makes the server reachable, starting it when it is local
func (s *Server) Ensure(ctx context.Context) error {
	if s.Reachable(ctx) {
		return nil
	}
	if !s.cfg.IsLocal() {
		return fmt.Errorf("%w at %s", ErrServerUnreachable, s.cfg.Addr())
	}
	return s.Start(ctx)
}

// Start launches dolt sql-server for the repository and waits for it to
// accept connections. Concurrent starts are serialized with a file lock; the
// loser waits for the winner's server instead of spawning a second one.
func (s *Server) Start(ctx context.Context) error {
	if !s.cfg.IsLocal() {
		return fmt.Errorf("%w (%s)", ErrServerNotLocal, s.cfg.Addr())
	}
	if s.Reachable(ctx) {
		return nil
	}

	if err := os.MkdirAll(s.stateDir, 0o755); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}
	fileLock := flock.New(filepath.Join(s.stateDir, serverLockFile))
	locked, err := fileLock.TryLock()
	if err != nil {
		return fmt.Errorf("acquiring sql-server start lock: %w", err)
	}
	if !locked {
		return s.WaitReachable(ctx)
	}
	defer func() { _ = fileLock.Unlock() }()

	if s.Reachable(ctx) {
		return nil
	}

	pid, err := s.spawn(ctx)
	if err != nil {
		return err
	}
	if pid > 0 {
		if err := os.WriteFile(filepath.Join(s.stateDir, serverPIDFile), []byte(strconv.Itoa(pid)), 0o600); err != nil {
			return fmt.Errorf("writing sql-server pid file: %w", err)
		}
	}
	return s.WaitReachable(ctx)
}

func (s *Server) spawnProcess(_ context.Context) (int, error) {
	logFile, err := os.OpenFile(s.LogPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return 0, fmt.Errorf("opening sql-server log: %w", err)
	}
	defer func() { _ = logFile.Close() }()

	host := s.cfg.Host
	if host == "" {
		host = "127.0.0.1"
	}
	// not CommandContext: the server must outlive this invocation
	cmd := exec.Command("dolt", "sql-server", "--host", host, "--port", strconv.Itoa(s.cfg.Port))
	cmd.Dir = s.dir
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("starting dolt sql-server: %w", err)
	}
	pid := cmd.Process.Pid
	_ = cmd.Process.Release()
	return pid, nil
}

// PID returns the pid of a server kurt started, if it recorded one
func (s *Server) PID() (int, bool) {
	data, err := os.ReadFile(filepath.Join(s.stateDir, serverPIDFile))
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, false
	}
	return pid, true
}
