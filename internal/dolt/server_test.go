package dolt

import (
	"context"
	"net"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	return port
}

func TestServerEnsure(t *testing.T) {
	t.Run("reachable server is left alone", func(t *testing.T) {
		l, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		defer l.Close()

		cfg := ServerConfig{Host: "127.0.0.1", Port: l.Addr().(*net.TCPAddr).Port}
		s := NewServer(cfg, t.TempDir(), t.TempDir())
		var spawned atomic.Int32
		s.spawn = func(context.Context) (int, error) {
			spawned.Add(1)
			return 0, nil
		}

		require.NoError(t, s.Ensure(context.Background()))
		require.Zero(t, spawned.Load())
	})

	t.Run("local server is started and awaited", func(t *testing.T) {
		port := freePort(t)
		stateDir := t.TempDir()
		s := NewServer(ServerConfig{Host: "127.0.0.1", Port: port, StartTimeout: 5 * time.Second}, t.TempDir(), stateDir)

		listeners := make(chan net.Listener, 1)
		s.spawn = func(context.Context) (int, error) {
			go func() {
				time.Sleep(200 * time.Millisecond)
				l, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
				if err == nil {
					listeners <- l
				}
			}()
			return 4242, nil
		}

		require.NoError(t, s.Ensure(context.Background()))
		l := <-listeners
		defer l.Close()

		pid, ok := s.PID()
		require.True(t, ok)
		require.Equal(t, 4242, pid)
	})

	t.Run("servers kurt did not start have no pid", func(t *testing.T) {
		s := NewServer(ServerConfig{Host: "127.0.0.1", Port: 1}, t.TempDir(), t.TempDir())
		_, ok := s.PID()
		require.False(t, ok)
	})

	t.Run("start gives up after the bounded wait", func(t *testing.T) {
		s := NewServer(ServerConfig{Host: "127.0.0.1", Port: freePort(t), StartTimeout: 300 * time.Millisecond}, t.TempDir(), t.TempDir())
		s.spawn = func(context.Context) (int, error) { return 0, nil }

		err := s.Start(context.Background())
		require.ErrorIs(t, err, ErrServerUnreachable)
	})

	t.Run("remote servers are never started", func(t *testing.T) {
		s := NewServer(ServerConfig{Host: "192.0.2.10", Port: 3306}, t.TempDir(), t.TempDir())
		s.dialTimeout = 50 * time.Millisecond
		s.spawn = func(context.Context) (int, error) {
			t.Fatal("spawn must not be called for a remote server")
			return 0, nil
		}

		require.ErrorIs(t, s.Start(context.Background()), ErrServerNotLocal)
		require.ErrorIs(t, s.Ensure(context.Background()), ErrServerUnreachable)
	})
}
