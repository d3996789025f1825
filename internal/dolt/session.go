package dolt

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-sql-driver/mysql"
)

// DefaultSQLPort is where kurt expects the per-repository sql-server
const DefaultSQLPort = 3307

// ServerConfig addresses a dolt sql-server
type ServerConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string

	ConnectTimeout time.Duration
	QueryTimeout   time.Duration
	// StartTimeout bounds waiting for a freshly started server
	StartTimeout time.Duration
}

// Addr returns host:port
func (c ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// IsLocal reports whether the server runs on this machine and may be auto-started
func (c ServerConfig) IsLocal() bool {
	switch strings.ToLower(c.Host) {
	case "", "localhost", "127.0.0.1", "::1":
		return true
	}
	return false
}

// DSN builds the go-sql-driver/mysql connection string
func (c ServerConfig) DSN() string {
	cfg := mysql.NewConfig()
	cfg.User = c.User
	cfg.Passwd = c.Password
	cfg.Net = "tcp"
	cfg.Addr = c.Addr()
	cfg.DBName = c.Database
	cfg.ParseTime = true
	cfg.Timeout = orDefault(c.ConnectTimeout, 5*time.Second)
	cfg.ReadTimeout = orDefault(c.QueryTimeout, 10*time.Second)
	cfg.WriteTimeout = orDefault(c.QueryTimeout, 10*time.Second)
	return cfg.FormatDSN()
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

// DatabaseNameForDir mirrors how dolt sql-server names the database it
// serves from a directory.
func DatabaseNameForDir(dir string) string {
	name := filepath.Base(dir)
	name = strings.NewReplacer("-", "_", " ", "_").Replace(name)
	return name
}

// Row is one result row keyed by column name. Text columns arrive as strings.
type Row map[string]any

// Session runs SQL against the server
type Session interface {
	Query(ctx context.Context, query string, args ...any) ([]Row, error)
	Close() error
}

type sqlSession struct {
	db *sql.DB
}

// OpenSession connects to the server, retrying the initial ping with
// exponential backoff for up to cfg.ConnectTimeout.
func OpenSession(ctx context.Context, cfg ServerConfig) (Session, error) {
	db, err := sql.Open("mysql", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open dolt sql session: %w", err)
	}
	db.SetMaxOpenConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 100 * time.Millisecond
	bo.MaxElapsedTime = orDefault(cfg.ConnectTimeout, 5*time.Second)
	err = backoff.Retry(func() error {
		pingErr := db.PingContext(ctx)
		var mysqlErr *mysql.MySQLError
		if pingErr != nil && errors.As(pingErr, &mysqlErr) {
			// the server answered; retrying will not change its mind
			return backoff.Permanent(pingErr)
		}
		return pingErr
	}, backoff.WithContext(bo, ctx))
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("dolt sql-server at %s is not accepting connections: %w", cfg.Addr(), err)
	}
	return &sqlSession{db: db}, nil
}

func (s *sqlSession) Query(ctx context.Context, query string, args ...any) ([]Row, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []Row
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(Row, len(cols))
		for i, col := range cols {
			if b, ok := vals[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = vals[i]
			}
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (s *sqlSession) Close() error {
	return s.db.Close()
}
