package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"kurt.dev/kurt/internal/dolt"
)

// FileName is the repository config file, stored in the git directory
const FileName = "kurt_config.json"

// Config is kurt's repository configuration
type Config struct {
	Dolt     DoltConfig     `mapstructure:"dolt"`
	Git      GitConfig      `mapstructure:"git"`
	SQL      SQLConfig      `mapstructure:"sql"`
	Timeouts TimeoutsConfig `mapstructure:"timeouts"`
	Hooks    HooksConfig    `mapstructure:"hooks"`
	Lock     LockConfig     `mapstructure:"lock"`
}

// DoltConfig locates the dolt database
type DoltConfig struct {
	// Dir is relative to the repository root; empty means the root itself
	Dir    string `mapstructure:"dir"`
	Remote string `mapstructure:"remote"`
}

// GitConfig names the git remote
type GitConfig struct {
	Remote string `mapstructure:"remote"`
}

// SQLConfig addresses the dolt sql-server
type SQLConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	// Database defaults to the name dolt derives from the database directory
	Database string `mapstructure:"database"`
}

// TimeoutsConfig bounds every external call
type TimeoutsConfig struct {
	Command     time.Duration `mapstructure:"command"`
	Network     time.Duration `mapstructure:"network"`
	SQL         time.Duration `mapstructure:"sql"`
	ServerStart time.Duration `mapstructure:"server_start"`
}

// HooksConfig controls the installed hook scripts
type HooksConfig struct {
	// Command is what the hook scripts exec
	Command string `mapstructure:"command"`
}

// LockConfig tunes the hook lock
type LockConfig struct {
	StaleAfter time.Duration `mapstructure:"stale_after"`
	Wait       time.Duration `mapstructure:"wait"`
}

var defaults = map[string]any{
	"dolt.dir":              "",
	"dolt.remote":           "origin",
	"git.remote":            "origin",
	"sql.host":              "127.0.0.1",
	"sql.port":              dolt.DefaultSQLPort,
	"sql.user":              "root",
	"sql.password":          "",
	"sql.database":          "",
	"timeouts.command":      "30s",
	"timeouts.network":      "5m",
	"timeouts.sql":          "10s",
	"timeouts.server_start": "15s",
	"hooks.command":         "kurt",
	"lock.stale_after":      "30s",
	"lock.wait":             "10s",
}

// Keys returns every configuration key
func Keys() []string {
	keys := make([]string, 0, len(defaults))
	for k := range defaults {
		keys = append(keys, k)
	}
	return keys
}

func newViper() *viper.Viper {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix("KURT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetConfigType("json")
	return v
}

// Path returns the config file location for a git directory
func Path(gitDir string) string {
	return filepath.Join(gitDir, FileName)
}

// Load reads the configuration for the repository whose git directory is
// gitDir. A missing config file is not an error.
func Load(gitDir string) (*Config, error) {
	v := newViper()
	if gitDir != "" {
		path := Path(gitDir)
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to parse %s: %w", path, err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	}
	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("invalid kurt configuration: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.SQL.Port <= 0 || c.SQL.Port > 65535 {
		return fmt.Errorf("invalid kurt configuration: sql.port %d is out of range", c.SQL.Port)
	}
	if c.Hooks.Command == "" {
		return fmt.Errorf("invalid kurt configuration: hooks.command is empty")
	}
	for key, d := range map[string]time.Duration{
		"timeouts.command":      c.Timeouts.Command,
		"timeouts.network":      c.Timeouts.Network,
		"timeouts.sql":          c.Timeouts.SQL,
		"timeouts.server_start": c.Timeouts.ServerStart,
		"lock.stale_after":      c.Lock.StaleAfter,
	} {
		if d <= 0 {
			return fmt.Errorf("invalid kurt configuration: %s must be positive", key)
		}
	}
	return nil
}

// DoltDir resolves the dolt database directory against the repository root
func (c *Config) DoltDir(repoRoot string) string {
	if c.Dolt.Dir == "" {
		return repoRoot
	}
	if filepath.IsAbs(c.Dolt.Dir) {
		return c.Dolt.Dir
	}
	return filepath.Join(repoRoot, c.Dolt.Dir)
}

// ServerConfig builds the sql-server address for the database in doltDir
func (c *Config) ServerConfig(doltDir string) dolt.ServerConfig {
	database := c.SQL.Database
	if database == "" {
		database = dolt.DatabaseNameForDir(doltDir)
	}
	return dolt.ServerConfig{
		Host:           c.SQL.Host,
		Port:           c.SQL.Port,
		User:           c.SQL.User,
		Password:       c.SQL.Password,
		Database:       database,
		ConnectTimeout: c.Timeouts.SQL,
		QueryTimeout:   c.Timeouts.SQL,
		StartTimeout:   c.Timeouts.ServerStart,
	}
}

// WriteDefault writes a config file holding the defaults, unless one exists.
// It reports whether a file was written.
func WriteDefault(gitDir string) (bool, error) {
	path := Path(gitDir)
	if _, err := os.Stat(path); err == nil {
		return false, nil
	}
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	if err := v.WriteConfigAs(path); err != nil {
		return false, fmt.Errorf("failed to write %s: %w", path, err)
	}
	return true, nil
}
