// Package config loads kurt's repository configuration.
//
// Values come from, in increasing precedence:
//   - built-in defaults
//   - .git/kurt_config.json
//   - KURT_* environment variables (dots become underscores, so sql.port is KURT_SQL_PORT)
//
// The loaded Config is never mutated afterwards; it is passed by value or
// pointer into the components that need it.
package config
