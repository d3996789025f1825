// Package doctor checks that git, dolt, the hooks, the sql-server and the
// hook lock are in a state kurt can work with, and repairs what is safe to
// repair. Checks only read; Repair only applies idempotent fixes.
package doctor
