// Package tui is kurt's terminal output: the Splog logger, colors and status
// glyphs, and confirmation prompts.
//
// Console output goes through Splog, which also writes a rotating debug log
// (lumberjack) so hook runs that print nothing can still be diagnosed.
package tui
