// Package branchsync keeps the branch topology of the git work tree and the
// dolt database identical.
//
// Every mutating operation touches dolt first and git second, and undoes the
// dolt side when git refuses, so a failure never leaves the two systems on
// different branches. Deletion is the exception: a half-finished delete is
// reported as a partial failure rather than re-created.
package branchsync
