// Package merge merges a branch into another in git and dolt as one step.
//
// Dolt goes first because its merge can be abandoned cleanly: conflicts there
// are detected and aborted before git is touched. Once dolt is committed, a git
// conflict or failure resets dolt to its recorded pre-merge commit. The hashes
// needed for that reset are persisted to .git/kurt-merge-state.json until the
// merge finishes, so `kurt sync merge --abort` can retry a failed rollback
// from a fresh process.
package merge
