// Package remote pushes and pulls the current branch against the git and dolt
// remotes. Dolt always goes first. A failed dolt pull skips git; a push
// attempts both and reports each side separately.
package remote
