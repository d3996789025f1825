// Package git provides the Git side of kurt's dual-VCS operations.
//
// It wraps git command execution behind a Client bound to one work tree:
//   - Branch management (create, delete, checkout, list)
//   - HEAD classification (branch, detached, unborn)
//   - Merges, merge previews and merge state
//   - Remote operations (push, pull)
//
// Every call carries KURT_SKIP_HOOKS=1 so kurt's own git invocations never
// trigger the hooks kurt installs.
package git
