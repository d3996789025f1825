// Package hooks installs kurt's git hooks and runs them.
//
// The installed scripts are thin shims: they chain to any hook the user had
// before kurt, then exec `kurt hook <name>`, which lands in Dispatcher.Run.
// Every dispatch that writes to dolt does so under the repository's hook lock.
package hooks
