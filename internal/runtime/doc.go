// Package runtime wires kurt's components for one invocation.
//
// New probes the environment once (are git and dolt installed, is this a git
// work tree, is there a dolt database), loads the configuration, and builds
// the clients. Commands then ask the Context for the coordinator they need.
package runtime
