// Package subprocess manages the debug adapter process lifecycle: spawning
// with piped stdio, draining stderr to a diagnostics sink, and reaping the
// process on teardown.
package subprocess
