// Package process runs subprocesses in their own process group.
//
// Run executes a command to completion. Start launches a long-running
// server and returns a handle whose Stop sends SIGTERM to the whole group
// and escalates to SIGKILL after the grace period.
package process
