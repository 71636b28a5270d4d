// Package daemon coordinates the long-running showseed process.
//
// It wires configuration, the download manager, preflight checks, and the
// optional HTTP status API into a single lifecycle with flock-based locking
// to prevent multiple instances. One goroutine drives the download manager's
// poll loop; Stop asks the manager to persist its jobs and runs one final
// poll before the lock is released.
//
// Keep orchestration logic here: job semantics live in internal/downloader
// while the daemon focuses on startup, shutdown, and high level coordination.
package daemon
