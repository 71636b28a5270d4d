// Package ipc exposes the daemon over JSON-RPC Unix sockets and ships the
// matching client used by the CLI.
//
// It owns socket lifecycle management and the request/response DTOs. Job
// admission blocks for up to the configured start timeout, so the client
// leaves call deadlines to its caller.
package ipc
