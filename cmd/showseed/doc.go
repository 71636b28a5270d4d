// Package main hosts the showseed CLI entrypoint and command graph.
//
// Commands translate terminal invocations into IPC calls against the daemon:
// admitting torrents, listing and removing jobs, adjusting rate caps, and
// tailing logs. The hidden daemon command runs the daemon itself in the
// foreground; start and stop manage a detached one.
package main
