// Package logs reads the daemon log file for `showseed logs`.
//
// Tail returns the last N lines or everything after a byte offset, optionally
// narrowed to lines that mention one job key, and can wait briefly for new
// lines so the CLI can follow the file over IPC.
package logs
