// Package daemonctl starts, stops, and inspects the daemon process on behalf
// of the CLI.
package daemonctl
