// Package daemonrun assembles the production object graph and runs it until
// the process is signaled.
package daemonrun
