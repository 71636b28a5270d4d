// Package preflight provides readiness checks for the filesystem paths and
// external services showseed depends on.
//
// The daemon runs RunAll at startup and logs failures as warnings; the CLI
// "showseed status" command renders the same results. Each check is gated by
// its config toggle, so disabled features are skipped.
package preflight
