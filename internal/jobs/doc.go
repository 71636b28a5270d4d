// Package jobs holds the in-memory model of admitted downloads.
//
// A Job carries the refreshed engine state for one torrent together with the
// decision lock that guarantees a single post-processing pass and a single
// removal. The Registry owns the ordered key to Job mapping shared by
// admission, polling, and removal.
package jobs
