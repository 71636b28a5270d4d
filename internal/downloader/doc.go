// Package downloader runs the torrent download job lifecycle.
//
// Admission adds a descriptor to the engine and blocks until the torrent
// reports a started phase or the start timeout expires. Poll is called once
// per scheduler tick: it drains engine alerts, refreshes every job, hands
// completed media to the post-processor exactly once, and removes jobs that
// have seeded to the configured ratio. A requested shutdown is honoured at the
// end of the next poll by writing resume data and a snapshot before the
// engine is discarded; the following poll reloads that snapshot.
package downloader
