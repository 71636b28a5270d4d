// Package engine defines the narrow boundary between the download manager and
// the peer-to-peer protocol engine, plus the process-wide Holder that owns the
// single engine instance.
//
// Nothing above this package knows which BitTorrent implementation runs
// underneath. The native subpackage adapts github.com/anacrolix/torrent and
// enginetest provides a scriptable fake for tests.
package engine
