// Package jellyfin places imported episodes into the library tree and asks
// Jellyfin to rescan.
//
// SimpleService copies files so the torrent payload stays available for
// seeding; the HTTP-backed service adds a library refresh when an API key is
// configured.
package jellyfin
