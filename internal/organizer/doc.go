// Package organizer imports completed episode files into the TV library.
//
// Files are copied, never moved, because the torrent keeps seeding from the
// data directory. Jobs linked to a single show land in
// "<tv>/<Show>/Season NN"; anything else goes under a folder named after the
// release. A Jellyfin refresh follows each import when credentials are set.
package organizer
