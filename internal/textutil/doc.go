// Package textutil turns torrent and show names into library-safe folder
// names.
package textutil
