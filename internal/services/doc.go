// Package services defines shared utilities consumed by the download manager
// and its external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp job keys and correlation identifiers for
//     logging.
//   - Structured error markers plus the Wrap helper so callers can classify
//     failures with errors.Is.
//
// Integrations such as the Jellyfin library service live in subpackages.
package services
