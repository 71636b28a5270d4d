// Package config loads, normalizes, and validates showseed configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// JELLYFIN_API_KEY. The Config type centralizes every knob the daemon and CLI
// need: the working directory that holds torrent payloads and the job
// snapshot, engine rate caps and admission timing, and the show catalog used
// to resolve persisted episodes.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
