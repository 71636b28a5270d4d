// Package notifications delivers download lifecycle events via ntfy.
//
// The service publishes to the topic configured in config.toml and degrades
// to a no-op when no topic is set. Each event can be switched off
// individually.
package notifications
