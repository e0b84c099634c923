// Package notifications delivers pipeline events via ntfy.
//
// The default implementation publishes to the topic configured in config.toml
// and degrades to a no-op when notifications are disabled. Events cover lead
// changes between consecutive commentary rows, pipeline errors, and a manual
// test message.
package notifications
