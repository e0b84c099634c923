// Package main hosts the onthefly CLI entrypoint and command graph.
//
// The Cobra command tree covers running the commentary server (`serve`,
// `stop`, `status`), one-off generation against a still image or a recorded
// video (`generate`, `replay`), store maintenance (`commentaries`), the
// analytics summary, and configuration scaffolding. Configuration is resolved
// once per invocation by commandContext so subcommands only deal with output.
//
// Keep this package thin: behaviour belongs in the internal packages and is
// surfaced here through flags and rendering.
package main
