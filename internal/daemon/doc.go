// Package daemon coordinates the long-running OnTheFly process.
//
// It wires configuration, the commentary store, the generator, and the
// analytics service into a single lifecycle with flock-based locking to
// prevent multiple instances. The daemon serves the HTTP API and dashboard
// (api_server.go, handlers.go, dashboard.go) and, when capture.source is set,
// runs the server-side capture loop alongside it.
//
// Keep orchestration logic here: frame decoding, prompting, and persistence
// live in their respective packages while the daemon focuses on startup,
// shutdown, and request routing.
package daemon
