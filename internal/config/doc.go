// Package config loads, normalizes, and validates OnTheFly configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// OPENAI_API_KEY and DATABASE_URL. The Config type centralizes every knob the
// server and CLI need: the vision model vendor, embedding settings, the
// commentary store, the server-side frame capture loop, and the dashboard.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, provider defaults, and clear validation errors.
package config
