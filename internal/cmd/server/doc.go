// Package serverrun assembles and runs the diagnostics server: hub,
// heartbeat supervisor, telemetry sampler, HTTP surface, and config
// reload watcher.
package serverrun
