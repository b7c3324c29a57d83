// Package hub implements the server-side diagnostics fan-out: a
// connection registry, a broadcast path with per-connection bounded
// buffers and drop-oldest overflow, one sender goroutine per
// connection, and a heartbeat supervisor that evicts stale observers.
//
// The registry membership map is the only state shared across tasks.
// Broadcast copies the membership under a short-held lock and enqueues
// outside it, so a stalled connection can never block registration,
// unregistration, or delivery to other connections.
package hub
