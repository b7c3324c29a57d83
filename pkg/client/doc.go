// Package client is the subscriber SDK for the diagnostics stream. It
// maintains a single shared websocket behind a reference-counted
// Subscribe API, reconnects with capped exponential backoff when the
// transport drops, and dispatches decoded events to per-subscriber
// callbacks. Incremental update events are coalesced over a short
// window before delivery.
package client
