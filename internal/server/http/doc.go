// Package httpserver exposes the diagnostics surface over HTTP: the
// websocket stream, the polled REST fallback for logs and metrics, an
// event submission endpoint for external producers, and the Prometheus
// scrape endpoint.
package httpserver
