// Package client contains Cobra CLI commands for talking to a running
// spyglass server: tailing the live stream, polling the REST fallback,
// and submitting events as an external producer.
package client
