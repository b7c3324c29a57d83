// Package log provides structured logging for Spyglass components.
//
// The Logger interface exposes a Field-based API (Str, Int, Err, ...)
// with pluggable formatters (text, JSON) and outputs. Construct loggers
// explicitly and pass them via dependency injection; there is no global
// default logger.
package log
