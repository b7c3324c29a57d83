// Package telemetry maintains process-wide windowed counters and a
// background sampler that turns them into periodic telemetry events.
//
// Request-handling code increments the counters; the sampler consumes
// and resets them atomically on its own timer, derives rates and a
// success ratio over the window, and submits the snapshot to the hub.
package telemetry
