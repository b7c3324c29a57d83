package telemetry

import "sync/atomic"

// Counters is the shared set of process-wide counters. Request-handling
// code increments them; the sampler swaps the windowed ones out and
// resets them in a single atomic step each, so no increment is ever
// double-counted or lost across a window boundary.
type Counters struct {
	requests     atomic.Uint64
	errors       atomic.Uint64
	latencySumMs atomic.Uint64
	inflight     atomic.Int64
}

// Window is one drained sampling window plus the instantaneous
// in-flight gauge.
type Window struct {
	Requests     uint64
	Errors       uint64
	LatencySumMs uint64
	Inflight     int64
}

// NewCounters returns a zeroed counter set.
func NewCounters() *Counters { return &Counters{} }

// RequestServed records one completed request and its latency.
func (c *Counters) RequestServed(latencyMs uint64) {
	c.requests.Add(1)
	c.latencySumMs.Add(latencyMs)
}

// RequestFailed records one failed request and its latency.
func (c *Counters) RequestFailed(latencyMs uint64) {
	c.requests.Add(1)
	c.errors.Add(1)
	c.latencySumMs.Add(latencyMs)
}

// TaskStarted bumps the in-flight gauge.
func (c *Counters) TaskStarted() { c.inflight.Add(1) }

// TaskDone releases one in-flight slot.
func (c *Counters) TaskDone() { c.inflight.Add(-1) }

// Inflight returns the current in-flight gauge.
func (c *Counters) Inflight() int64 { return c.inflight.Load() }

// Drain swaps every windowed counter to zero and returns what
// accumulated since the previous drain. The in-flight gauge is a level,
// not a window, and is read without resetting.
func (c *Counters) Drain() Window {
	return Window{
		Requests:     c.requests.Swap(0),
		Errors:       c.errors.Swap(0),
		LatencySumMs: c.latencySumMs.Swap(0),
		Inflight:     c.inflight.Load(),
	}
}
