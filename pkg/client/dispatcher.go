package client

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	logpkg "github.com/opaline-ai/spyglass/pkg/log"
)

// dispatcher classifies decoded envelopes and fans them out to every
// subscriber's callbacks. Update events are not delivered immediately:
// each arrival resets a short timer and the accumulated burst is
// flushed as one call when the timer expires.
type dispatcher struct {
	c      *Client
	logger logpkg.Logger
	window time.Duration

	mu      sync.Mutex
	pending []json.RawMessage
	timer   *time.Timer
}

func newDispatcher(c *Client, logger logpkg.Logger, window time.Duration) *dispatcher {
	if window <= 0 {
		window = 200 * time.Millisecond
	}
	return &dispatcher{c: c, logger: logger, window: window}
}

func (d *dispatcher) dispatch(ev *envelope) {
	switch ev.Type {
	case typeLog:
		var rec LogRecord
		if err := json.Unmarshal(ev.Data, &rec); err != nil {
			d.logger.Warn("bad log payload", logpkg.Err(err))
			return
		}
		for _, cb := range d.c.subscribers() {
			if cb.OnLog != nil {
				cb.OnLog(rec)
			}
		}
	case typeLogBatch:
		var recs []LogRecord
		if err := json.Unmarshal(ev.Data, &recs); err != nil {
			d.logger.Warn("bad log batch payload", logpkg.Err(err))
			return
		}
		for _, cb := range d.c.subscribers() {
			if cb.OnLogBatch != nil {
				cb.OnLogBatch(recs)
			}
		}
	case typeTelemetry:
		var snap TelemetrySnapshot
		if err := json.Unmarshal(ev.Data, &snap); err != nil {
			d.logger.Warn("bad telemetry payload", logpkg.Err(err))
			return
		}
		for _, cb := range d.c.subscribers() {
			if cb.OnTelemetry != nil {
				cb.OnTelemetry(snap)
			}
		}
	case typeTrace:
		var entry TraceEntry
		if err := json.Unmarshal(ev.Data, &entry); err != nil {
			d.logger.Warn("bad trace payload", logpkg.Err(err))
			return
		}
		for _, cb := range d.c.subscribers() {
			if cb.OnTrace != nil {
				cb.OnTrace(entry)
			}
		}
	case typeUpdate:
		d.coalesce(ev.Data)
	case typeError:
		var info errorInfo
		if err := json.Unmarshal(ev.Data, &info); err != nil {
			d.logger.Warn("bad error payload", logpkg.Err(err))
			return
		}
		// A server-reported error is information, not a transport
		// failure; the connection stays up.
		for _, cb := range d.c.subscribers() {
			if cb.OnError != nil {
				cb.OnError(errors.New(info.Message))
			}
		}
	case typePong:
		d.c.pongReceived()
	default:
		d.logger.Debug("ignoring unknown event type", logpkg.Str("type", ev.Type))
	}
}

// coalesce buffers one update and re-arms the flush timer.
func (d *dispatcher) coalesce(data json.RawMessage) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pending = append(d.pending, data)
	if d.timer == nil {
		d.timer = time.AfterFunc(d.window, d.flush)
		return
	}
	d.timer.Reset(d.window)
}

// flush delivers the accumulated burst as a single notification.
func (d *dispatcher) flush() {
	d.mu.Lock()
	batch := d.pending
	d.pending = nil
	d.timer = nil
	d.mu.Unlock()
	if len(batch) == 0 {
		return
	}
	for _, cb := range d.c.subscribers() {
		if cb.OnUpdate != nil {
			cb.OnUpdate(batch)
		}
	}
}

// stop cancels a pending flush without delivering. Used on teardown so
// the timer never fires against a disposed connection.
func (d *dispatcher) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.pending = nil
}
