package hub

import (
	"github.com/opaline-ai/spyglass/internal/event"
	logpkg "github.com/opaline-ai/spyglass/pkg/log"
)

// EventOutput is a log Output that republishes entries as "log" events
// on the hub, making the process's own logging the in-process log
// producer for the stream.
//
// Entries emitted by the hub itself are skipped: a drop warning that
// re-entered the hub could trigger further drops and further warnings.
type EventOutput struct {
	hub *Hub
}

// NewEventOutput returns an Output feeding h.
func NewEventOutput(h *Hub) *EventOutput { return &EventOutput{hub: h} }

// Write converts the entry to a log event and submits it.
func (o *EventOutput) Write(entry *logpkg.Entry, _ []byte) error {
	if comp, _ := entry.Fields["component"].(string); comp == "hub" {
		return nil
	}
	rec := event.LogRecord{
		Level:   entry.Level.String(),
		Message: entry.Message,
	}
	if len(entry.Fields) > 0 {
		rec.Fields = map[string]interface{}{}
		for k, v := range entry.Fields {
			if k == "component" {
				rec.Component, _ = v.(string)
				continue
			}
			rec.Fields[k] = v
		}
	}
	o.hub.Submit(event.NewLog(rec))
	return nil
}

// Close is a no-op; the hub owns its own shutdown.
func (o *EventOutput) Close() error { return nil }
