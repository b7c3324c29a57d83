package event

import (
	"encoding/json"
	"fmt"
	"time"
)

// Type discriminates the event union on the wire.
type Type string

// Wire event types.
const (
	TypeLog       Type = "log"
	TypeLogBatch  Type = "logs"
	TypeTelemetry Type = "telemetry"
	TypeTrace     Type = "trace_entry"
	TypeUpdate    Type = "update"
	TypeError     Type = "error"
	TypePing      Type = "ping"
	TypePong      Type = "pong"
)

// Known reports whether t is a type this layer understands.
func (t Type) Known() bool {
	switch t {
	case TypeLog, TypeLogBatch, TypeTelemetry, TypeTrace, TypeUpdate, TypeError, TypePing, TypePong:
		return true
	}
	return false
}

// Event is the wire envelope: {"type": ..., "data": ..., "timestamp": ...}.
// Timestamp marshals as RFC 3339. Data stays raw so the hub never pays for
// payload decoding it does not need.
type Event struct {
	ID        string          `json:"id,omitempty"`
	Type      Type            `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// LogRecord is the payload of a "log" event.
type LogRecord struct {
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Component string                 `json:"component,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// TraceEntry is one reasoning-trace step from the cognitive core.
type TraceEntry struct {
	Step    int    `json:"step"`
	Phase   string `json:"phase,omitempty"`
	Content string `json:"content"`
}

// ErrorInfo is the payload of an "error" event.
type ErrorInfo struct {
	Message string `json:"message"`
	Source  string `json:"source,omitempty"`
}

// New builds an event of the given type around an already-encoded payload.
func New(t Type, data json.RawMessage) *Event {
	return &Event{Type: t, Data: data, Timestamp: time.Now().UTC()}
}

// NewLog builds a "log" event.
func NewLog(rec LogRecord) *Event { return mustEvent(TypeLog, rec) }

// NewLogBatch builds a "logs" event carrying multiple records.
func NewLogBatch(recs []LogRecord) *Event { return mustEvent(TypeLogBatch, recs) }

// NewTelemetry builds a "telemetry" event from an encodable snapshot.
func NewTelemetry(snapshot interface{}) *Event { return mustEvent(TypeTelemetry, snapshot) }

// NewTrace builds a "trace_entry" event.
func NewTrace(entry TraceEntry) *Event { return mustEvent(TypeTrace, entry) }

// NewError builds an "error" event.
func NewError(info ErrorInfo) *Event { return mustEvent(TypeError, info) }

// NewPong builds a "pong" event.
func NewPong() *Event { return New(TypePong, nil) }

func mustEvent(t Type, payload interface{}) *Event {
	b, err := json.Marshal(payload)
	if err != nil {
		// Payload types above are all marshalable; reaching this means a
		// caller passed something exotic. Degrade to an error event.
		b, _ = json.Marshal(ErrorInfo{Message: fmt.Sprintf("unencodable %s payload: %v", t, err)})
		return New(TypeError, b)
	}
	return New(t, b)
}

// Decode parses a wire envelope and validates its type tag.
func Decode(raw []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	if ev.Type == "" {
		return nil, fmt.Errorf("decode event: missing type")
	}
	if !ev.Type.Known() {
		return nil, fmt.Errorf("decode event: unknown type %q", ev.Type)
	}
	return &ev, nil
}

// Encode renders the wire envelope.
func (e *Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}
