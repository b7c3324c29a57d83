package client

import (
	"encoding/json"
	"fmt"
	"time"
)

// Wire event types. These mirror the server envelope so external
// consumers of this package never depend on server internals.
const (
	typeLog       = "log"
	typeLogBatch  = "logs"
	typeTelemetry = "telemetry"
	typeTrace     = "trace_entry"
	typeUpdate    = "update"
	typeError     = "error"
	typePing      = "ping"
	typePong      = "pong"
)

type envelope struct {
	ID        string          `json:"id,omitempty"`
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// LogRecord is one structured log line from the server.
type LogRecord struct {
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Component string                 `json:"component,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// TraceEntry is one reasoning-trace step.
type TraceEntry struct {
	Step    int    `json:"step"`
	Phase   string `json:"phase,omitempty"`
	Content string `json:"content"`
}

// TelemetrySnapshot is one sampled telemetry window.
type TelemetrySnapshot struct {
	Requests       uint64    `json:"requests"`
	Errors         uint64    `json:"errors"`
	RequestsPerSec float64   `json:"requests_per_sec"`
	SuccessRatio   float64   `json:"success_ratio"`
	AvgLatencyMs   float64   `json:"avg_latency_ms"`
	Inflight       int64     `json:"inflight"`
	WindowMs       int64     `json:"window_ms"`
	SampledAt      time.Time `json:"sampled_at"`
}

type errorInfo struct {
	Message string `json:"message"`
	Source  string `json:"source,omitempty"`
}

func decodeEnvelope(raw []byte) (*envelope, error) {
	var ev envelope
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if ev.Type == "" {
		return nil, fmt.Errorf("decode envelope: missing type")
	}
	return &ev, nil
}

func pingFrame() []byte {
	b, _ := json.Marshal(envelope{Type: typePing, Timestamp: time.Now().UTC()})
	return b
}
