package hub

import (
	"testing"

	"github.com/opaline-ai/spyglass/internal/event"
)

func TestNilFilterMatchesEverything(t *testing.T) {
	var f *Filter
	if !f.Match(event.NewLog(event.LogRecord{Message: "x"})) {
		t.Fatalf("nil filter rejected an event")
	}
}

func TestEmptyExpressionPassesAll(t *testing.T) {
	f, err := NewFilter("   ")
	if err != nil {
		t.Fatalf("NewFilter: %v", err)
	}
	if !f.Match(event.NewTelemetry(map[string]int{"requests": 1})) {
		t.Fatalf("empty filter rejected an event")
	}
}

func TestFilterByType(t *testing.T) {
	f, err := NewFilter(`type == "log"`)
	if err != nil {
		t.Fatalf("NewFilter: %v", err)
	}
	if !f.Match(event.NewLog(event.LogRecord{Message: "keep"})) {
		t.Fatalf("matching type excluded")
	}
	if f.Match(event.NewTelemetry(map[string]int{})) {
		t.Fatalf("non-matching type included")
	}
}

func TestFilterByPayloadField(t *testing.T) {
	f, err := NewFilter(`type == "log" && json.level == "ERROR"`)
	if err != nil {
		t.Fatalf("NewFilter: %v", err)
	}
	if !f.Match(event.NewLog(event.LogRecord{Level: "ERROR", Message: "boom"})) {
		t.Fatalf("error log excluded")
	}
	if f.Match(event.NewLog(event.LogRecord{Level: "INFO", Message: "fine"})) {
		t.Fatalf("info log included")
	}
}

func TestFilterByText(t *testing.T) {
	f, err := NewFilter(`text.contains("timeout")`)
	if err != nil {
		t.Fatalf("NewFilter: %v", err)
	}
	if !f.Match(event.NewLog(event.LogRecord{Message: "request timeout"})) {
		t.Fatalf("substring match excluded")
	}
	if f.Match(event.NewLog(event.LogRecord{Message: "request ok"})) {
		t.Fatalf("non-matching text included")
	}
}

func TestFilterCompileError(t *testing.T) {
	if _, err := NewFilter(`type == `); err == nil {
		t.Fatalf("expected compile error for truncated expression")
	}
	if _, err := NewFilter(`unknown_var == 1`); err == nil {
		t.Fatalf("expected compile error for unknown variable")
	}
}

func TestFilterEvalErrorExcludes(t *testing.T) {
	f, err := NewFilter(`json.missing.deep == "x"`)
	if err != nil {
		t.Fatalf("NewFilter: %v", err)
	}
	if f.Match(event.NewLog(event.LogRecord{Message: "no such field"})) {
		t.Fatalf("eval error should exclude the event")
	}
}
