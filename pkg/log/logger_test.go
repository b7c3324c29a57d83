package log

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", DebugLevel, false},
		{"INFO", InfoLevel, false},
		{"warn", WarnLevel, false},
		{"warning", WarnLevel, false},
		{"error", ErrorLevel, false},
		{"", InfoLevel, false},
		{"verbose", InfoLevel, true},
	}
	for _, c := range cases {
		got, err := ParseLevel(c.in)
		if c.wantErr && err == nil {
			t.Fatalf("ParseLevel(%q): expected error", c.in)
		}
		if !c.wantErr && got != c.want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestTextFormatterIncludesFields(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewLogger(WithOutput(NewWriterOutput(buf)))
	logger.Info("hello", Str("component", "hub"), Int("n", 3))

	out := buf.String()
	if !strings.Contains(out, "INFO hello") {
		t.Fatalf("missing level/message in %q", out)
	}
	if !strings.Contains(out, "component=hub") || !strings.Contains(out, "n=3") {
		t.Fatalf("missing fields in %q", out)
	}
}

func TestJSONFormatterEmitsValidJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewLogger(WithFormatter(&JSONFormatter{}), WithOutput(NewWriterOutput(buf)))
	logger.Warn("slow consumer", Str("conn", "abc"), Int64("dropped", 4))

	var obj map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &obj); err != nil {
		t.Fatalf("invalid JSON output: %v (%q)", err, buf.String())
	}
	if obj["level"] != "WARN" || obj["msg"] != "slow consumer" {
		t.Fatalf("unexpected entry: %v", obj)
	}
	if obj["conn"] != "abc" {
		t.Fatalf("missing field conn: %v", obj)
	}
}

func TestLevelFiltersAndPropagatesToChildren(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewLogger(WithLevel(WarnLevel), WithOutput(NewWriterOutput(buf)))
	child := logger.With(Component("sampler"))

	child.Info("suppressed")
	if buf.Len() != 0 {
		t.Fatalf("info should be filtered at warn level, got %q", buf.String())
	}

	logger.SetLevel(DebugLevel)
	child.Debug("visible")
	if !strings.Contains(buf.String(), "visible") {
		t.Fatalf("debug should pass after SetLevel, got %q", buf.String())
	}
	if !strings.Contains(buf.String(), "component=sampler") {
		t.Fatalf("child fields missing, got %q", buf.String())
	}
}

func TestApplyConfig(t *testing.T) {
	if _, err := ApplyConfig(&Config{Level: "info", Format: "json"}); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
	if _, err := ApplyConfig(&Config{Level: "nope"}); err == nil {
		t.Fatalf("expected error for bad level")
	}
	if _, err := ApplyConfig(&Config{Format: "xml"}); err == nil {
		t.Fatalf("expected error for bad format")
	}
}
