package serverrun

import (
	"context"
	"testing"
	"time"

	cfgpkg "github.com/opaline-ai/spyglass/internal/config"
)

func TestGetenvDefault(t *testing.T) {
	old := getenv
	defer func() { getenv = old }()
	getenv = func(key string) string {
		if key == "SET" {
			return "value"
		}
		return ""
	}
	if got := getenvDefault("SET", "fallback"); got != "value" {
		t.Errorf("got %s", got)
	}
	if got := getenvDefault("UNSET", "fallback"); got != "fallback" {
		t.Errorf("got %s", got)
	}
}

func TestRunRejectsBadConfigPath(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := Run(ctx, Options{ConfigPath: "/nonexistent/spyglass.json"}); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}

// TestRunIntegration verifies Run starts cleanly and shuts down on
// context cancellation. Minimal by design: the HTTP surface has its own
// tests.
func TestRunIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	cfg := cfgpkg.Default()
	cfg.HTTPAddr = "127.0.0.1:0"
	cfg.SampleIntervalMs = 50
	cfg.HeartbeatIntervalMs = 50

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	err := Run(ctx, Options{Config: &cfg})
	if err != nil {
		t.Errorf("expected clean shutdown on cancellation, got %v", err)
	}
}
