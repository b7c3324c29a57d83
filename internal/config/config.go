package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration for the diagnostics layer.
// All interval knobs are plain milliseconds so they read the same from
// JSON, YAML, and environment variables.
type Config struct {
	HTTPAddr string `json:"httpAddr" yaml:"httpAddr"`

	// Hub / server side.
	BufferCapacity      int `json:"bufferCapacity" yaml:"bufferCapacity"`
	HistorySize         int `json:"historySize" yaml:"historySize"`
	SendTimeoutMs       int `json:"sendTimeoutMs" yaml:"sendTimeoutMs"`
	HeartbeatIntervalMs int `json:"heartbeatIntervalMs" yaml:"heartbeatIntervalMs"`
	HeartbeatMissed     int `json:"heartbeatMissed" yaml:"heartbeatMissed"`
	SampleIntervalMs    int `json:"sampleIntervalMs" yaml:"sampleIntervalMs"`

	// Client side.
	ReconnectBaseMs  int `json:"reconnectBaseMs" yaml:"reconnectBaseMs"`
	ReconnectCapMs   int `json:"reconnectCapMs" yaml:"reconnectCapMs"`
	CoalesceWindowMs int `json:"coalesceWindowMs" yaml:"coalesceWindowMs"`
	GraceMs          int `json:"graceMs" yaml:"graceMs"`

	Log LogConfig `json:"log" yaml:"log"`
}

// LogConfig captures logger settings.
type LogConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

// Default returns built-in defaults.
func Default() Config {
	return Config{
		HTTPAddr:            ":8080",
		BufferCapacity:      100,
		HistorySize:         200,
		SendTimeoutMs:       5000,
		HeartbeatIntervalMs: 2000,
		HeartbeatMissed:     3,
		SampleIntervalMs:    5000,
		ReconnectBaseMs:     500,
		ReconnectCapMs:      30000,
		CoalesceWindowMs:    200,
		GraceMs:             5000,
		Log:                 LogConfig{Level: "info", Format: "text"},
	}
}

// SendTimeout returns the per-send transmission deadline.
func (c Config) SendTimeout() time.Duration {
	return time.Duration(c.SendTimeoutMs) * time.Millisecond
}

// HeartbeatInterval returns the probe cadence.
func (c Config) HeartbeatInterval() time.Duration {
	return time.Duration(c.HeartbeatIntervalMs) * time.Millisecond
}

// HeartbeatTimeout returns the stale-connection eviction threshold.
func (c Config) HeartbeatTimeout() time.Duration {
	return c.HeartbeatInterval() * time.Duration(c.HeartbeatMissed)
}

// SampleInterval returns the telemetry sampling cadence.
func (c Config) SampleInterval() time.Duration {
	return time.Duration(c.SampleIntervalMs) * time.Millisecond
}

// ReconnectBase returns the first reconnect backoff delay.
func (c Config) ReconnectBase() time.Duration {
	return time.Duration(c.ReconnectBaseMs) * time.Millisecond
}

// ReconnectCap returns the backoff upper bound.
func (c Config) ReconnectCap() time.Duration {
	return time.Duration(c.ReconnectCapMs) * time.Millisecond
}

// CoalesceWindow returns the dispatcher batching window.
func (c Config) CoalesceWindow() time.Duration {
	return time.Duration(c.CoalesceWindowMs) * time.Millisecond
}

// Grace returns the zero-subscriber teardown grace period.
func (c Config) Grace() time.Duration {
	return time.Duration(c.GraceMs) * time.Millisecond
}

// Load reads configuration from a JSON or YAML file (by extension).
// An empty path returns defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	if c.BufferCapacity <= 0 {
		return fmt.Errorf("bufferCapacity must be positive, got %d", c.BufferCapacity)
	}
	if c.HeartbeatIntervalMs <= 0 || c.HeartbeatMissed <= 0 {
		return fmt.Errorf("heartbeat interval and missed threshold must be positive")
	}
	if c.ReconnectBaseMs <= 0 || c.ReconnectCapMs < c.ReconnectBaseMs {
		return fmt.Errorf("reconnect cap %dms must be >= base %dms", c.ReconnectCapMs, c.ReconnectBaseMs)
	}
	return nil
}
