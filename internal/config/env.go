package config

import (
	"os"
	"strconv"
)

// FromEnv overlays SPYGLASS_* environment variables onto cfg.
func FromEnv(cfg *Config) {
	if v := os.Getenv("SPYGLASS_HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
	setInt(&cfg.BufferCapacity, "SPYGLASS_BUFFER_CAP")
	setInt(&cfg.HistorySize, "SPYGLASS_HISTORY_SIZE")
	setInt(&cfg.SendTimeoutMs, "SPYGLASS_SEND_TIMEOUT_MS")
	setInt(&cfg.HeartbeatIntervalMs, "SPYGLASS_HEARTBEAT_MS")
	setInt(&cfg.HeartbeatMissed, "SPYGLASS_HEARTBEAT_MISSED")
	setInt(&cfg.SampleIntervalMs, "SPYGLASS_SAMPLE_MS")
	setInt(&cfg.ReconnectBaseMs, "SPYGLASS_RECONNECT_BASE_MS")
	setInt(&cfg.ReconnectCapMs, "SPYGLASS_RECONNECT_CAP_MS")
	setInt(&cfg.CoalesceWindowMs, "SPYGLASS_COALESCE_MS")
	setInt(&cfg.GraceMs, "SPYGLASS_GRACE_MS")
	if v := os.Getenv("SPYGLASS_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("SPYGLASS_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			*dst = n
		}
	}
}
