package hub

import (
	"context"
	"time"

	logpkg "github.com/opaline-ai/spyglass/pkg/log"
)

// RunHeartbeat probes every connection on a fixed interval and evicts
// any whose last liveness signal is older than the configured timeout.
// This bounds the lifetime of half-open connections (an observer killed
// without a clean close) to a small multiple of the interval. Blocks
// until ctx is done.
func (h *Hub) RunHeartbeat(ctx context.Context) {
	ticker := time.NewTicker(h.heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.sweep(time.Now())
		}
	}
}

// sweep runs one heartbeat pass over a membership snapshot.
func (h *Hub) sweep(now time.Time) {
	for _, c := range h.Snapshot() {
		if age := now.Sub(c.LastHeartbeat()); age > h.heartbeatTimeout {
			h.metrics.evicted()
			h.logger.Info("evicting stale observer",
				logpkg.Str("conn", c.id), logpkg.Dur("age", age))
			h.unregister(c.id)
			continue
		}
		if err := c.tr.Ping(now.Add(h.sendTimeout)); err != nil {
			h.metrics.evicted()
			h.logger.Info("probe failed, evicting observer",
				logpkg.Str("conn", c.id), logpkg.Err(err))
			h.unregister(c.id)
		}
	}
}
