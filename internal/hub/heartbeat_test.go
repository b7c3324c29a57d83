package hub

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/opaline-ai/spyglass/internal/event"
)

func TestSweepEvictsStaleConnection(t *testing.T) {
	h := New(Options{
		BufferCapacity:    8,
		HeartbeatInterval: 10 * time.Millisecond,
		HeartbeatTimeout:  30 * time.Millisecond,
	})
	defer h.Close()

	stale := newFakeTransport()
	fresh := newFakeTransport()
	sc, ok := h.attach(stale, nil)
	if !ok {
		t.Fatalf("attach rejected")
	}
	if _, ok := h.attach(fresh, nil); !ok {
		t.Fatalf("attach rejected")
	}

	// Age the stale connection past the miss budget.
	sc.lastHeartbeat.Store(time.Now().Add(-time.Second).UnixMilli())
	h.sweep(time.Now())

	if h.Len() != 1 {
		t.Fatalf("registry size after sweep = %d, want 1", h.Len())
	}
	if sc.State() != StateClosed {
		t.Fatalf("stale conn state = %v", sc.State())
	}

	// The evicted connection receives nothing further.
	before := stale.writeCount()
	h.Submit(event.NewLog(event.LogRecord{Message: "after eviction"}))
	waitFor(t, time.Second, func() bool { return fresh.writeCount() == 1 })
	if stale.writeCount() != before {
		t.Fatalf("evicted connection still receiving")
	}
}

func TestSweepProbesAndEvictsOnPingFailure(t *testing.T) {
	h := New(Options{BufferCapacity: 8})
	defer h.Close()

	dead := newFakeTransport()
	dead.pingErr = errors.New("broken pipe")
	if _, ok := h.attach(dead, nil); !ok {
		t.Fatalf("attach rejected")
	}
	live := newFakeTransport()
	if _, ok := h.attach(live, nil); !ok {
		t.Fatalf("attach rejected")
	}

	h.sweep(time.Now())
	if h.Len() != 1 {
		t.Fatalf("registry size = %d, want 1", h.Len())
	}
	live.mu.Lock()
	pings := live.pings
	live.mu.Unlock()
	if pings != 1 {
		t.Fatalf("live connection probed %d times, want 1", pings)
	}
}

func TestRunHeartbeatEvictsWithinMissBudget(t *testing.T) {
	h := New(Options{
		BufferCapacity:    8,
		HeartbeatInterval: 10 * time.Millisecond,
		HeartbeatTimeout:  30 * time.Millisecond,
	})
	defer h.Close()

	tr := newFakeTransport()
	c, ok := h.attach(tr, nil)
	if !ok {
		t.Fatalf("attach rejected")
	}
	c.lastHeartbeat.Store(time.Now().Add(-time.Minute).UnixMilli())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.RunHeartbeat(ctx)

	waitFor(t, time.Second, func() bool { return h.Len() == 0 })
}

func TestTouchDefersEviction(t *testing.T) {
	h := New(Options{
		BufferCapacity:   8,
		HeartbeatTimeout: 50 * time.Millisecond,
	})
	defer h.Close()

	tr := newFakeTransport()
	c, ok := h.attach(tr, nil)
	if !ok {
		t.Fatalf("attach rejected")
	}
	c.lastHeartbeat.Store(time.Now().Add(-time.Minute).UnixMilli())
	c.touch()
	h.sweep(time.Now())
	if h.Len() != 1 {
		t.Fatalf("freshly touched connection evicted")
	}
}
