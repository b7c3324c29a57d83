package telemetry

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/opaline-ai/spyglass/internal/event"
)

type captureSink struct {
	mu     sync.Mutex
	events []*event.Event
}

func (s *captureSink) Submit(ev *event.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *captureSink) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func TestDrainResetsWindow(t *testing.T) {
	c := NewCounters()
	c.RequestServed(10)
	c.RequestServed(30)
	c.RequestFailed(50)
	c.TaskStarted()

	w := c.Drain()
	if w.Requests != 3 || w.Errors != 1 || w.LatencySumMs != 90 {
		t.Fatalf("window = %+v", w)
	}
	if w.Inflight != 1 {
		t.Fatalf("inflight = %d, want 1", w.Inflight)
	}

	// Windowed counters start over; the gauge is a level and persists.
	w2 := c.Drain()
	if w2.Requests != 0 || w2.Errors != 0 || w2.LatencySumMs != 0 {
		t.Fatalf("second window not reset: %+v", w2)
	}
	if w2.Inflight != 1 {
		t.Fatalf("inflight after drain = %d, want 1", w2.Inflight)
	}
	c.TaskDone()
	if c.Inflight() != 0 {
		t.Fatalf("inflight after done = %d", c.Inflight())
	}
}

func TestDrainConcurrentWithIncrements(t *testing.T) {
	c := NewCounters()
	const perWorker = 1000
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				c.RequestServed(1)
			}
		}()
	}

	var total uint64
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			total += c.Drain().Requests
			time.Sleep(time.Millisecond)
		}
	}()
	wg.Wait()
	<-done
	total += c.Drain().Requests

	if total != 4*perWorker {
		t.Fatalf("drained %d requests, want %d", total, 4*perWorker)
	}
}

func TestDeriveRates(t *testing.T) {
	snap := derive(Window{Requests: 10, Errors: 2, LatencySumMs: 500, Inflight: 3},
		5*time.Second, time.Unix(0, 0).UTC())
	if snap.RequestsPerSec != 2 {
		t.Fatalf("requests/sec = %v, want 2", snap.RequestsPerSec)
	}
	if snap.SuccessRatio != 0.8 {
		t.Fatalf("success ratio = %v, want 0.8", snap.SuccessRatio)
	}
	if snap.AvgLatencyMs != 50 {
		t.Fatalf("avg latency = %v, want 50", snap.AvgLatencyMs)
	}
	if snap.Inflight != 3 || snap.WindowMs != 5000 {
		t.Fatalf("snapshot = %+v", snap)
	}
}

func TestDeriveEmptyWindow(t *testing.T) {
	snap := derive(Window{}, 5*time.Second, time.Now())
	if snap.SuccessRatio != 1 {
		t.Fatalf("idle success ratio = %v, want 1", snap.SuccessRatio)
	}
	if snap.RequestsPerSec != 0 || snap.AvgLatencyMs != 0 {
		t.Fatalf("idle snapshot = %+v", snap)
	}
}

func TestSamplePublishesAndStoresLatest(t *testing.T) {
	c := NewCounters()
	sink := &captureSink{}
	s := NewSampler(SamplerOptions{Counters: c, Sink: sink, Interval: time.Second})

	if s.Latest() != nil {
		t.Fatalf("latest non-nil before first sample")
	}
	c.RequestServed(20)
	c.RequestFailed(40)
	s.sample(time.Second)

	if sink.len() != 1 {
		t.Fatalf("published %d events, want 1", sink.len())
	}
	ev := sink.events[0]
	if ev.Type != event.TypeTelemetry {
		t.Fatalf("event type = %s", ev.Type)
	}
	var snap Snapshot
	if err := json.Unmarshal(ev.Data, &snap); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if snap.Requests != 2 || snap.Errors != 1 {
		t.Fatalf("payload = %+v", snap)
	}
	latest := s.Latest()
	if latest == nil || latest.Requests != 2 {
		t.Fatalf("latest = %+v", latest)
	}
}

func TestSamplerRunTicks(t *testing.T) {
	c := NewCounters()
	sink := &captureSink{}
	s := NewSampler(SamplerOptions{Counters: c, Sink: sink, Interval: 10 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	go s.Run(ctx)
	deadline := time.Now().Add(time.Second)
	for sink.len() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	if sink.len() < 2 {
		t.Fatalf("sampler produced %d events within deadline", sink.len())
	}
}
