package client

import (
	"encoding/json"
	"sync"
	"testing"
	"time"
)

// newDetachedClient returns a client with a registered subscriber but
// no running connection, for driving the dispatcher directly.
func newDetachedClient(cb Callbacks) *Client {
	c := New(Options{URL: "ws://unused", CoalesceWindow: 50 * time.Millisecond})
	c.subs[0] = cb
	return c
}

func frame(t *testing.T, typ string, payload any) *envelope {
	t.Helper()
	b, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return &envelope{Type: typ, Data: b, Timestamp: time.Now().UTC()}
}

func TestImmediateDelivery(t *testing.T) {
	var mu sync.Mutex
	var gotLog *LogRecord
	var gotSnap *TelemetrySnapshot
	var gotTrace *TraceEntry
	c := newDetachedClient(Callbacks{
		OnLog:       func(r LogRecord) { mu.Lock(); gotLog = &r; mu.Unlock() },
		OnTelemetry: func(s TelemetrySnapshot) { mu.Lock(); gotSnap = &s; mu.Unlock() },
		OnTrace:     func(e TraceEntry) { mu.Lock(); gotTrace = &e; mu.Unlock() },
	})

	c.disp.dispatch(frame(t, typeLog, LogRecord{Level: "WARN", Message: "w"}))
	c.disp.dispatch(frame(t, typeTelemetry, TelemetrySnapshot{Requests: 9}))
	c.disp.dispatch(frame(t, typeTrace, TraceEntry{Step: 2, Content: "thinking"}))

	mu.Lock()
	defer mu.Unlock()
	if gotLog == nil || gotLog.Message != "w" {
		t.Fatalf("log = %+v", gotLog)
	}
	if gotSnap == nil || gotSnap.Requests != 9 {
		t.Fatalf("telemetry = %+v", gotSnap)
	}
	if gotTrace == nil || gotTrace.Step != 2 {
		t.Fatalf("trace = %+v", gotTrace)
	}
}

func TestLogBatchIsOneCall(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	var size int
	c := newDetachedClient(Callbacks{
		OnLogBatch: func(recs []LogRecord) {
			mu.Lock()
			calls++
			size = len(recs)
			mu.Unlock()
		},
	})

	c.disp.dispatch(frame(t, typeLogBatch, []LogRecord{
		{Message: "a"}, {Message: "b"}, {Message: "c"},
	}))

	mu.Lock()
	defer mu.Unlock()
	if calls != 1 || size != 3 {
		t.Fatalf("calls = %d, batch size = %d", calls, size)
	}
}

func TestUpdateBurstCoalescesToOneNotification(t *testing.T) {
	notifications := make(chan []json.RawMessage, 4)
	c := newDetachedClient(Callbacks{
		OnUpdate: func(batch []json.RawMessage) { notifications <- batch },
	})

	// Five updates in well under one 50ms window.
	for i := 0; i < 5; i++ {
		c.disp.dispatch(frame(t, typeUpdate, map[string]int{"seq": i}))
		time.Sleep(5 * time.Millisecond)
	}

	select {
	case batch := <-notifications:
		if len(batch) != 5 {
			t.Fatalf("batch size = %d, want 5", len(batch))
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("coalesced notification never flushed")
	}
	select {
	case extra := <-notifications:
		t.Fatalf("unexpected second notification of %d updates", len(extra))
	case <-time.After(150 * time.Millisecond):
	}
}

func TestSeparatedUpdatesFlushSeparately(t *testing.T) {
	notifications := make(chan []json.RawMessage, 4)
	c := newDetachedClient(Callbacks{
		OnUpdate: func(batch []json.RawMessage) { notifications <- batch },
	})

	c.disp.dispatch(frame(t, typeUpdate, map[string]int{"seq": 0}))
	first := <-notifications
	if len(first) != 1 {
		t.Fatalf("first batch size = %d", len(first))
	}

	c.disp.dispatch(frame(t, typeUpdate, map[string]int{"seq": 1}))
	select {
	case second := <-notifications:
		if len(second) != 1 {
			t.Fatalf("second batch size = %d", len(second))
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("second flush never happened")
	}
}

func TestStopCancelsPendingFlush(t *testing.T) {
	notifications := make(chan []json.RawMessage, 1)
	c := newDetachedClient(Callbacks{
		OnUpdate: func(batch []json.RawMessage) { notifications <- batch },
	})

	c.disp.dispatch(frame(t, typeUpdate, map[string]int{"seq": 0}))
	c.disp.stop()
	select {
	case <-notifications:
		t.Fatalf("flush fired after stop")
	case <-time.After(150 * time.Millisecond):
	}
}

func TestErrorEventSurfacesWithoutClosing(t *testing.T) {
	errs := make(chan error, 1)
	c := newDetachedClient(Callbacks{
		OnError: func(err error) { errs <- err },
	})

	c.disp.dispatch(frame(t, typeError, errorInfo{Message: "core stalled", Source: "planner"}))
	select {
	case err := <-errs:
		if err.Error() != "core stalled" {
			t.Fatalf("err = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("error never surfaced")
	}
}

func TestUnknownTypeIgnored(t *testing.T) {
	c := newDetachedClient(Callbacks{
		OnLog: func(LogRecord) { t.Fatalf("unexpected log callback") },
	})
	c.disp.dispatch(frame(t, "mystery", map[string]string{"k": "v"}))
}

func TestBadPayloadSkipped(t *testing.T) {
	c := newDetachedClient(Callbacks{
		OnLog: func(LogRecord) { t.Fatalf("unexpected log callback") },
	})
	c.disp.dispatch(&envelope{Type: typeLog, Data: json.RawMessage(`"not an object"... broken`)})
}

func TestDecodeEnvelopeRejectsMissingType(t *testing.T) {
	if _, err := decodeEnvelope([]byte(`{"data":{}}`)); err == nil {
		t.Fatalf("expected error for missing type")
	}
	if _, err := decodeEnvelope([]byte(`not json`)); err == nil {
		t.Fatalf("expected error for malformed frame")
	}
}

func TestDispatchFansOutToAllSubscribers(t *testing.T) {
	var mu sync.Mutex
	got := map[int]int{}
	c := New(Options{URL: "ws://unused"})
	for i := 0; i < 3; i++ {
		i := i
		c.subs[i] = Callbacks{OnLog: func(LogRecord) {
			mu.Lock()
			got[i]++
			mu.Unlock()
		}}
	}
	c.disp.dispatch(frame(t, typeLog, LogRecord{Message: "fan"}))

	mu.Lock()
	defer mu.Unlock()
	for i := 0; i < 3; i++ {
		if got[i] != 1 {
			t.Fatalf("subscriber %d received %d deliveries", i, got[i])
		}
	}
}
