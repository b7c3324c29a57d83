package telemetry

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/opaline-ai/spyglass/internal/event"
	logpkg "github.com/opaline-ai/spyglass/pkg/log"
)

// Submitter accepts telemetry events for fan-out. Satisfied by hub.Hub.
type Submitter interface {
	Submit(ev *event.Event)
}

// Snapshot is the derived view of one sampling window. It is both the
// payload of "telemetry" events and the response body of the polled
// metrics endpoint.
type Snapshot struct {
	Requests       uint64    `json:"requests"`
	Errors         uint64    `json:"errors"`
	RequestsPerSec float64   `json:"requests_per_sec"`
	SuccessRatio   float64   `json:"success_ratio"`
	AvgLatencyMs   float64   `json:"avg_latency_ms"`
	Inflight       int64     `json:"inflight"`
	WindowMs       int64     `json:"window_ms"`
	SampledAt      time.Time `json:"sampled_at"`
}

// SamplerOptions configures a Sampler.
type SamplerOptions struct {
	Logger   logpkg.Logger
	Counters *Counters
	Sink     Submitter
	Interval time.Duration
	Registry prometheus.Registerer
}

// Sampler drains the counters on a fixed interval, derives a Snapshot,
// publishes it as a telemetry event, and keeps the latest snapshot
// readable for polling clients.
type Sampler struct {
	logger   logpkg.Logger
	counters *Counters
	sink     Submitter
	interval time.Duration
	latest   atomic.Pointer[Snapshot]

	requestsTotal prometheus.Counter
	errorsTotal   prometheus.Counter
	inflightGauge prometheus.GaugeFunc
}

// NewSampler constructs a Sampler. Registry may be nil to skip
// Prometheus registration.
func NewSampler(opts SamplerOptions) *Sampler {
	if opts.Logger == nil {
		opts.Logger = logpkg.NewLogger(logpkg.WithLevel(logpkg.ErrorLevel))
	}
	if opts.Interval <= 0 {
		opts.Interval = 5 * time.Second
	}
	s := &Sampler{
		logger:   opts.Logger.With(logpkg.Component("telemetry")),
		counters: opts.Counters,
		sink:     opts.Sink,
		interval: opts.Interval,
	}
	if opts.Registry != nil {
		f := promauto.With(opts.Registry)
		s.requestsTotal = f.NewCounter(prometheus.CounterOpts{
			Name: "spyglass_requests_total",
			Help: "Requests observed by the telemetry sampler.",
		})
		s.errorsTotal = f.NewCounter(prometheus.CounterOpts{
			Name: "spyglass_request_errors_total",
			Help: "Failed requests observed by the telemetry sampler.",
		})
		s.inflightGauge = f.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "spyglass_inflight_tasks",
			Help: "Tasks currently in flight.",
		}, func() float64 { return float64(opts.Counters.Inflight()) })
	}
	return s
}

// Latest returns the most recent snapshot, or nil before the first tick.
func (s *Sampler) Latest() *Snapshot {
	return s.latest.Load()
}

// Run drains and publishes on each tick until ctx is done. A final
// sample is not taken on shutdown; the partial window is discarded.
func (s *Sampler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	s.logger.Info("sampler started", logpkg.Dur("interval", s.interval))
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sampler stopped")
			return
		case <-ticker.C:
			s.sample(s.interval)
		}
	}
}

// sample drains one window and publishes the derived snapshot.
func (s *Sampler) sample(window time.Duration) {
	w := s.counters.Drain()
	snap := derive(w, window, time.Now().UTC())
	s.latest.Store(&snap)
	if s.requestsTotal != nil {
		s.requestsTotal.Add(float64(w.Requests))
		s.errorsTotal.Add(float64(w.Errors))
	}
	if s.sink != nil {
		s.sink.Submit(event.NewTelemetry(snap))
	}
}

// derive computes the per-window rates. An empty window reports a
// success ratio of 1 so dashboards do not dip on idle periods.
func derive(w Window, window time.Duration, now time.Time) Snapshot {
	snap := Snapshot{
		Requests:     w.Requests,
		Errors:       w.Errors,
		SuccessRatio: 1,
		Inflight:     w.Inflight,
		WindowMs:     window.Milliseconds(),
		SampledAt:    now,
	}
	if secs := window.Seconds(); secs > 0 {
		snap.RequestsPerSec = float64(w.Requests) / secs
	}
	if w.Requests > 0 {
		snap.SuccessRatio = float64(w.Requests-w.Errors) / float64(w.Requests)
		snap.AvgLatencyMs = float64(w.LatencySumMs) / float64(w.Requests)
	}
	return snap
}
